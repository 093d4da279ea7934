// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/araratmed/ararat-viewer/internal/gtruth"
	"github.com/araratmed/ararat-viewer/internal/volume"
)

var gtCmd = &cobra.Command{
	Use:   "gt [case]",
	Short: "List and validate ground-truth lesions for a case",
	Long: `Gt scans the LABELS directories under the data root (and its parent)
for known label files, matches the case by patient id, and prints the
reference lesions with their positions and grades.

With --volume, each lesion is additionally mapped into that volume's voxel
space and checked against its bounds.`,
	Args: cobra.ExactArgs(1),
	RunE: runGT,
}

func runGT(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if root, _ := cmd.Flags().GetString("data-root"); root != "" {
		cfg.DataRoot = root
	}

	lesions := gtruth.NewMatcher(log).Lookup(args[0], cfg.DataRoot)
	if len(lesions) == 0 {
		fmt.Println("No ground-truth lesions found.")
		return nil
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lesions)
	}

	var vol *volume.Volume
	if volumePath, _ := cmd.Flags().GetString("volume"); volumePath != "" {
		var err error
		vol, err = volume.ReadVolume(volumePath)
		if err != nil {
			return fmt.Errorf("loading reference volume: %w", err)
		}
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-28s  %-8s  %-6s  %-5s\n", "Lesion", "Position (mm)", "ClinSig", "Zone", "GGG")
	for _, l := range lesions {
		fmt.Fprintf(os.Stdout, "%-8s  (%7.1f, %7.1f, %7.1f)  %-8s  %-6s  %-5s\n",
			l.LesionID, l.Position[0], l.Position[1], l.Position[2], l.ClinSig, l.Zone, l.GGG)
		if vol != nil {
			idx := vol.Geom.PhysicalToVoxel(l.Position)
			rounded := [3]int{
				int(math.Round(idx[0])),
				int(math.Round(idx[1])),
				int(math.Round(idx[2])),
			}
			fmt.Fprintf(os.Stdout, "          voxel (%d, %d, %d)  slice %d  in_bounds=%t\n",
				rounded[0], rounded[1], rounded[2], rounded[2], vol.Geom.ContainsIndex(rounded))
		}
	}
	return nil
}

func init() {
	gtCmd.Flags().String("data-root", "", "override the configured data root")
	gtCmd.Flags().String("volume", "", "reference volume (NRRD) to validate lesion positions against")
	gtCmd.Flags().Bool("json", false, "output lesions as JSON")

	rootCmd.AddCommand(gtCmd)
}
