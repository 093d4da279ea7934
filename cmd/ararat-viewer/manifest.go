// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/araratmed/ararat-viewer/internal/manifest"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "List the append-only ROI confirmation log",
	Long: `Manifest prints the confirmation records from the ROI manifest
database. Every confirmed ROI appends exactly one row; rows are never
updated or deleted, so the log is a complete audit trail.`,
	RunE: runManifest,
}

func runManifest(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.Export.OutputRoot
	}
	caseID, _ := cmd.Flags().GetString("case")

	store, err := manifest.Open(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.Rows(context.Background(), caseID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No manifest rows found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-20s  %-12s  %-6s  %-9s  %-5s  %-28s  %s\n",
		"Timestamp", "Case", "Label", "Plane", "Slice", "Center (mm)", "Radius")
	for _, r := range rows {
		fmt.Fprintf(os.Stdout, "%-20s  %-12s  %-6s  %-9s  %-5d  (%7.1f, %7.1f, %7.1f)  %.1f\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), r.CaseID, r.Label, r.Plane,
			r.SliceIndex, r.CenterX, r.CenterY, r.CenterZ, r.RadiusMM)
	}
	return nil
}

func init() {
	manifestCmd.Flags().String("dir", "", "manifest directory (default: export output root)")
	manifestCmd.Flags().String("case", "", "filter rows by case id")

	rootCmd.AddCommand(manifestCmd)
}
