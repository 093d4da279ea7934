// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/araratmed/ararat-viewer/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [case]",
	Short: "Render a PDF decision-support summary for an export batch",
	Long: `Report assembles a per-case PDF from an export batch directory:
the batch's rois.json plus each lesion's prediction artifact. Without
--dir, the most recent batch under <output_root>/<case>/ is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		if len(args) == 0 {
			return fmt.Errorf("either a case argument or --dir is required")
		}
		var err error
		dir, err = latestBatchDir(filepath.Join(cfg.Export.OutputRoot, args[0]))
		if err != nil {
			return err
		}
	}

	data, err := report.Load(dir, cfg.Risk)
	if err != nil {
		return err
	}
	if patient, _ := cmd.Flags().GetString("patient"); patient != "" {
		data.PatientID = patient
	}
	if series, _ := cmd.Flags().GetString("series"); series != "" {
		data.SeriesName = series
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join(dir, "report.pdf")
	}
	if err := report.Generate(data, out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Report written to %s (%d lesions)\n", out, len(data.Lesions))
	return nil
}

// latestBatchDir returns the newest timestamped batch directory under a
// case's export root. Batch directory names sort chronologically.
func latestBatchDir(caseRoot string) (string, error) {
	entries, err := os.ReadDir(caseRoot)
	if err != nil {
		return "", fmt.Errorf("reading export root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("no export batches under %s", caseRoot)
	}
	sort.Strings(dirs)
	return filepath.Join(caseRoot, dirs[len(dirs)-1]), nil
}

func init() {
	reportCmd.Flags().String("dir", "", "export batch directory (default: latest under output root)")
	reportCmd.Flags().String("out", "", "output PDF path (default: <dir>/report.pdf)")
	reportCmd.Flags().String("patient", "", "real patient identifier printed in the header")
	reportCmd.Flags().String("series", "", "series description printed in the header")

	rootCmd.AddCommand(reportCmd)
}
