// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/araratmed/ararat-viewer/internal/export"
	"github.com/araratmed/ararat-viewer/internal/inference"
	"github.com/araratmed/ararat-viewer/internal/roi"
	"github.com/araratmed/ararat-viewer/internal/volume"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export confirmed ROIs and run inference on each",
	Long: `Export reads a case's confirmed ROIs, rasterizes each sphere on the
reference volume, writes mask and feature artifacts to a fresh timestamped
batch directory, and dispatches the version-pinned inference subprocess per
ROI. Failures are isolated per ROI; a partially successful batch reports
which lesions failed and why.`,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	caseID, _ := cmd.Flags().GetString("case")
	volumePath, _ := cmd.Flags().GetString("volume")
	seriesUID, _ := cmd.Flags().GetString("series")
	roisPath, _ := cmd.Flags().GetString("rois")
	if caseID == "" || volumePath == "" {
		return fmt.Errorf("--case and --volume are required")
	}
	if roisPath == "" {
		roisPath = filepath.Join(cfg.DataRoot, caseID, "rois_latest.json")
	}

	vol, err := volume.ReadVolume(volumePath)
	if err != nil {
		return fmt.Errorf("loading reference volume: %w", err)
	}
	rois, err := roi.LoadLatest(roisPath)
	if err != nil {
		return fmt.Errorf("loading rois: %w", err)
	}
	if len(rois) == 0 {
		return fmt.Errorf("no confirmed rois in %s", roisPath)
	}

	meta, err := inference.LoadMeta(cfg.Inference.ModelDir)
	if err != nil {
		return err
	}
	runner := inference.NewRunner(cfg.Inference, log)
	orch := export.NewOrchestrator(cfg.Export, cfg.Risk, meta, runner, log)
	orch.Version = version

	batchID, dir, err := orch.Run(context.Background(), export.Batch{
		CaseID:    caseID,
		SeriesUID: seriesUID,
		Volume:    vol,
		ROIs:      rois,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Batch %s -> %s\n", batchID, dir)

	failed := 0
	for range rois {
		o := <-orch.Outcomes()
		if o.Err != nil {
			failed++
			fmt.Fprintf(os.Stdout, "%-6s FAILED   %v\n", o.ROI.ID, o.Err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%-6s %-12s prob=%.3f thr=%.3f label=%d\n",
			o.ROI.ID, o.Risk.Bucket, o.Risk.Probability, o.Risk.Threshold, o.Risk.Label)
	}
	fmt.Fprintf(os.Stdout, "%d of %d predicted\n", len(rois)-failed, len(rois))
	if failed > 0 {
		return fmt.Errorf("%d roi(s) failed", failed)
	}
	return nil
}

func init() {
	exportCmd.Flags().String("case", "", "case identifier")
	exportCmd.Flags().String("volume", "", "reference volume (NRRD)")
	exportCmd.Flags().String("series", "", "series instance UID recorded in the batch metadata")
	exportCmd.Flags().String("rois", "", "rois_latest.json path (default: <data_root>/<case>/rois_latest.json)")

	rootCmd.AddCommand(exportCmd)
}
