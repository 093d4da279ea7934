// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/araratmed/ararat-viewer/internal/inference"
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Run the pinned inference subprocess on an existing features CSV",
	Long: `Infer dispatches a single prediction against a features CSV already on
disk (as written by export), bypassing the mask and extraction stages. Useful
for retrying a failed inference or validating a model bundle.`,
	RunE: runInfer,
}

func runInfer(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	csvPath, _ := cmd.Flags().GetString("features-csv")
	outPath, _ := cmd.Flags().GetString("out-json")
	if csvPath == "" {
		return fmt.Errorf("--features-csv is required")
	}
	if outPath == "" {
		base := strings.TrimSuffix(filepath.Base(csvPath), ".csv")
		base = strings.TrimPrefix(base, "features_")
		outPath = filepath.Join(filepath.Dir(csvPath), fmt.Sprintf("pred_%s.json", base))
	}

	runner := inference.NewRunner(cfg.Inference, log)
	res, err := runner.Run(context.Background(), csvPath, outPath)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func init() {
	inferCmd.Flags().String("features-csv", "", "single-row features CSV in model column order")
	inferCmd.Flags().String("out-json", "", "result path (default: pred_<id>.json next to the CSV)")

	rootCmd.AddCommand(inferCmd)
}
