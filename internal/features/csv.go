// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package features

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// WriteCSV writes a single-row features file with the declared columns
// in model order. This is the exact shape the inference CLI consumes
// with --row_index 0.
func WriteCSV(path string, declared []string, values []float64) error {
	if len(declared) != len(values) {
		return fmt.Errorf("writing %s: %d columns for %d values", path, len(declared), len(values))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating features csv: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(declared); err != nil {
		f.Close()
		return fmt.Errorf("writing features header: %w", err)
	}
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	if err := w.Write(row); err != nil {
		f.Close()
		return fmt.Errorf("writing features row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing features csv: %w", err)
	}
	return f.Close()
}
