// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package features

import (
	"fmt"
	"strings"
)

// ExtractionError means statistics could not be computed for a region
// (empty mask, geometry mismatch). It fails the single ROI it belongs
// to; other regions in the same batch proceed.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("feature extraction failed: %s", e.Reason)
}

// MissingFeatureError means the model declared features the extractor
// did not produce. Missing values are never zero-filled.
type MissingFeatureError struct {
	Missing []string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("features missing for model input: %s", strings.Join(e.Missing, ", "))
}
