// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import "github.com/araratmed/ararat-viewer/pkg/types"

// BucketFor maps a positive-class probability to a display bucket:
// p < LowMax is low, p >= HighMin is high, anything between is
// intermediate. The bucket is presentation only; the model's own
// threshold decides the predicted label.
func BucketFor(prob float64, cfg types.RiskConfig) types.RiskBucket {
	switch {
	case prob < cfg.LowMax:
		return types.RiskLow
	case prob >= cfg.HighMin:
		return types.RiskHigh
	default:
		return types.RiskIntermediate
	}
}
