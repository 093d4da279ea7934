// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// InferenceResult is the structured payload produced by the isolated
// inference CLI (--out_json). Field names match the wire format exactly.
type InferenceResult struct {
	// Model is the model name from the model directory metadata.
	Model string `json:"model"`

	// ProbPos is the predicted probability of the positive class.
	ProbPos float64 `json:"prob_pos"`

	// ThrCV is the cross-validated decision threshold.
	ThrCV float64 `json:"thr_cv"`

	// PredLabel is the binary decision at ThrCV.
	PredLabel int `json:"pred_label"`

	// FeaturesUsed maps feature name to the value the model saw; nil
	// values mark features the runtime coerced to NaN.
	FeaturesUsed map[string]*float64 `json:"features_used"`

	// Timestamp is the invocation time in RFC 3339 UTC.
	Timestamp string `json:"timestamp"`
}
