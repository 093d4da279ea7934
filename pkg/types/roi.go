// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ROIState identifies where a region of interest sits in its lifecycle.
// The progression is Candidate → Confirmed → Exported → Predicted; a
// failed export stage moves an Exported ROI to ExportedWithError instead
// of reverting it.
type ROIState string

const (
	// StateCandidate is a provisional sphere following the crosshair; it
	// has no label yet and at most one exists per session.
	StateCandidate ROIState = "candidate"

	// StateConfirmed is a validated, labeled sphere recorded in the
	// manifest and eligible for export.
	StateConfirmed ROIState = "confirmed"

	// StateExported means mask and feature artifacts exist on disk and an
	// inference invocation is pending or has failed.
	StateExported ROIState = "exported"

	// StatePredicted means a risk estimate has been attached.
	StatePredicted ROIState = "predicted"

	// StateExportedWithError marks an Exported ROI whose pipeline stage
	// failed; the failure reason is surfaced, not hidden.
	StateExportedWithError ROIState = "exported_error"
)

// RiskBucket is the categorical malignancy-risk class derived from the
// predicted probability via the two RiskConfig thresholds.
type RiskBucket string

const (
	RiskLow          RiskBucket = "low"
	RiskIntermediate RiskBucket = "intermediate"
	RiskHigh         RiskBucket = "high"
)

// RiskEstimate is the reconciled inference outcome attached to a
// Predicted ROI.
type RiskEstimate struct {
	// Probability is the predicted probability of malignancy in [0, 1].
	Probability float64 `json:"probability"`

	// Threshold is the decision threshold the model was calibrated with.
	Threshold float64 `json:"threshold"`

	// Label is the binary decision (1 = positive) at Threshold.
	Label int `json:"label"`

	// Bucket is the three-class category derived from Probability.
	Bucket RiskBucket `json:"bucket"`
}

// ROI is a spherical region of interest in physical patient space.
// Candidates carry no ID; the label is assigned exactly once at the
// Candidate→Confirmed transition and is monotonically increasing within a
// case session ("L1", "L2", ...).
type ROI struct {
	// ID is the sequential lesion label, empty while State is Candidate.
	ID string `json:"id,omitempty"`

	// CenterPhysical is the sphere center in physical millimeters.
	CenterPhysical [3]float64 `json:"center_xyz_mm"`

	// RadiusMM is the sphere radius in millimeters.
	RadiusMM float64 `json:"radius_mm"`

	// State is the lifecycle state.
	State ROIState `json:"state"`

	// Risk is present only once State is Predicted.
	Risk *RiskEstimate `json:"risk,omitempty"`

	// FailureReason is present only when State is ExportedWithError, e.g.
	// "InferenceDispatchError: timeout".
	FailureReason string `json:"failure_reason,omitempty"`

	// CreatedAt is the confirmation timestamp.
	CreatedAt time.Time `json:"created_at"`

	// SourceSeries identifies the series the sphere was validated against
	// at confirmation time.
	SourceSeries string `json:"series_uid,omitempty"`
}
