// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Lesion is one known ground-truth finding for a case, as read from the
// external label source. Consumed read-only for jump-to-nearest
// navigation and review.
type Lesion struct {
	// PatientID is the label source's patient identifier.
	PatientID string `json:"patient_id"`

	// LesionID is the finding identifier, synthesized as "GT<n>" when the
	// source has none.
	LesionID string `json:"lesion_id"`

	// Position is the lesion location in physical millimeters.
	Position [3]float64 `json:"xyz_mm"`

	// ClinSig is the clinical-significance field, verbatim when present.
	ClinSig string `json:"clinsig,omitempty"`

	// Zone is the anatomical zone, verbatim when present.
	Zone string `json:"zone,omitempty"`

	// GGG and ISUP are grade fields, verbatim when present.
	GGG  string `json:"ggg,omitempty"`
	ISUP string `json:"isup,omitempty"`

	// Source is the path of the label file the entry came from.
	Source string `json:"source,omitempty"`
}
