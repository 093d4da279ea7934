// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the domain types and per-stage configuration structs
// shared across the viewer core.
package types

import "time"

// ViewportConfig holds default view settings applied when a viewport is
// created or reset.
type ViewportConfig struct {
	// DefaultZoom is the zoom factor applied on reset (default 1.0).
	DefaultZoom float64 `json:"default_zoom" yaml:"default_zoom"`

	// DefaultWindowCenter is the intensity window center applied on reset.
	DefaultWindowCenter float64 `json:"default_window_center" yaml:"default_window_center"`

	// DefaultWindowWidth is the intensity window width applied on reset
	// (must be > 0; default 400).
	DefaultWindowWidth float64 `json:"default_window_width" yaml:"default_window_width"`

	// KeepWindowOnSeriesChange preserves window/level across a series
	// change instead of resetting to defaults. Zoom, pan and slice index
	// always reset.
	KeepWindowOnSeriesChange bool `json:"keep_window_on_series_change" yaml:"keep_window_on_series_change"`
}

// ROIConfig holds radius bounds for region-of-interest spheres.
type ROIConfig struct {
	// DefaultRadiusMM is the radius assigned to a fresh candidate when no
	// previous radius exists (default 5.0).
	DefaultRadiusMM float64 `json:"default_radius_mm" yaml:"default_radius_mm"`

	// MinRadiusMM and MaxRadiusMM bound radius adjustments (defaults 2.0
	// and 30.0).
	MinRadiusMM float64 `json:"min_radius_mm" yaml:"min_radius_mm"`
	MaxRadiusMM float64 `json:"max_radius_mm" yaml:"max_radius_mm"`

	// RadiusStepMM is the increment applied per adjustment action
	// (default 0.5).
	RadiusStepMM float64 `json:"radius_step_mm" yaml:"radius_step_mm"`
}

// ExportConfig holds settings for the export/inference orchestrator.
type ExportConfig struct {
	// OutputRoot is the base directory for export artifacts; each batch
	// writes to OutputRoot/<case_id>/<timestamp>/.
	OutputRoot string `json:"output_root" yaml:"output_root"`

	// Workers bounds the number of ROIs processed concurrently in a batch
	// (default 2).
	Workers int `json:"workers" yaml:"workers"`
}

// InferenceConfig holds settings for the isolated inference runtime. The
// persisted model artifact is bound to exact library versions, so inference
// always runs in a separate, version-pinned interpreter.
type InferenceConfig struct {
	// Python is the path to the pinned interpreter (e.g.
	// ".venv_infer/bin/python").
	Python string `json:"python" yaml:"python"`

	// ModelDir is the model directory containing meta.yaml/meta.json and
	// the model artifact.
	ModelDir string `json:"model_dir" yaml:"model_dir"`

	// WorkDir is the working directory for the inference subprocess
	// (default: current directory).
	WorkDir string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`

	// Timeout bounds a single inference invocation; an expired invocation
	// is treated as failed, never left hanging (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// RiskConfig holds the two thresholds that split a malignancy probability
// into low/intermediate/high buckets.
type RiskConfig struct {
	// LowMax is the exclusive upper bound of the low bucket (default 0.25).
	LowMax float64 `json:"low_max" yaml:"low_max"`

	// HighMin is the inclusive lower bound of the high bucket (default 0.60).
	HighMin float64 `json:"high_min" yaml:"high_min"`
}

// ViewerConfig groups all stage configurations for the viewer core.
type ViewerConfig struct {
	// DataRoot is the root directory holding case data and label files.
	DataRoot string `json:"data_root" yaml:"data_root"`

	Viewport  ViewportConfig  `json:"viewport" yaml:"viewport"`
	ROI       ROIConfig       `json:"roi" yaml:"roi"`
	Export    ExportConfig    `json:"export" yaml:"export"`
	Inference InferenceConfig `json:"inference" yaml:"inference"`
	Risk      RiskConfig      `json:"risk" yaml:"risk"`
}

// DefaultConfig returns a ViewerConfig populated with the documented
// defaults for every stage.
func DefaultConfig() ViewerConfig {
	return ViewerConfig{
		Viewport: ViewportConfig{
			DefaultZoom:         1.0,
			DefaultWindowCenter: 200,
			DefaultWindowWidth:  400,
		},
		ROI: ROIConfig{
			DefaultRadiusMM: 5.0,
			MinRadiusMM:     2.0,
			MaxRadiusMM:     30.0,
			RadiusStepMM:    0.5,
		},
		Export: ExportConfig{
			OutputRoot: "exports",
			Workers:    2,
		},
		Inference: InferenceConfig{
			Timeout: 120 * time.Second,
		},
		Risk: RiskConfig{
			LowMax:  0.25,
			HighMin: 0.60,
		},
	}
}
