// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package viewport

import (
	"github.com/araratmed/ararat-viewer/pkg/types"
)

// Interpolation selects how slice pixels are resampled for display.
type Interpolation string

const (
	Nearest Interpolation = "nearest"
	Linear  Interpolation = "linear"
)

// minZoom and minWindowWidth keep the strictly-positive invariants under
// repeated zoom-out / window-narrow actions.
const (
	minZoom        = 0.05
	minWindowWidth = 1e-3
)

// State is the mutable view state of one plane. SliceIndex is derived
// from the crosshair via Coordinator.Project and is not independently
// authoritative.
type State struct {
	SliceIndex    int
	Zoom          float64
	Pan           [2]float64
	WindowCenter  float64
	WindowWidth   float64
	Interpolation Interpolation
}

// NewState returns a State at the configured defaults.
func NewState(cfg types.ViewportConfig) State {
	s := State{Interpolation: Nearest}
	s.Reset(cfg)
	return s
}

// Reset restores zoom, pan, and window/level to the configured defaults.
// The slice index is left alone; it follows the crosshair.
func (s *State) Reset(cfg types.ViewportConfig) {
	s.SetZoom(cfg.DefaultZoom)
	s.Pan = [2]float64{0, 0}
	s.ResetWindow(cfg)
}

// ResetWindow restores only window/level.
func (s *State) ResetWindow(cfg types.ViewportConfig) {
	s.WindowCenter = cfg.DefaultWindowCenter
	s.SetWindowWidth(cfg.DefaultWindowWidth)
}

// SetZoom clamps the zoom factor to stay strictly positive.
func (s *State) SetZoom(z float64) {
	if z < minZoom {
		z = minZoom
	}
	s.Zoom = z
}

// SetWindowWidth clamps the window width to stay strictly positive.
func (s *State) SetWindowWidth(w float64) {
	if w < minWindowWidth {
		w = minWindowWidth
	}
	s.WindowWidth = w
}

// ScreenToImage converts a viewport pixel coordinate to in-plane image
// coordinates under the current zoom and pan.
func (s *State) ScreenToImage(p [2]float64) [2]float64 {
	return [2]float64{
		p[0]/s.Zoom + s.Pan[0],
		p[1]/s.Zoom + s.Pan[1],
	}
}
