// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package roi

import "fmt"

// axisNames for error messages.
var axisNames = [3]string{"i", "j", "k"}

// OutOfBoundsError is the confirm-time geometry violation: the candidate
// sphere, converted to voxel index space of the currently active series,
// does not fit inside [0, shape-1] on some axis. It is recoverable — the
// candidate is retained unchanged and the user adjusts or cancels.
type OutOfBoundsError struct {
	// Center is the candidate center in physical mm.
	Center [3]float64

	// RadiusMM is the candidate radius.
	RadiusMM float64

	// Axis is the first voxel axis on which the sphere escapes the volume.
	Axis int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("roi out of bounds: sphere r=%.1fmm at (%.1f, %.1f, %.1f) exceeds volume on axis %s",
		e.RadiusMM, e.Center[0], e.Center[1], e.Center[2], axisNames[e.Axis])
}

// ErrNoCandidate is returned by Confirm when no candidate is locked.
type noCandidateError struct{}

func (noCandidateError) Error() string { return "no candidate roi: lock a center first" }

// ErrNoCandidate is the sentinel for confirming without a locked center.
var ErrNoCandidate error = noCandidateError{}
