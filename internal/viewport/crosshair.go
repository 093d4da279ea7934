// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package viewport

import (
	"math"

	"github.com/araratmed/ararat-viewer/internal/geometry"
	"github.com/araratmed/ararat-viewer/pkg/types"
)

// Coordinator owns the single shared physical-space crosshair. The three
// viewports never hold their own copy of the cursor: each plane's slice
// index is a pure projection of the one stored position, so the views
// cannot drift apart.
type Coordinator struct {
	geom *geometry.Geometry
	pos  [3]float64
}

// NewCoordinator creates a coordinator bound to a volume geometry, with
// the crosshair at the volume center.
func NewCoordinator(geom *geometry.Geometry) *Coordinator {
	return &Coordinator{geom: geom, pos: geom.Center()}
}

// Position returns the crosshair in physical mm.
func (c *Coordinator) Position() [3]float64 { return c.pos }

// SetPhysical moves the crosshair to p, clamped per axis to the nearest
// valid voxel center. Out-of-volume points are never rejected.
func (c *Coordinator) SetPhysical(p [3]float64) {
	c.pos = c.geom.ClampPhysical(p)
}

// SetFromViewport converts a click location in one viewport's pixel space
// to a physical point using that viewport's zoom/pan and the volume
// geometry, then updates the shared crosshair. The plane's normal-axis
// component comes from the viewport's current slice.
func (c *Coordinator) SetFromViewport(plane Plane, screen [2]float64, st State) {
	img := st.ScreenToImage(screen)

	var idx [3]float64
	in := plane.InPlaneAxes()
	idx[in[0]] = img[0]
	idx[in[1]] = img[1]
	idx[plane.Axis()] = float64(st.SliceIndex)

	c.pos = c.geom.ClampPhysical(c.geom.VoxelToPhysical(idx))
}

// StepSlice moves the crosshair by delta slices along a plane's normal
// axis, clamped to the volume.
func (c *Coordinator) StepSlice(plane Plane, delta int) {
	idx := c.geom.PhysicalToVoxel(c.pos)
	axis := plane.Axis()
	idx[axis] = math.Round(idx[axis]) + float64(delta)
	c.pos = c.geom.VoxelToPhysical(c.geom.ClampIndex(idx))
}

// Project returns the slice index of the plane nearest the crosshair
// along that plane's normal axis. After any mutation, all three planes'
// projections describe the same single physical point.
func (c *Coordinator) Project(plane Plane) int {
	idx := c.geom.PhysicalToVoxel(c.pos)
	axis := plane.Axis()
	n := int(math.Round(idx[axis]))
	if n < 0 {
		n = 0
	}
	if max := c.geom.Shape()[axis] - 1; n > max {
		n = max
	}
	return n
}

// Rebind points the coordinator at a new geometry. When the new geometry
// differs from the old one the stored position is no longer meaningful,
// so the crosshair resets to the new volume's center; the caller sees no
// error (the mismatch is recovered, not surfaced). Returns true when a
// reset happened.
func (c *Coordinator) Rebind(geom *geometry.Geometry) bool {
	same := c.geom.Equal(geom)
	c.geom = geom
	if same {
		// Same geometry: keep the position, re-clamp for safety.
		c.pos = geom.ClampPhysical(c.pos)
		return false
	}
	c.pos = geom.Center()
	return true
}

// NearestLesion selects the candidate minimizing Euclidean distance from
// ref. Ties break by list order: the first minimum wins.
func NearestLesion(candidates []types.Lesion, ref [3]float64) (types.Lesion, bool) {
	if len(candidates) == 0 {
		return types.Lesion{}, false
	}
	best := candidates[0]
	bestDist := geometry.Dist(best.Position, ref)
	for _, cand := range candidates[1:] {
		if d := geometry.Dist(cand.Position, ref); d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best, true
}

// JumpToNearestLesion moves the crosshair to the ground-truth candidate
// nearest ref (typically the current crosshair or the last confirmed
// ROI). Returns the chosen lesion and false when candidates is empty.
func (c *Coordinator) JumpToNearestLesion(candidates []types.Lesion, ref [3]float64) (types.Lesion, bool) {
	lesion, ok := NearestLesion(candidates, ref)
	if !ok {
		return types.Lesion{}, false
	}
	c.SetPhysical(lesion.Position)
	return lesion, true
}
