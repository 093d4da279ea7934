// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package geometry describes the spatial layout of a loaded 3D image:
// voxel spacing, origin, orientation, and the index↔physical transforms
// derived from them. A Geometry is immutable after construction.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// orthoTol is the tolerance for the direction-matrix orthonormality check.
const orthoTol = 1e-6

// Geometry is the read-only spatial description of one loaded series.
// Index order is (i, j, k) = (column, row, slice); physical coordinates
// are millimeters.
type Geometry struct {
	spacing   [3]float64
	origin    [3]float64
	direction *mat.Dense // 3×3, columns map voxel axes to physical axes
	shape     [3]int
}

// New validates and builds a Geometry. direction is the 3×3 orientation
// matrix in row-major order; it must be orthonormal within tolerance.
// Spacing components must be positive and shape components at least 1.
func New(spacing, origin [3]float64, direction [9]float64, shape [3]int) (*Geometry, error) {
	for a := 0; a < 3; a++ {
		if spacing[a] <= 0 {
			return nil, fmt.Errorf("spacing[%d] = %g: must be positive", a, spacing[a])
		}
		if shape[a] < 1 {
			return nil, fmt.Errorf("shape[%d] = %d: must be at least 1", a, shape[a])
		}
	}

	d := mat.NewDense(3, 3, direction[:])
	if err := checkOrthonormal(d); err != nil {
		return nil, err
	}

	return &Geometry{spacing: spacing, origin: origin, direction: d, shape: shape}, nil
}

// Identity returns a Geometry with an identity orientation, for volumes
// whose axes already align with the physical axes.
func Identity(spacing, origin [3]float64, shape [3]int) (*Geometry, error) {
	return New(spacing, origin, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, shape)
}

// checkOrthonormal verifies Dᵀ·D ≈ I.
func checkOrthonormal(d *mat.Dense) error {
	var dtd mat.Dense
	dtd.Mul(d.T(), d)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			want := 0.0
			if r == c {
				want = 1.0
			}
			if math.Abs(dtd.At(r, c)-want) > orthoTol {
				return fmt.Errorf("direction matrix is not orthonormal: (DᵀD)[%d,%d] = %g", r, c, dtd.At(r, c))
			}
		}
	}
	return nil
}

// Spacing returns the voxel spacing in mm per voxel.
func (g *Geometry) Spacing() [3]float64 { return g.spacing }

// Origin returns the physical coordinates of voxel (0, 0, 0).
func (g *Geometry) Origin() [3]float64 { return g.origin }

// Shape returns the voxel counts per axis.
func (g *Geometry) Shape() [3]int { return g.shape }

// Direction returns the orientation matrix in row-major order.
func (g *Geometry) Direction() [9]float64 {
	var out [9]float64
	copy(out[:], g.direction.RawMatrix().Data)
	return out
}

// NumVoxels returns the total voxel count.
func (g *Geometry) NumVoxels() int {
	return g.shape[0] * g.shape[1] * g.shape[2]
}

// VoxelVolume returns the physical volume of a single voxel in mm³.
func (g *Geometry) VoxelVolume() float64 {
	return g.spacing[0] * g.spacing[1] * g.spacing[2]
}

// VoxelToPhysical maps a continuous voxel index to physical mm:
// p = origin + D·(index ∘ spacing).
func (g *Geometry) VoxelToPhysical(idx [3]float64) [3]float64 {
	v := mat.NewVecDense(3, []float64{
		idx[0] * g.spacing[0],
		idx[1] * g.spacing[1],
		idx[2] * g.spacing[2],
	})
	var p mat.VecDense
	p.MulVec(g.direction, v)
	return [3]float64{
		g.origin[0] + p.AtVec(0),
		g.origin[1] + p.AtVec(1),
		g.origin[2] + p.AtVec(2),
	}
}

// PhysicalToVoxel maps a physical point to a continuous voxel index.
// The direction matrix is orthonormal, so its inverse is its transpose.
func (g *Geometry) PhysicalToVoxel(p [3]float64) [3]float64 {
	d := mat.NewVecDense(3, []float64{
		p[0] - g.origin[0],
		p[1] - g.origin[1],
		p[2] - g.origin[2],
	})
	var r mat.VecDense
	r.MulVec(g.direction.T(), d)
	return [3]float64{
		r.AtVec(0) / g.spacing[0],
		r.AtVec(1) / g.spacing[1],
		r.AtVec(2) / g.spacing[2],
	}
}

// ClampIndex clamps a continuous index per axis to [0, shape-1].
func (g *Geometry) ClampIndex(idx [3]float64) [3]float64 {
	var out [3]float64
	for a := 0; a < 3; a++ {
		out[a] = math.Min(math.Max(idx[a], 0), float64(g.shape[a]-1))
	}
	return out
}

// RoundIndex rounds a continuous index to the nearest integer voxel.
func RoundIndex(idx [3]float64) [3]int {
	return [3]int{
		int(math.Round(idx[0])),
		int(math.Round(idx[1])),
		int(math.Round(idx[2])),
	}
}

// ContainsIndex reports whether an integer voxel index lies inside the
// volume.
func (g *Geometry) ContainsIndex(idx [3]int) bool {
	for a := 0; a < 3; a++ {
		if idx[a] < 0 || idx[a] >= g.shape[a] {
			return false
		}
	}
	return true
}

// ClampPhysical maps a physical point into the volume by clamping its
// voxel index per axis and mapping back, yielding the nearest valid voxel
// center. Points already inside are returned on the voxel grid's
// continuous coordinates unchanged.
func (g *Geometry) ClampPhysical(p [3]float64) [3]float64 {
	return g.VoxelToPhysical(g.ClampIndex(g.PhysicalToVoxel(p)))
}

// Center returns the physical position of the volume center.
func (g *Geometry) Center() [3]float64 {
	return g.VoxelToPhysical([3]float64{
		float64(g.shape[0]-1) / 2,
		float64(g.shape[1]-1) / 2,
		float64(g.shape[2]-1) / 2,
	})
}

// Equal reports whether two geometries match within tolerance. A swap to
// a non-equal geometry invalidates any cached physical positions.
func (g *Geometry) Equal(o *Geometry) bool {
	if o == nil {
		return false
	}
	if g.shape != o.shape {
		return false
	}
	for a := 0; a < 3; a++ {
		if math.Abs(g.spacing[a]-o.spacing[a]) > orthoTol || math.Abs(g.origin[a]-o.origin[a]) > orthoTol {
			return false
		}
	}
	gd, od := g.Direction(), o.Direction()
	for i := range gd {
		if math.Abs(gd[i]-od[i]) > orthoTol {
			return false
		}
	}
	return true
}

// Dist returns the Euclidean distance between two physical points.
func Dist(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
