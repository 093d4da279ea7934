// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export runs the export/inference pipeline for confirmed ROIs:
// sphere rasterization, mask and features artifacts, and the inference
// subprocess dispatch, with per-ROI failure isolation.
package export

import (
	"math"

	"github.com/araratmed/ararat-viewer/internal/geometry"
	"github.com/araratmed/ararat-viewer/internal/volume"
)

// Rasterize builds the binary sphere mask on the given geometry: a voxel
// is inside iff its physical center lies within radiusMM of center. Only
// the sphere's voxel bounding box is scanned; the box is clipped to the
// volume, so a sphere partially outside simply truncates.
func Rasterize(geom *geometry.Geometry, center [3]float64, radiusMM float64) *volume.Mask {
	mask := volume.NewMask(geom)

	idx := geom.PhysicalToVoxel(center)
	spacing := geom.Spacing()
	shape := geom.Shape()

	var lo, hi [3]int
	for a := 0; a < 3; a++ {
		pad := int(math.Ceil(radiusMM / spacing[a]))
		lo[a] = int(math.Round(idx[a])) - pad
		hi[a] = int(math.Round(idx[a])) + pad
		if lo[a] < 0 {
			lo[a] = 0
		}
		if hi[a] > shape[a]-1 {
			hi[a] = shape[a] - 1
		}
	}

	for k := lo[2]; k <= hi[2]; k++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for i := lo[0]; i <= hi[0]; i++ {
				p := geom.VoxelToPhysical([3]float64{float64(i), float64(j), float64(k)})
				if geometry.Dist(p, center) <= radiusMM {
					mask.Set(i, j, k, 1)
				}
			}
		}
	}
	return mask
}
