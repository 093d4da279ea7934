// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package volume holds in-memory voxel data bound to a geometry, plus
// NRRD reading/writing for mask artifacts and source volumes. Raw DICOM
// parsing is an external collaborator; NRRD is the exchange format here.
package volume

import (
	"github.com/araratmed/ararat-viewer/internal/geometry"
)

// Volume is a scalar image volume. Data is stored in k-j-i order (slice,
// row, column), matching the slice-major layout the renderer consumes.
type Volume struct {
	Geom *geometry.Geometry
	Data []float32
}

// NewVolume allocates a zero-filled volume for the given geometry.
func NewVolume(geom *geometry.Geometry) *Volume {
	return &Volume{Geom: geom, Data: make([]float32, geom.NumVoxels())}
}

// At returns the voxel value at integer index (i, j, k).
func (v *Volume) At(i, j, k int) float32 {
	return v.Data[v.offset(i, j, k)]
}

// Set assigns the voxel value at integer index (i, j, k).
func (v *Volume) Set(i, j, k int, val float32) {
	v.Data[v.offset(i, j, k)] = val
}

func (v *Volume) offset(i, j, k int) int {
	shape := v.Geom.Shape()
	return (k*shape[1]+j)*shape[0] + i
}

// Mask is a binary volume in the same layout as Volume. Voxels are 1
// inside the region and 0 outside.
type Mask struct {
	Geom *geometry.Geometry
	Data []uint8
}

// NewMask allocates an empty mask for the given geometry.
func NewMask(geom *geometry.Geometry) *Mask {
	return &Mask{Geom: geom, Data: make([]uint8, geom.NumVoxels())}
}

// At returns the mask value at integer index (i, j, k).
func (m *Mask) At(i, j, k int) uint8 {
	return m.Data[m.offset(i, j, k)]
}

// Set assigns the mask value at integer index (i, j, k).
func (m *Mask) Set(i, j, k int, val uint8) {
	m.Data[m.offset(i, j, k)] = val
}

func (m *Mask) offset(i, j, k int) int {
	shape := m.Geom.Shape()
	return (k*shape[1]+j)*shape[0] + i
}

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}
