// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package viewport holds per-plane view state and the crosshair
// coordinator that keeps the three orthogonal views pinned to one shared
// physical-space point.
package viewport

// Plane identifies one of the three orthogonal reconstruction planes.
type Plane int

const (
	Axial Plane = iota
	Coronal
	Sagittal
)

// Planes lists all planes in display order.
var Planes = []Plane{Axial, Coronal, Sagittal}

func (p Plane) String() string {
	switch p {
	case Axial:
		return "axial"
	case Coronal:
		return "coronal"
	case Sagittal:
		return "sagittal"
	}
	return "unknown"
}

// Axis returns the voxel axis normal to the plane: axial slices stack
// along k, coronal along j, sagittal along i.
func (p Plane) Axis() int {
	switch p {
	case Axial:
		return 2
	case Coronal:
		return 1
	default:
		return 0
	}
}

// InPlaneAxes returns the two voxel axes spanned by the plane, in
// (horizontal, vertical) display order.
func (p Plane) InPlaneAxes() [2]int {
	switch p {
	case Axial:
		return [2]int{0, 1}
	case Coronal:
		return [2]int{0, 2}
	default:
		return [2]int{1, 2}
	}
}
