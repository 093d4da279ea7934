package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeometry(t *testing.T) *Geometry {
	t.Helper()
	g, err := Identity([3]float64{1, 1, 3}, [3]float64{0, 0, 0}, [3]int{100, 100, 50})
	require.NoError(t, err)
	return g
}

func TestNew_RejectsInvalidInputs(t *testing.T) {
	_, err := Identity([3]float64{1, 0, 1}, [3]float64{}, [3]int{10, 10, 10})
	assert.Error(t, err)

	_, err = Identity([3]float64{1, 1, 1}, [3]float64{}, [3]int{10, 0, 10})
	assert.Error(t, err)

	// A scaled matrix is not orthonormal.
	_, err = New([3]float64{1, 1, 1}, [3]float64{}, [9]float64{2, 0, 0, 0, 2, 0, 0, 0, 2}, [3]int{10, 10, 10})
	assert.Error(t, err)

	// A rotation about z is.
	c, s := math.Cos(0.3), math.Sin(0.3)
	_, err = New([3]float64{1, 1, 1}, [3]float64{}, [9]float64{c, -s, 0, s, c, 0, 0, 0, 1}, [3]int{10, 10, 10})
	assert.NoError(t, err)
}

func TestVoxelToPhysical_AnisotropicSpacing(t *testing.T) {
	g := testGeometry(t)

	// Voxel (50,50,25) with spacing (1,1,3) lands at (50,50,75) mm.
	p := g.VoxelToPhysical([3]float64{50, 50, 25})
	assert.InDelta(t, 50.0, p[0], 1e-9)
	assert.InDelta(t, 50.0, p[1], 1e-9)
	assert.InDelta(t, 75.0, p[2], 1e-9)
}

func TestTransformRoundTrip(t *testing.T) {
	c, s := math.Cos(0.5), math.Sin(0.5)
	g, err := New(
		[3]float64{0.5, 0.7, 3.2},
		[3]float64{-87.3, 12.1, 4.0},
		[9]float64{c, -s, 0, s, c, 0, 0, 0, 1},
		[3]int{64, 64, 20},
	)
	require.NoError(t, err)

	idx := [3]float64{13.25, 40.5, 7}
	back := g.PhysicalToVoxel(g.VoxelToPhysical(idx))
	for a := 0; a < 3; a++ {
		assert.InDelta(t, idx[a], back[a], 1e-9)
	}
}

func TestClampIndex(t *testing.T) {
	g := testGeometry(t)

	got := g.ClampIndex([3]float64{-3, 50, 120})
	assert.Equal(t, [3]float64{0, 50, 49}, got)
}

func TestClampPhysical_OutsidePointSnapsToNearestVoxelCenter(t *testing.T) {
	g := testGeometry(t)

	p := g.ClampPhysical([3]float64{-10, 40, 500})
	idx := g.PhysicalToVoxel(p)
	assert.InDelta(t, 0.0, idx[0], 1e-9)
	assert.InDelta(t, 40.0, idx[1], 1e-9)
	assert.InDelta(t, 49.0, idx[2], 1e-9)
}

func TestCenterAndEqual(t *testing.T) {
	g := testGeometry(t)

	center := g.Center()
	idx := g.PhysicalToVoxel(center)
	assert.InDelta(t, 49.5, idx[0], 1e-9)
	assert.InDelta(t, 24.5, idx[2], 1e-9)

	same := testGeometry(t)
	assert.True(t, g.Equal(same))

	other, err := Identity([3]float64{1, 1, 3}, [3]float64{0, 0, 1}, [3]int{100, 100, 50})
	require.NoError(t, err)
	assert.False(t, g.Equal(other))
	assert.False(t, g.Equal(nil))
}

func TestDist(t *testing.T) {
	assert.InDelta(t, math.Sqrt(14), Dist([3]float64{0, 0, 0}, [3]float64{1, 2, 3}), 1e-12)
}
