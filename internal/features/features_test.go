package features

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/araratmed/ararat-viewer/internal/geometry"
	"github.com/araratmed/ararat-viewer/internal/volume"
)

func makeRegion(t *testing.T) (*volume.Volume, *volume.Mask) {
	t.Helper()
	g, err := geometry.Identity([3]float64{1, 1, 3}, [3]float64{0, 0, 0}, [3]int{10, 10, 10})
	require.NoError(t, err)
	vol := volume.NewVolume(g)
	mask := volume.NewMask(g)

	// A 2x2x2 block of known intensities.
	vals := []float32{10, 20, 30, 40, 50, 60, 70, 80}
	n := 0
	for k := 2; k < 4; k++ {
		for j := 2; j < 4; j++ {
			for i := 2; i < 4; i++ {
				vol.Set(i, j, k, vals[n])
				mask.Set(i, j, k, 1)
				n++
			}
		}
	}
	return vol, mask
}

func TestExtract_FirstOrderStats(t *testing.T) {
	vol, mask := makeRegion(t)
	feats, err := Extract(vol, mask)
	require.NoError(t, err)

	assert.InDelta(t, 45.0, feats["original_firstorder_Mean"], 1e-9)
	assert.InDelta(t, 10.0, feats["original_firstorder_Minimum"], 1e-9)
	assert.InDelta(t, 80.0, feats["original_firstorder_Maximum"], 1e-9)
	assert.InDelta(t, 70.0, feats["original_firstorder_Range"], 1e-9)
	assert.InDelta(t, 10*10+20*20+30*30+40*40+50*50+60*60+70*70+80*80,
		feats["original_firstorder_Energy"], 1e-6)
	rms := math.Sqrt(feats["original_firstorder_Energy"] / 8)
	assert.InDelta(t, rms, feats["original_firstorder_RootMeanSquared"], 1e-9)

	// Symmetric distribution has zero skew.
	assert.InDelta(t, 0.0, feats["original_firstorder_Skewness"], 1e-9)
}

func TestExtract_ShapeFeatures(t *testing.T) {
	vol, mask := makeRegion(t)
	feats, err := Extract(vol, mask)
	require.NoError(t, err)

	assert.Equal(t, 8.0, feats["original_shape_VoxelNum"])
	assert.InDelta(t, 8*3.0, feats["original_shape_VoxelVolume"], 1e-9) // 1x1x3mm voxels
	wantD := 2 * math.Cbrt(3*24.0/(4*math.Pi))
	assert.InDelta(t, wantD, feats["original_shape_EquivalentSphericalDiameter"], 1e-9)
}

func TestExtract_EmptyMask(t *testing.T) {
	vol, _ := makeRegion(t)
	empty := volume.NewMask(vol.Geom)
	_, err := Extract(vol, empty)
	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
}

func TestExtract_GeometryMismatch(t *testing.T) {
	vol, _ := makeRegion(t)
	other, err := geometry.Identity([3]float64{2, 2, 2}, [3]float64{0, 0, 0}, [3]int{10, 10, 10})
	require.NoError(t, err)
	_, err = Extract(vol, volume.NewMask(other))
	var ee *ExtractionError
	assert.ErrorAs(t, err, &ee)
}

func TestSelect_OrdersAndFailsHard(t *testing.T) {
	feats := map[string]float64{
		"original_firstorder_Mean":   45,
		"original_firstorder_Median": 40,
		"original_shape_VoxelNum":    8,
	}

	row, err := Select(feats, []string{"original_shape_VoxelNum", "original_firstorder_Mean"})
	require.NoError(t, err)
	assert.Equal(t, []float64{8, 45}, row)

	_, err = Select(feats, []string{"original_firstorder_Mean", "original_glcm_Contrast"})
	var mfe *MissingFeatureError
	require.ErrorAs(t, err, &mfe)
	assert.Equal(t, []string{"original_glcm_Contrast"}, mfe.Missing)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features_L1.csv")
	cols := []string{"original_firstorder_Mean", "original_shape_VoxelNum"}
	require.NoError(t, WriteCSV(path, cols, []float64{45.5, 8}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, cols, rows[0])
	assert.Equal(t, []string{"45.5", "8"}, rows[1])

	assert.Error(t, WriteCSV(path, cols, []float64{1}))
}
