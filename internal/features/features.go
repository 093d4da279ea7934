// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package features computes first-order and shape statistics over the
// voxels a mask selects from a volume. Feature names follow the
// original_firstorder_* / original_shape_* convention the downstream
// model was trained on.
package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/araratmed/ararat-viewer/internal/volume"
)

const binWidth = 25.0 // fixed-width intensity binning for entropy/uniformity

// Extract computes the full feature map for the masked region. The mask
// must share the volume's geometry. An empty mask is an *ExtractionError:
// there is nothing to summarize and zero-filled features would silently
// poison the model input.
func Extract(vol *volume.Volume, mask *volume.Mask) (map[string]float64, error) {
	if !vol.Geom.Equal(mask.Geom) {
		return nil, &ExtractionError{Reason: "volume and mask geometries differ"}
	}

	vals := make([]float64, 0, 1024)
	for i, m := range mask.Data {
		if m != 0 {
			vals = append(vals, float64(vol.Data[i]))
		}
	}
	if len(vals) == 0 {
		return nil, &ExtractionError{Reason: "mask selects no voxels"}
	}
	sort.Float64s(vals)

	n := float64(len(vals))
	mean := stat.Mean(vals, nil)
	variance := stat.Variance(vals, nil)
	minV := vals[0]
	maxV := vals[len(vals)-1]

	var energy, sumAbsDev float64
	for _, v := range vals {
		energy += v * v
		sumAbsDev += math.Abs(v - mean)
	}

	p10 := stat.Quantile(0.10, stat.Empirical, vals, nil)
	p25 := stat.Quantile(0.25, stat.Empirical, vals, nil)
	p50 := stat.Quantile(0.50, stat.Empirical, vals, nil)
	p75 := stat.Quantile(0.75, stat.Empirical, vals, nil)
	p90 := stat.Quantile(0.90, stat.Empirical, vals, nil)

	entropy, uniformity := histogramStats(vals, minV)

	voxelVol := vol.Geom.VoxelVolume()
	volumeMM3 := n * voxelVol
	// diameter of the sphere with the same volume
	eqDiameter := 2 * math.Cbrt(3*volumeMM3/(4*math.Pi))

	feats := map[string]float64{
		"original_firstorder_Energy":                 energy,
		"original_firstorder_Entropy":                entropy,
		"original_firstorder_Minimum":                minV,
		"original_firstorder_10Percentile":           p10,
		"original_firstorder_90Percentile":           p90,
		"original_firstorder_Maximum":                maxV,
		"original_firstorder_Mean":                   mean,
		"original_firstorder_Median":                 p50,
		"original_firstorder_InterquartileRange":     p75 - p25,
		"original_firstorder_Range":                  maxV - minV,
		"original_firstorder_MeanAbsoluteDeviation":  sumAbsDev / n,
		"original_firstorder_RootMeanSquared":        math.Sqrt(energy / n),
		"original_firstorder_Variance":               variance,
		"original_firstorder_Skewness":               stat.Skew(vals, nil),
		"original_firstorder_Kurtosis":               stat.ExKurtosis(vals, nil) + 3,
		"original_firstorder_Uniformity":             uniformity,
		"original_shape_VoxelNum":                    n,
		"original_shape_VoxelVolume":                 volumeMM3,
		"original_shape_EquivalentSphericalDiameter": eqDiameter,
	}
	return feats, nil
}

// histogramStats bins intensities at a fixed width and returns the
// Shannon entropy (bits) and uniformity of the bin probabilities.
func histogramStats(sorted []float64, minV float64) (entropy, uniformity float64) {
	counts := map[int]int{}
	for _, v := range sorted {
		counts[int(math.Floor((v-minV)/binWidth))]++
	}
	n := float64(len(sorted))
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
		uniformity += p * p
	}
	return entropy, uniformity
}

// Select orders feats by the model's declared feature list. Every
// declared feature must be present; a gap is a hard *MissingFeatureError
// so a half-filled row never reaches the model.
func Select(feats map[string]float64, declared []string) ([]float64, error) {
	out := make([]float64, 0, len(declared))
	var missing []string
	for _, name := range declared {
		v, ok := feats[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out = append(out, v)
	}
	if len(missing) > 0 {
		return nil, &MissingFeatureError{Missing: missing}
	}
	return out, nil
}
