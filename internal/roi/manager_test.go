package roi

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/araratmed/ararat-viewer/internal/geometry"
	"github.com/araratmed/ararat-viewer/internal/manifest"
	"github.com/araratmed/ararat-viewer/pkg/types"
)

func testGeom(t *testing.T) *geometry.Geometry {
	t.Helper()
	g, err := geometry.Identity([3]float64{1, 1, 3}, [3]float64{0, 0, 0}, [3]int{100, 100, 50})
	require.NoError(t, err)
	return g
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(types.DefaultConfig().ROI, zerolog.Nop())
	m.OpenCase("case01")
	return m
}

func confirmCtx(t *testing.T) ConfirmContext {
	return ConfirmContext{Geometry: testGeom(t), SeriesUID: "1.2.3", Plane: "axial", SliceIndex: 25}
}

type recordingAppender struct {
	rows []manifest.Row
	err  error
}

func (a *recordingAppender) Append(r manifest.Row) error {
	a.rows = append(a.rows, r)
	return a.err
}

func TestBeginCandidate_ReclickRecenters(t *testing.T) {
	m := newTestManager(t)

	c := m.BeginCandidate([3]float64{10, 20, 30})
	assert.Equal(t, types.StateCandidate, c.State)
	assert.Empty(t, c.ID)
	assert.Equal(t, 5.0, c.RadiusMM)

	// Second click replaces the center; still exactly one candidate.
	c = m.BeginCandidate([3]float64{40, 40, 40})
	assert.Equal(t, [3]float64{40, 40, 40}, c.CenterPhysical)

	got, ok := m.Candidate()
	require.True(t, ok)
	assert.Equal(t, [3]float64{40, 40, 40}, got.CenterPhysical)
}

func TestAdjustRadius_ClampsAtBounds(t *testing.T) {
	m := newTestManager(t)
	m.BeginCandidate([3]float64{50, 50, 75})

	for i := 0; i < 500; i++ {
		m.AdjustRadius(1)
	}
	c, _ := m.Candidate()
	assert.Equal(t, 30.0, c.RadiusMM)

	for i := 0; i < 500; i++ {
		m.AdjustRadius(-1)
	}
	c, _ = m.Candidate()
	assert.Equal(t, 2.0, c.RadiusMM)
}

func TestAdjustRadius_CarriesToNextCandidate(t *testing.T) {
	m := newTestManager(t)
	m.BeginCandidate([3]float64{50, 50, 75})
	m.AdjustRadius(4) // 5.0 + 4*0.5 = 7.0
	m.Cancel()

	c := m.BeginCandidate([3]float64{30, 30, 60})
	assert.Equal(t, 7.0, c.RadiusMM)
}

func TestCancel_NoSideEffects(t *testing.T) {
	m := newTestManager(t)
	m.BeginCandidate([3]float64{50, 50, 75})
	m.Cancel()

	_, ok := m.Candidate()
	assert.False(t, ok)
	assert.Empty(t, m.Confirmed())
}

func TestConfirm_AssignsSequentialLabels(t *testing.T) {
	m := newTestManager(t)
	app := &recordingAppender{}
	m.Manifest = app

	m.BeginCandidate([3]float64{50, 50, 75})
	r1, err := m.Confirm(confirmCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "L1", r1.ID)
	assert.Equal(t, types.StateConfirmed, r1.State)
	assert.Equal(t, "1.2.3", r1.SourceSeries)

	m.BeginCandidate([3]float64{40, 60, 60})
	r2, err := m.Confirm(confirmCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "L2", r2.ID)

	// Candidate slot is free again.
	_, ok := m.Candidate()
	assert.False(t, ok)

	require.Len(t, app.rows, 2)
	assert.Equal(t, "L1", app.rows[0].Label)
	assert.Equal(t, 75.0, app.rows[0].CenterZ)
}

func TestConfirm_WithoutCandidate(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Confirm(confirmCtx(t))
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestConfirm_OutOfBoundsKeepsCandidateUnchanged(t *testing.T) {
	m := newTestManager(t)

	// Sphere pokes out of the k=0 face: center at slice 0, radius 5mm
	// but only 3mm of slab above.
	m.BeginCandidate([3]float64{50, 50, 0})
	before, _ := m.Candidate()

	for i := 0; i < 3; i++ { // repeated confirms are idempotent rejections
		_, err := m.Confirm(confirmCtx(t))
		var oob *OutOfBoundsError
		require.ErrorAs(t, err, &oob)
		assert.Equal(t, 2, oob.Axis)

		after, ok := m.Candidate()
		require.True(t, ok)
		assert.Equal(t, before, after)
	}
	assert.Empty(t, m.Confirmed())
}

func TestConfirm_RevalidatesAgainstActiveSeries(t *testing.T) {
	m := newTestManager(t)

	// Candidate locked while a large volume was active...
	m.BeginCandidate([3]float64{50, 50, 75})
	_, err := m.Confirm(confirmCtx(t))
	require.NoError(t, err)

	// ...but the same point fails against a smaller series active at
	// confirm time.
	small, err := geometry.Identity([3]float64{1, 1, 3}, [3]float64{0, 0, 0}, [3]int{40, 40, 20})
	require.NoError(t, err)

	m.BeginCandidate([3]float64{50, 50, 75})
	_, err = m.Confirm(ConfirmContext{Geometry: small, SeriesUID: "other"})
	var oob *OutOfBoundsError
	assert.ErrorAs(t, err, &oob)
}

func TestDeleteLast_StackDiscipline(t *testing.T) {
	m := newTestManager(t)

	for _, center := range [][3]float64{{50, 50, 75}, {40, 40, 60}, {60, 60, 90}} {
		m.BeginCandidate(center)
		_, err := m.Confirm(confirmCtx(t))
		require.NoError(t, err)
	}

	removed, ok := m.DeleteLast()
	require.True(t, ok)
	assert.Equal(t, "L3", removed.ID)
	assert.Len(t, m.Confirmed(), 2)

	// Counter regresses with the stack: the next confirm reuses L3.
	m.BeginCandidate([3]float64{50, 50, 75})
	r, err := m.Confirm(confirmCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "L3", r.ID)
}

func TestDeleteLast_EmptyIsNoop(t *testing.T) {
	m := newTestManager(t)
	_, ok := m.DeleteLast()
	assert.False(t, ok)
}

func TestResultReconciliation(t *testing.T) {
	m := newTestManager(t)
	m.BeginCandidate([3]float64{50, 50, 75})
	r, err := m.Confirm(confirmCtx(t))
	require.NoError(t, err)

	m.MarkExported([]string{r.ID})
	got, _ := m.Get(r.ID)
	assert.Equal(t, types.StateExported, got.State)

	// A pipeline failure surfaces a marker, state stays export-side.
	require.True(t, m.MarkExportFailed(r.ID, "InferenceDispatchError: timeout"))
	got, _ = m.Get(r.ID)
	assert.Equal(t, types.StateExportedWithError, got.State)
	assert.Equal(t, "InferenceDispatchError: timeout", got.FailureReason)
	assert.Nil(t, got.Risk)

	// A retry that succeeds promotes to Predicted and clears the marker.
	require.True(t, m.ApplyResult(r.ID, types.RiskEstimate{Probability: 0.8, Threshold: 0.4, Label: 1, Bucket: types.RiskHigh}))
	got, _ = m.Get(r.ID)
	assert.Equal(t, types.StatePredicted, got.State)
	require.NotNil(t, got.Risk)
	assert.Equal(t, 0.8, got.Risk.Probability)
	assert.Empty(t, got.FailureReason)

	// Results never apply to a Confirmed-only ROI.
	m.BeginCandidate([3]float64{40, 40, 60})
	r2, err := m.Confirm(confirmCtx(t))
	require.NoError(t, err)
	assert.False(t, m.ApplyResult(r2.ID, types.RiskEstimate{}))
}

func TestValidateAll(t *testing.T) {
	m := newTestManager(t)

	m.BeginCandidate([3]float64{50, 50, 75})
	_, err := m.Confirm(confirmCtx(t))
	require.NoError(t, err)

	// Near a face: PARTIAL. Outside entirely: OUT.
	small, err := geometry.Identity([3]float64{1, 1, 3}, [3]float64{0, 0, 0}, [3]int{100, 100, 26})
	require.NoError(t, err)

	status := m.ValidateAll(testGeom(t))
	assert.Equal(t, StatusOK, status["L1"])

	status = m.ValidateAll(small) // z=75mm is slice 25 of 26: sphere crosses the top face
	assert.Equal(t, StatusPartial, status["L1"])

	tiny, err := geometry.Identity([3]float64{1, 1, 3}, [3]float64{0, 0, 0}, [3]int{100, 100, 20})
	require.NoError(t, err)
	status = m.ValidateAll(tiny)
	assert.Equal(t, StatusOut, status["L1"])
}

func TestAutosaveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m := NewManager(types.DefaultConfig().ROI, zerolog.Nop())
	m.AutosaveDir = dir
	m.OpenCase("case01")

	m.BeginCandidate([3]float64{50, 50, 75})
	_, err := m.Confirm(confirmCtx(t))
	require.NoError(t, err)
	m.BeginCandidate([3]float64{40, 40, 60})
	r2, err := m.Confirm(confirmCtx(t))
	require.NoError(t, err)
	m.MarkExported([]string{r2.ID})

	// A fresh manager on the same case restores the confirmed set and
	// continues the label sequence.
	m2 := NewManager(types.DefaultConfig().ROI, zerolog.Nop())
	m2.AutosaveDir = dir
	m2.OpenCase("case01")

	restored := m2.Confirmed()
	require.Len(t, restored, 2)
	assert.Equal(t, "L1", restored[0].ID)
	assert.Equal(t, types.StateConfirmed, restored[1].State) // export state is session-local

	m2.BeginCandidate([3]float64{60, 60, 90})
	r3, err := m2.Confirm(confirmCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "L3", r3.ID)
}

func TestConfirm_ManifestFailureDoesNotBlock(t *testing.T) {
	m := newTestManager(t)
	m.Manifest = &recordingAppender{err: errors.New("disk full")}

	m.BeginCandidate([3]float64{50, 50, 75})
	r, err := m.Confirm(confirmCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "L1", r.ID)
}
