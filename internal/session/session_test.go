package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/araratmed/ararat-viewer/internal/export"
	"github.com/araratmed/ararat-viewer/internal/geometry"
	"github.com/araratmed/ararat-viewer/internal/gtruth"
	"github.com/araratmed/ararat-viewer/internal/inference"
	"github.com/araratmed/ararat-viewer/internal/roi"
	"github.com/araratmed/ararat-viewer/internal/viewport"
	"github.com/araratmed/ararat-viewer/internal/volume"
	"github.com/araratmed/ararat-viewer/pkg/types"
)

type fakeExporter struct {
	batches []export.Batch
	retries []string
	runErr  error
}

func (f *fakeExporter) Run(ctx context.Context, b export.Batch) (string, string, error) {
	if f.runErr != nil {
		return "", "", f.runErr
	}
	f.batches = append(f.batches, b)
	return "batch-1", "/tmp/exports/x", nil
}

func (f *fakeExporter) Retry(ctx context.Context, roiID string) error {
	f.retries = append(f.retries, roiID)
	return nil
}

func testVolume(t *testing.T, shape [3]int) *volume.Volume {
	t.Helper()
	g, err := geometry.Identity([3]float64{1, 1, 3}, [3]float64{0, 0, 0}, shape)
	require.NoError(t, err)
	return volume.NewVolume(g)
}

func newSession(t *testing.T) (*Session, *fakeExporter) {
	t.Helper()
	cfg := types.DefaultConfig()
	fe := &fakeExporter{}
	s := New(cfg,
		roi.NewManager(cfg.ROI, zerolog.Nop()),
		gtruth.NewMatcher(zerolog.Nop()),
		fe, zerolog.Nop())
	s.OpenCase("case01")
	s.SetSeries("1.2.3", testVolume(t, [3]int{100, 100, 50}))
	return s, fe
}

func confirmAt(t *testing.T, s *Session, center [3]float64) types.ROI {
	t.Helper()
	s.ROIs().BeginCandidate(center)
	r, err := s.ConfirmCandidate(viewport.Axial)
	require.NoError(t, err)
	return r
}

func TestSetSeries_ResetsViewAndCentersCrosshair(t *testing.T) {
	s, _ := newSession(t)

	// Crosshair starts at the volume center.
	assert.Equal(t, [3]float64{49.5, 49.5, 73.5}, s.Crosshair())
	for _, p := range viewport.Planes {
		assert.Equal(t, 1.0, s.Viewport(p).Zoom)
	}

	// Slice indices follow the crosshair.
	assert.Equal(t, 25, s.Viewport(viewport.Axial).SliceIndex)
	assert.Equal(t, 50, s.Viewport(viewport.Coronal).SliceIndex)
	assert.Equal(t, 50, s.Viewport(viewport.Sagittal).SliceIndex)
}

func TestSetSeries_WindowPersistenceFlag(t *testing.T) {
	s, _ := newSession(t)
	s.Viewport(viewport.Axial).WindowCenter = 999
	s.Viewport(viewport.Axial).SetZoom(3)

	// Default: window resets with everything else.
	s.SetSeries("1.2.4", testVolume(t, [3]int{100, 100, 50}))
	assert.Equal(t, 200.0, s.Viewport(viewport.Axial).WindowCenter)
	assert.Equal(t, 1.0, s.Viewport(viewport.Axial).Zoom)

	// With the flag set, window/level survives; zoom still resets.
	s.cfg.Viewport.KeepWindowOnSeriesChange = true
	s.Viewport(viewport.Axial).WindowCenter = 999
	s.Viewport(viewport.Axial).SetZoom(3)
	s.SetSeries("1.2.5", testVolume(t, [3]int{100, 100, 50}))
	assert.Equal(t, 999.0, s.Viewport(viewport.Axial).WindowCenter)
	assert.Equal(t, 1.0, s.Viewport(viewport.Axial).Zoom)
}

func TestSetSeries_SameGeometryKeepsCrosshair(t *testing.T) {
	s, _ := newSession(t)
	s.ClickAt(viewport.Axial, [2]float64{30, 40})
	pos := s.Crosshair()

	s.SetSeries("1.2.4", testVolume(t, [3]int{100, 100, 50}))
	assert.Equal(t, pos, s.Crosshair())

	// A different geometry recenters.
	s.SetSeries("1.2.5", testVolume(t, [3]int{80, 80, 40}))
	assert.NotEqual(t, pos, s.Crosshair())
}

func TestSetSeries_RevalidatesROIs(t *testing.T) {
	s, _ := newSession(t)
	confirmAt(t, s, [3]float64{50, 50, 75})

	s.SetSeries("1.2.4", testVolume(t, [3]int{100, 100, 50}))
	assert.Equal(t, roi.StatusOK, s.ROIStatus()["L1"])

	s.SetSeries("1.2.5", testVolume(t, [3]int{100, 100, 20}))
	assert.Equal(t, roi.StatusOut, s.ROIStatus()["L1"])
}

func TestExportConfirmed_SnapshotsAndMarks(t *testing.T) {
	s, fe := newSession(t)
	r1 := confirmAt(t, s, [3]float64{50, 50, 75})
	r2 := confirmAt(t, s, [3]float64{40, 40, 60})

	batchID, err := s.ExportConfirmed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "batch-1", batchID)

	require.Len(t, fe.batches, 1)
	b := fe.batches[0]
	assert.Equal(t, "case01", b.CaseID)
	assert.Equal(t, "1.2.3", b.SeriesUID)
	require.Len(t, b.ROIs, 2)

	for _, id := range []string{r1.ID, r2.ID} {
		got, ok := s.ROIs().Get(id)
		require.True(t, ok)
		assert.Equal(t, types.StateExported, got.State)
	}

	// The batch is a snapshot: deleting afterwards does not touch it.
	s.ROIs().DeleteLast()
	assert.Len(t, fe.batches[0].ROIs, 2)
}

func TestExportConfirmed_NothingToExport(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.ExportConfirmed(context.Background())
	assert.Error(t, err)
}

func TestHandleOutcome_AppliesResult(t *testing.T) {
	s, _ := newSession(t)
	r := confirmAt(t, s, [3]float64{50, 50, 75})
	_, err := s.ExportConfirmed(context.Background())
	require.NoError(t, err)

	s.HandleOutcome(export.Outcome{
		CaseID: "case01",
		ROI:    r,
		Risk:   &types.RiskEstimate{Probability: 0.7, Threshold: 0.41, Label: 1, Bucket: types.RiskHigh},
	})

	got, _ := s.ROIs().Get(r.ID)
	assert.Equal(t, types.StatePredicted, got.State)
	require.NotNil(t, got.Risk)
	assert.Equal(t, 0.7, got.Risk.Probability)
}

func TestHandleOutcome_TimeoutMarker(t *testing.T) {
	s, _ := newSession(t)
	r := confirmAt(t, s, [3]float64{50, 50, 75})
	_, err := s.ExportConfirmed(context.Background())
	require.NoError(t, err)

	s.HandleOutcome(export.Outcome{
		CaseID: "case01",
		ROI:    r,
		Err:    &inference.DispatchError{Stage: "running infer_cli", Timeout: true, Err: context.DeadlineExceeded},
	})

	got, _ := s.ROIs().Get(r.ID)
	assert.Equal(t, types.StateExportedWithError, got.State)
	assert.Equal(t, "InferenceDispatchError: timeout", got.FailureReason)
}

func TestHandleOutcome_DropsAbandonedCase(t *testing.T) {
	s, _ := newSession(t)
	r := confirmAt(t, s, [3]float64{50, 50, 75})
	_, err := s.ExportConfirmed(context.Background())
	require.NoError(t, err)

	// User switched cases before the result arrived.
	s.OpenCase("case02")
	s.SetSeries("9.9.9", testVolume(t, [3]int{100, 100, 50}))

	s.HandleOutcome(export.Outcome{
		CaseID: "case01",
		ROI:    r,
		Risk:   &types.RiskEstimate{Probability: 0.9},
	})

	// Nothing in case02 was touched.
	assert.Empty(t, s.ROIs().Confirmed())
}

func TestRetryROI(t *testing.T) {
	s, fe := newSession(t)
	r := confirmAt(t, s, [3]float64{50, 50, 75})
	_, err := s.ExportConfirmed(context.Background())
	require.NoError(t, err)
	s.HandleOutcome(export.Outcome{CaseID: "case01", ROI: r,
		Err: &inference.DispatchError{Stage: "running infer_cli", Err: errors.New("exit status 1")}})

	require.NoError(t, s.RetryROI(context.Background(), r.ID))
	assert.Equal(t, []string{r.ID}, fe.retries)

	// The failure marker clears for the new attempt.
	got, _ := s.ROIs().Get(r.ID)
	assert.Equal(t, types.StateExported, got.State)
	assert.Empty(t, got.FailureReason)
}

func TestJumpToGT(t *testing.T) {
	dataRoot := t.TempDir()
	labels := filepath.Join(dataRoot, "LABELS")
	require.NoError(t, os.MkdirAll(labels, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(labels, "labels.csv"),
		[]byte("patient,finding,x,y,z\ncase01,F1,10,10,30\ncase01,F2,80,80,120\n"), 0o644))

	cfg := types.DefaultConfig()
	cfg.DataRoot = dataRoot
	s := New(cfg,
		roi.NewManager(cfg.ROI, zerolog.Nop()),
		gtruth.NewMatcher(zerolog.Nop()),
		&fakeExporter{}, zerolog.Nop())
	s.OpenCase("case01")
	s.SetSeries("1.2.3", testVolume(t, [3]int{100, 100, 50}))

	// No confirmed ROIs: reference is the crosshair (volume center),
	// which sits nearer F2.
	lesion, ok := s.JumpToGT()
	require.True(t, ok)
	assert.Equal(t, "F2", lesion.LesionID)
	assert.Equal(t, [3]float64{80, 80, 120}, s.Crosshair())
	assert.Equal(t, 40, s.Viewport(viewport.Axial).SliceIndex)

	// With a confirmed ROI, its center is the reference.
	confirmAt(t, s, [3]float64{12, 9, 33})
	lesion, ok = s.JumpToGT()
	require.True(t, ok)
	assert.Equal(t, "F1", lesion.LesionID)
	assert.Equal(t, [3]float64{10, 10, 30}, s.Crosshair())
}

func TestJumpToGT_NoLabels(t *testing.T) {
	s, _ := newSession(t)
	_, ok := s.JumpToGT()
	assert.False(t, ok)
}
