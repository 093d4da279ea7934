// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session ties a case together for a UI host: the active series,
// the three plane viewports, the shared crosshair, the ROI manager, and
// reconciliation of export outcomes back onto ROI state. All methods run
// on the host's event loop; outcome delivery is the only concurrent
// input and enters through HandleOutcome.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/araratmed/ararat-viewer/internal/export"
	"github.com/araratmed/ararat-viewer/internal/features"
	"github.com/araratmed/ararat-viewer/internal/geometry"
	"github.com/araratmed/ararat-viewer/internal/gtruth"
	"github.com/araratmed/ararat-viewer/internal/inference"
	"github.com/araratmed/ararat-viewer/internal/roi"
	"github.com/araratmed/ararat-viewer/internal/viewport"
	"github.com/araratmed/ararat-viewer/internal/volume"
	"github.com/araratmed/ararat-viewer/pkg/types"
)

// exporter is the orchestrator surface the session drives.
type exporter interface {
	Run(ctx context.Context, batch export.Batch) (string, string, error)
	Retry(ctx context.Context, roiID string) error
}

// Session is the per-case working state.
type Session struct {
	cfg  types.ViewerConfig
	log  zerolog.Logger
	rois *roi.Manager
	gt   *gtruth.Matcher
	orch exporter

	caseID    string
	seriesUID string
	vol       *volume.Volume
	coord     *viewport.Coordinator
	views     map[viewport.Plane]*viewport.State

	// roiStatus holds the latest OK/PARTIAL/OUT classification per ROI,
	// refreshed on every series switch.
	roiStatus map[string]string
}

// New builds a session. The orchestrator may be nil when export is not
// configured (viewing only).
func New(cfg types.ViewerConfig, rois *roi.Manager, gt *gtruth.Matcher, orch exporter, log zerolog.Logger) *Session {
	s := &Session{
		cfg:   cfg,
		log:   log.With().Str("component", "session").Logger(),
		rois:  rois,
		gt:    gt,
		orch:  orch,
		views: make(map[viewport.Plane]*viewport.State, len(viewport.Planes)),
	}
	for _, p := range viewport.Planes {
		st := viewport.NewState(cfg.Viewport)
		s.views[p] = &st
	}
	return s
}

// OpenCase activates a case. Any restored ROIs come back through the
// manager's autosave; series state clears until SetSeries.
func (s *Session) OpenCase(caseID string) {
	s.caseID = caseID
	s.seriesUID = ""
	s.vol = nil
	s.coord = nil
	s.roiStatus = nil
	s.rois.OpenCase(caseID)
	s.log.Info().Str("case", caseID).Msg("case opened")
}

// CaseID returns the active case identifier.
func (s *Session) CaseID() string { return s.caseID }

// SeriesUID returns the active series identifier.
func (s *Session) SeriesUID() string { return s.seriesUID }

// ROIs exposes the ROI manager.
func (s *Session) ROIs() *roi.Manager { return s.rois }

// Viewport returns the mutable state of one plane.
func (s *Session) Viewport(p viewport.Plane) *viewport.State { return s.views[p] }

// Crosshair returns the shared crosshair position in physical mm.
func (s *Session) Crosshair() [3]float64 {
	if s.coord == nil {
		return [3]float64{}
	}
	return s.coord.Position()
}

// ROIStatus returns the last series-switch validation per ROI id.
func (s *Session) ROIStatus() map[string]string { return s.roiStatus }

// SetSeries switches the active series. The crosshair rebinds to the new
// geometry (recentering only when the geometry actually changed), zoom,
// pan and slice reset, window/level resets unless configured to persist,
// and every confirmed ROI is reclassified against the new volume.
func (s *Session) SetSeries(uid string, vol *volume.Volume) {
	s.seriesUID = uid
	s.vol = vol

	if s.coord == nil {
		s.coord = viewport.NewCoordinator(vol.Geom)
	} else {
		s.coord.Rebind(vol.Geom)
	}

	for _, p := range viewport.Planes {
		st := s.views[p]
		keepCenter, keepWidth := st.WindowCenter, st.WindowWidth
		st.Reset(s.cfg.Viewport)
		if s.cfg.Viewport.KeepWindowOnSeriesChange {
			st.WindowCenter = keepCenter
			st.SetWindowWidth(keepWidth)
		}
	}
	s.syncSlices()

	s.roiStatus = s.rois.ValidateAll(vol.Geom)
	for id, status := range s.roiStatus {
		if status != roi.StatusOK {
			s.log.Warn().Str("roi", id).Str("status", status).Str("series", uid).Msg("roi outside new series")
		}
	}
	s.log.Info().Str("series", uid).Msg("series activated")
}

// Geometry returns the active series geometry, or nil before SetSeries.
func (s *Session) Geometry() *geometry.Geometry {
	if s.vol == nil {
		return nil
	}
	return s.vol.Geom
}

// ClickAt moves the crosshair from a click in one plane's viewport; the
// other planes follow through the shared position.
func (s *Session) ClickAt(p viewport.Plane, screen [2]float64) {
	if s.coord == nil {
		return
	}
	s.coord.SetFromViewport(p, screen, *s.views[p])
	s.syncSlices()
}

// StepSlice scrolls one plane by delta slices, clamped to the volume.
func (s *Session) StepSlice(p viewport.Plane, delta int) {
	if s.coord == nil {
		return
	}
	s.coord.StepSlice(p, delta)
	s.syncSlices()
}

// syncSlices re-derives every plane's slice index from the crosshair.
func (s *Session) syncSlices() {
	for _, p := range viewport.Planes {
		s.views[p].SliceIndex = s.coord.Project(p)
	}
}

// BeginCandidate locks a candidate ROI at the crosshair.
func (s *Session) BeginCandidate() types.ROI {
	return s.rois.BeginCandidate(s.Crosshair())
}

// ConfirmCandidate validates and confirms against the active series.
func (s *Session) ConfirmCandidate(p viewport.Plane) (types.ROI, error) {
	if s.vol == nil {
		return types.ROI{}, errors.New("no active series")
	}
	return s.rois.Confirm(roi.ConfirmContext{
		Geometry:   s.vol.Geom,
		SeriesUID:  s.seriesUID,
		Plane:      p.String(),
		SliceIndex: s.views[p].SliceIndex,
	})
}

// ExportConfirmed snapshots the confirmed ROIs and starts an export
// batch. ROIs move to Exported as soon as the batch is accepted; results
// arrive later through HandleOutcome.
func (s *Session) ExportConfirmed(ctx context.Context) (string, error) {
	if s.orch == nil {
		return "", errors.New("export not configured")
	}
	if s.vol == nil {
		return "", errors.New("no active series")
	}
	rois := s.rois.Confirmed()
	if len(rois) == 0 {
		return "", errors.New("no confirmed rois to export")
	}

	batchID, dir, err := s.orch.Run(ctx, export.Batch{
		CaseID:    s.caseID,
		SeriesUID: s.seriesUID,
		Volume:    s.vol,
		ROIs:      rois,
	})
	if err != nil {
		return "", fmt.Errorf("starting export batch: %w", err)
	}

	ids := make([]string, len(rois))
	for i, r := range rois {
		ids[i] = r.ID
	}
	s.rois.MarkExported(ids)
	s.log.Info().Str("batch", batchID).Str("dir", dir).Int("rois", len(ids)).Msg("export batch dispatched")
	return batchID, nil
}

// RetryROI re-runs only the inference stage for a previously exported
// ROI, clearing its failure marker for the new attempt.
func (s *Session) RetryROI(ctx context.Context, roiID string) error {
	if s.orch == nil {
		return errors.New("export not configured")
	}
	if err := s.orch.Retry(ctx, roiID); err != nil {
		return err
	}
	s.rois.MarkExported([]string{roiID})
	return nil
}

// HandleOutcome reconciles one pipeline completion onto ROI state. An
// outcome from a case other than the active one is dropped: its
// artifacts are already on disk, but it must never touch the current
// case's display state.
func (s *Session) HandleOutcome(o export.Outcome) {
	if o.CaseID != s.caseID {
		s.log.Info().Str("outcome_case", o.CaseID).Str("active_case", s.caseID).
			Str("roi", o.ROI.ID).Msg("dropping outcome for abandoned case")
		return
	}
	if o.Err != nil {
		s.rois.MarkExportFailed(o.ROI.ID, failureReason(o.Err))
		return
	}
	if o.Risk != nil {
		s.rois.ApplyResult(o.ROI.ID, *o.Risk)
	}
}

// failureReason renders a typed pipeline error as the short marker shown
// next to the ROI.
func failureReason(err error) string {
	var de *inference.DispatchError
	if errors.As(err, &de) {
		if de.Timeout {
			return "InferenceDispatchError: timeout"
		}
		return fmt.Sprintf("InferenceDispatchError: %s", de.Stage)
	}
	var pe *inference.ParseError
	if errors.As(err, &pe) {
		return "InferenceParseError: malformed result"
	}
	var mfe *features.MissingFeatureError
	if errors.As(err, &mfe) {
		return fmt.Sprintf("MissingFeatureError: %d feature(s)", len(mfe.Missing))
	}
	var ee *features.ExtractionError
	if errors.As(err, &ee) {
		return fmt.Sprintf("FeatureExtractionError: %s", ee.Reason)
	}
	return err.Error()
}

// JumpToGT moves the crosshair to the ground-truth lesion nearest the
// reference point: the last confirmed ROI's center, or the crosshair
// when nothing is confirmed. Returns false when the case has no labels.
func (s *Session) JumpToGT() (types.Lesion, bool) {
	if s.coord == nil {
		return types.Lesion{}, false
	}
	lesions := s.gt.Lookup(s.caseID, s.cfg.DataRoot)
	if len(lesions) == 0 {
		return types.Lesion{}, false
	}

	ref := s.Crosshair()
	if confirmed := s.rois.Confirmed(); len(confirmed) > 0 {
		ref = confirmed[len(confirmed)-1].CenterPhysical
	}

	lesion, ok := s.coord.JumpToNearestLesion(lesions, ref)
	if !ok {
		return types.Lesion{}, false
	}
	s.syncSlices()
	s.log.Info().Str("lesion", lesion.LesionID).Msg("jumped to ground-truth lesion")
	return lesion, true
}
