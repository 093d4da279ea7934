// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package roi implements the region-of-interest lifecycle: a single
// provisional candidate, confirmation against the active volume
// geometry, the append-only manifest record, and reconciliation of
// export/inference outcomes. The manager is owned by the event loop and
// is not safe for concurrent use.
package roi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/araratmed/ararat-viewer/internal/geometry"
	"github.com/araratmed/ararat-viewer/internal/manifest"
	"github.com/araratmed/ararat-viewer/pkg/types"
)

// Appender receives one manifest row per confirmed ROI.
type Appender interface {
	Append(manifest.Row) error
}

// Manager drives the ROI state machine for one case session. At most one
// Candidate exists at a time; confirmed ROIs form a stack (deletion
// always targets the most recent).
type Manager struct {
	// Manifest, when set, receives a row at every confirmation.
	Manifest Appender

	// SnapshotFunc, when set, is invoked after a successful confirmation
	// so the UI host can capture a slice image. Failures are logged and
	// never block the confirmation.
	SnapshotFunc func(types.ROI) error

	// AutosaveDir, when set, enables rois_latest.json persistence per
	// case under AutosaveDir/<case_id>/.
	AutosaveDir string

	cfg        types.ROIConfig
	log        zerolog.Logger
	caseID     string
	candidate  *types.ROI
	confirmed  []types.ROI
	counter    int
	lastRadius float64
}

// NewManager creates a manager with the given radius configuration.
func NewManager(cfg types.ROIConfig, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		log:     log.With().Str("component", "roi").Logger(),
		counter: 1,
	}
}

// OpenCase resets the manager for a new case and, when autosave is
// enabled, reloads previously confirmed ROIs from rois_latest.json.
func (m *Manager) OpenCase(caseID string) {
	m.caseID = caseID
	m.candidate = nil
	m.confirmed = nil
	m.counter = 1

	if m.AutosaveDir == "" {
		return
	}
	loaded, err := LoadLatest(latestPath(m.AutosaveDir, caseID))
	if err != nil {
		m.log.Debug().Err(err).Str("case", caseID).Msg("no autosaved rois")
		return
	}
	m.confirmed = loaded
	m.counter = nextCounter(loaded)
	m.log.Info().Str("case", caseID).Int("rois", len(loaded)).Msg("restored autosaved rois")
}

// CaseID returns the active case identifier.
func (m *Manager) CaseID() string { return m.caseID }

// nextCounter derives the lesion counter from restored ROIs: one past
// the numeric suffix of the last label, falling back to len+1.
func nextCounter(rois []types.ROI) int {
	if len(rois) == 0 {
		return 1
	}
	last := rois[len(rois)-1].ID
	if n, err := strconv.Atoi(strings.TrimPrefix(last, "L")); err == nil {
		return n + 1
	}
	return len(rois) + 1
}

// BeginCandidate locks a candidate at center. A re-click while a
// candidate exists replaces its center instead of creating a second one.
// The radius carries over from the last adjustment, or the default.
func (m *Manager) BeginCandidate(center [3]float64) types.ROI {
	if m.candidate != nil {
		m.candidate.CenterPhysical = center
		return *m.candidate
	}
	radius := m.lastRadius
	if radius <= 0 {
		radius = m.cfg.DefaultRadiusMM
	}
	m.candidate = &types.ROI{
		CenterPhysical: center,
		RadiusMM:       radius,
		State:          types.StateCandidate,
	}
	return *m.candidate
}

// Candidate returns a copy of the current candidate, if any.
func (m *Manager) Candidate() (types.ROI, bool) {
	if m.candidate == nil {
		return types.ROI{}, false
	}
	return *m.candidate, true
}

// AdjustRadius applies steps increments (negative to shrink) of the
// configured step, clamping to [MinRadiusMM, MaxRadiusMM]. Without a
// candidate it adjusts the radius the next candidate will start with.
func (m *Manager) AdjustRadius(steps int) float64 {
	radius := m.lastRadius
	if m.candidate != nil {
		radius = m.candidate.RadiusMM
	} else if radius <= 0 {
		radius = m.cfg.DefaultRadiusMM
	}

	radius += float64(steps) * m.cfg.RadiusStepMM
	if radius < m.cfg.MinRadiusMM {
		radius = m.cfg.MinRadiusMM
	}
	if radius > m.cfg.MaxRadiusMM {
		radius = m.cfg.MaxRadiusMM
	}

	m.lastRadius = radius
	if m.candidate != nil {
		m.candidate.RadiusMM = radius
	}
	return radius
}

// Cancel discards the candidate with no side effects.
func (m *Manager) Cancel() {
	m.candidate = nil
}

// validateSphere checks that the full sphere fits inside [0, shape-1]
// in voxel index space.
func validateSphere(geom *geometry.Geometry, center [3]float64, radiusMM float64) error {
	idx := geom.PhysicalToVoxel(center)
	spacing := geom.Spacing()
	shape := geom.Shape()
	for a := 0; a < 3; a++ {
		r := radiusMM / spacing[a]
		if idx[a]-r < 0 || idx[a]+r > float64(shape[a]-1) {
			return &OutOfBoundsError{Center: center, RadiusMM: radiusMM, Axis: a}
		}
	}
	return nil
}

// ConfirmContext carries the series state active at confirm time.
// Validation always runs against this geometry, not the one active when
// the candidate was locked — switching series between lock and confirm
// re-validates against the new volume.
type ConfirmContext struct {
	Geometry   *geometry.Geometry
	SeriesUID  string
	Plane      string
	SliceIndex int
}

// Confirm validates the candidate sphere against the active geometry and
// promotes it to Confirmed: the next sequential label is assigned, a
// manifest row is appended, the ROI is autosaved, and the snapshot hook
// runs. On an OutOfBoundsError the candidate is retained unchanged.
func (m *Manager) Confirm(cc ConfirmContext) (types.ROI, error) {
	if m.candidate == nil {
		return types.ROI{}, ErrNoCandidate
	}
	if err := validateSphere(cc.Geometry, m.candidate.CenterPhysical, m.candidate.RadiusMM); err != nil {
		return types.ROI{}, err
	}

	r := *m.candidate
	r.ID = fmt.Sprintf("L%d", m.counter)
	r.State = types.StateConfirmed
	r.CreatedAt = time.Now()
	r.SourceSeries = cc.SeriesUID

	m.confirmed = append(m.confirmed, r)
	m.counter++
	m.lastRadius = r.RadiusMM
	m.candidate = nil

	if m.Manifest != nil {
		row := manifest.Row{
			Timestamp:  r.CreatedAt,
			CaseID:     m.caseID,
			SeriesUID:  cc.SeriesUID,
			Plane:      cc.Plane,
			SliceIndex: cc.SliceIndex,
			Label:      r.ID,
			CenterX:    r.CenterPhysical[0],
			CenterY:    r.CenterPhysical[1],
			CenterZ:    r.CenterPhysical[2],
			RadiusMM:   r.RadiusMM,
		}
		if err := m.Manifest.Append(row); err != nil {
			m.log.Error().Err(err).Str("roi", r.ID).Msg("manifest append failed")
		}
	}

	m.autosave()

	if m.SnapshotFunc != nil {
		if err := m.SnapshotFunc(r); err != nil {
			m.log.Error().Err(err).Str("roi", r.ID).Msg("snapshot capture failed")
		}
	}

	m.log.Info().Str("roi", r.ID).Float64("radius_mm", r.RadiusMM).Msg("roi confirmed")
	return r, nil
}

// Confirmed returns copies of all confirmed ROIs in confirmation order.
func (m *Manager) Confirmed() []types.ROI {
	out := make([]types.ROI, len(m.confirmed))
	copy(out, m.confirmed)
	return out
}

// Get returns a copy of the confirmed ROI with the given label.
func (m *Manager) Get(id string) (types.ROI, bool) {
	for _, r := range m.confirmed {
		if r.ID == id {
			return r, true
		}
	}
	return types.ROI{}, false
}

// DeleteLast removes the most-recently-confirmed ROI (stack discipline).
// With nothing confirmed it is a no-op, not an error. Any displayed
// result for the removed ROI disappears with it; artifacts from prior
// export runs on disk are untouched.
func (m *Manager) DeleteLast() (types.ROI, bool) {
	if len(m.confirmed) == 0 {
		return types.ROI{}, false
	}
	removed := m.confirmed[len(m.confirmed)-1]
	m.confirmed = m.confirmed[:len(m.confirmed)-1]
	m.counter = nextCounter(m.confirmed)
	m.autosave()
	m.log.Info().Str("roi", removed.ID).Msg("roi deleted")
	return removed, true
}

// MarkExported transitions the named ROIs to Exported, clearing any
// prior risk or failure marker for the new run.
func (m *Manager) MarkExported(ids []string) {
	for _, id := range ids {
		if r := m.find(id); r != nil {
			r.State = types.StateExported
			r.Risk = nil
			r.FailureReason = ""
		}
	}
}

// ApplyResult attaches a risk estimate: Exported → Predicted. Retries of
// a failed stage may also recover an ExportedWithError ROI.
func (m *Manager) ApplyResult(id string, risk types.RiskEstimate) bool {
	r := m.find(id)
	if r == nil || (r.State != types.StateExported && r.State != types.StateExportedWithError) {
		return false
	}
	est := risk
	r.Risk = &est
	r.State = types.StatePredicted
	r.FailureReason = ""
	return true
}

// MarkExportFailed records a typed failure reason against an Exported
// ROI. The state moves to ExportedWithError, never back to Confirmed —
// failures are surfaced, not hidden.
func (m *Manager) MarkExportFailed(id, reason string) bool {
	r := m.find(id)
	if r == nil || r.State == types.StateConfirmed {
		return false
	}
	r.State = types.StateExportedWithError
	r.FailureReason = reason
	r.Risk = nil
	return true
}

func (m *Manager) find(id string) *types.ROI {
	for i := range m.confirmed {
		if m.confirmed[i].ID == id {
			return &m.confirmed[i]
		}
	}
	return nil
}

// Validation statuses for ValidateAll.
const (
	StatusOK      = "OK"      // sphere fully inside the volume
	StatusPartial = "PARTIAL" // center inside, sphere crosses a face
	StatusOut     = "OUT"     // center outside the volume
)

// ValidateAll classifies every confirmed ROI against a geometry,
// typically after a series switch. Purely informational; no state
// changes.
func (m *Manager) ValidateAll(geom *geometry.Geometry) map[string]string {
	out := make(map[string]string, len(m.confirmed))
	shape := geom.Shape()
	spacing := geom.Spacing()
	for _, r := range m.confirmed {
		idx := geom.PhysicalToVoxel(r.CenterPhysical)

		centerIn := true
		for a := 0; a < 3; a++ {
			if idx[a] < 0 || idx[a] > float64(shape[a]-1) {
				centerIn = false
				break
			}
		}
		if !centerIn {
			out[r.ID] = StatusOut
			continue
		}

		out[r.ID] = StatusOK
		for a := 0; a < 3; a++ {
			rv := r.RadiusMM / spacing[a]
			if idx[a]-rv < 0 || idx[a]+rv > float64(shape[a]-1) {
				out[r.ID] = StatusPartial
				break
			}
		}
	}
	return out
}

func (m *Manager) autosave() {
	if m.AutosaveDir == "" || m.caseID == "" {
		return
	}
	if err := SaveLatest(latestPath(m.AutosaveDir, m.caseID), m.caseID, m.confirmed); err != nil {
		m.log.Error().Err(err).Str("case", m.caseID).Msg("autosave failed")
	}
}
