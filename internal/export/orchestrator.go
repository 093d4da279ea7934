// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/araratmed/ararat-viewer/internal/features"
	"github.com/araratmed/ararat-viewer/internal/inference"
	"github.com/araratmed/ararat-viewer/internal/volume"
	"github.com/araratmed/ararat-viewer/pkg/types"
)

// Batch is a read-only snapshot of what one export run covers. The ROI
// copies are taken at trigger time; later edits to the live set do not
// affect a run in flight.
type Batch struct {
	CaseID    string
	SeriesUID string
	Volume    *volume.Volume
	ROIs      []types.ROI
}

// Outcome is the per-ROI completion record delivered on the outcomes
// channel. Exactly one of Risk or Err is set.
type Outcome struct {
	BatchID string
	CaseID  string
	ROI     types.ROI
	Dir     string
	Result  *types.InferenceResult
	Risk    *types.RiskEstimate
	Err     error
}

// predictor is the inference stage; satisfied by *inference.Runner.
type predictor interface {
	Run(ctx context.Context, featuresCSV, outJSON string) (types.InferenceResult, error)
}

// artifact remembers where a ROI's stage-1/2 outputs landed so a retry
// can re-dispatch inference without re-exporting.
type artifact struct {
	batchID string
	caseID  string
	dir     string
	roi     types.ROI
}

// Orchestrator runs export batches on a bounded worker pool. At most one
// invocation per ROI id is in flight: re-triggering an id cancels and
// supersedes the previous run, whose outcome is then discarded.
type Orchestrator struct {
	// Version is stamped into each batch's rois.json.
	Version string

	cfg    types.ExportConfig
	risk   types.RiskConfig
	meta   *inference.Meta
	runner predictor
	log    zerolog.Logger

	outcomes chan Outcome
	sem      chan struct{}
	wg       sync.WaitGroup

	mu        sync.Mutex
	inflight  map[string]*flight
	artifacts map[string]artifact
}

// flight identifies one in-flight run; pointer identity distinguishes a
// run from its superseder.
type flight struct {
	cancel context.CancelFunc
}

// NewOrchestrator wires the pipeline. meta declares the model's feature
// contract; runner crosses into the pinned inference environment.
func NewOrchestrator(cfg types.ExportConfig, risk types.RiskConfig, meta *inference.Meta, runner predictor, log zerolog.Logger) *Orchestrator {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		cfg:       cfg,
		risk:      risk,
		meta:      meta,
		runner:    runner,
		log:       log.With().Str("component", "export").Logger(),
		outcomes:  make(chan Outcome, 64),
		sem:       make(chan struct{}, workers),
		inflight:  make(map[string]*flight),
		artifacts: make(map[string]artifact),
	}
}

// Outcomes is the completion channel the event loop consumes.
func (o *Orchestrator) Outcomes() <-chan Outcome { return o.outcomes }

// Wait blocks until all in-flight work has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// batchFile is the rois.json document written once per run.
type batchFile struct {
	BatchID         string      `json:"batch_id"`
	AppVersion      string      `json:"app_version"`
	ExportTimestamp string      `json:"export_timestamp"`
	CaseID          string      `json:"case_id"`
	SeriesUID       string      `json:"series_instance_uid"`
	ROIs            []types.ROI `json:"rois"`
}

// Run starts one export batch. Each run gets a fresh timestamped
// directory under OutputRoot/<case>/ — prior runs are never rewritten.
// Directory creation and the rois.json write fail the whole batch
// synchronously; everything after is per-ROI and asynchronous.
func (o *Orchestrator) Run(ctx context.Context, batch Batch) (string, string, error) {
	batchID := uuid.NewString()
	// The batch id suffix keeps runs triggered within the same second in
	// distinct directories.
	dir := filepath.Join(o.cfg.OutputRoot, batch.CaseID,
		time.Now().Format("20060102-150405")+"-"+batchID[:8])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating export directory: %w", err)
	}

	doc := batchFile{
		BatchID:         batchID,
		AppVersion:      o.Version,
		ExportTimestamp: time.Now().UTC().Format(time.RFC3339),
		CaseID:          batch.CaseID,
		SeriesUID:       batch.SeriesUID,
		ROIs:            batch.ROIs,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encoding batch metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "rois.json"), data, 0o644); err != nil {
		return "", "", fmt.Errorf("writing rois.json: %w", err)
	}

	o.log.Info().Str("batch", batchID).Str("dir", dir).Int("rois", len(batch.ROIs)).Msg("export batch started")

	for _, roi := range batch.ROIs {
		o.dispatch(ctx, roi.ID, func(runCtx context.Context) Outcome {
			return o.exportOne(runCtx, batchID, dir, batch, roi)
		})
	}
	return batchID, dir, nil
}

// Retry re-dispatches inference for a ROI using the mask and features
// artifacts of its last run. Only the inference stage repeats; nothing
// is re-exported. Returns an error when no prior artifacts exist.
func (o *Orchestrator) Retry(ctx context.Context, roiID string) error {
	o.mu.Lock()
	art, ok := o.artifacts[roiID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("no prior export artifacts for roi %s", roiID)
	}

	o.dispatch(ctx, roiID, func(runCtx context.Context) Outcome {
		out := Outcome{BatchID: art.batchID, CaseID: art.caseID, ROI: art.roi, Dir: art.dir}
		o.infer(runCtx, art.dir, art.roi, &out)
		return out
	})
	return nil
}

// dispatch runs fn on the pool under supersede semantics for id.
func (o *Orchestrator) dispatch(ctx context.Context, id string, fn func(context.Context) Outcome) {
	runCtx, cancel := context.WithCancel(ctx)
	entry := &flight{cancel: cancel}

	o.mu.Lock()
	if prev, ok := o.inflight[id]; ok {
		prev.cancel()
		o.log.Debug().Str("roi", id).Msg("superseding in-flight run")
	}
	o.inflight[id] = entry
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.sem <- struct{}{}
		defer func() { <-o.sem }()

		out := fn(runCtx)

		// A superseded run's outcome is stale; drop it silently.
		o.mu.Lock()
		stale := o.inflight[id] != entry
		if !stale {
			delete(o.inflight, id)
		}
		o.mu.Unlock()
		if stale {
			return
		}

		o.outcomes <- out
	}()
}

// exportOne runs the three stages for a single ROI. A failure at any
// stage stops that ROI only; the outcome carries the typed error.
func (o *Orchestrator) exportOne(ctx context.Context, batchID, dir string, batch Batch, roi types.ROI) Outcome {
	out := Outcome{BatchID: batchID, CaseID: batch.CaseID, ROI: roi, Dir: dir}

	// Stage 1: mask artifact.
	mask := Rasterize(batch.Volume.Geom, roi.CenterPhysical, roi.RadiusMM)
	maskPath := filepath.Join(dir, fmt.Sprintf("mask_%s.nrrd", roi.ID))
	if err := volume.WriteMask(maskPath, mask); err != nil {
		out.Err = fmt.Errorf("writing mask for %s: %w", roi.ID, err)
		return out
	}

	// Stage 2: features artifact in the model's declared column order.
	feats, err := features.Extract(batch.Volume, mask)
	if err != nil {
		out.Err = err
		return out
	}
	row, err := features.Select(feats, o.meta.Features)
	if err != nil {
		out.Err = err
		return out
	}
	csvPath := filepath.Join(dir, fmt.Sprintf("features_%s.csv", roi.ID))
	if err := features.WriteCSV(csvPath, o.meta.Features, row); err != nil {
		out.Err = err
		return out
	}

	o.mu.Lock()
	o.artifacts[roi.ID] = artifact{batchID: batchID, caseID: batch.CaseID, dir: dir, roi: roi}
	o.mu.Unlock()

	// Stage 3: inference.
	o.infer(ctx, dir, roi, &out)
	return out
}

// infer dispatches the subprocess and translates its result into a risk
// estimate.
func (o *Orchestrator) infer(ctx context.Context, dir string, roi types.ROI, out *Outcome) {
	csvPath := filepath.Join(dir, fmt.Sprintf("features_%s.csv", roi.ID))
	predPath := filepath.Join(dir, fmt.Sprintf("pred_%s.json", roi.ID))

	res, err := o.runner.Run(ctx, csvPath, predPath)
	if err != nil {
		out.Err = err
		o.log.Warn().Err(err).Str("roi", roi.ID).Msg("inference failed")
		return
	}

	out.Result = &res
	out.Risk = &types.RiskEstimate{
		Probability: res.ProbPos,
		Threshold:   res.ThrCV,
		Label:       res.PredLabel,
		Bucket:      BucketFor(res.ProbPos, o.risk),
	}
	o.log.Info().Str("roi", roi.ID).Float64("prob", res.ProbPos).Msg("inference complete")
}
