// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/araratmed/ararat-viewer/pkg/types"
)

// executor abstracts subprocess execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunContext(ctx context.Context, dir, name string, args []string, stderr *bytes.Buffer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunContext(ctx context.Context, dir, name string, args []string, stderr *bytes.Buffer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stderr = stderr
	return cmd.Run()
}

// Runner invokes the inference CLI in its pinned interpreter. The model
// environment is version-locked separately from the viewer process;
// crossing the boundary is always a subprocess call.
type Runner struct {
	cfg  types.InferenceConfig
	log  zerolog.Logger
	exec executor
}

// NewRunner builds a runner from configuration.
func NewRunner(cfg types.InferenceConfig, log zerolog.Logger) *Runner {
	return &Runner{
		cfg:  cfg,
		log:  log.With().Str("component", "inference").Logger(),
		exec: &osExecutor{},
	}
}

// Run executes one prediction: features in via CSV, result out via JSON
// file. The subprocess gets cfg.Timeout; an expired deadline is a
// *DispatchError with Timeout set. The result is read exclusively from
// outJSON.
func (r *Runner) Run(ctx context.Context, featuresCSV, outJSON string) (types.InferenceResult, error) {
	var zero types.InferenceResult

	python, err := r.exec.LookPath(r.cfg.Python)
	if err != nil {
		return zero, &DispatchError{Stage: "locating interpreter " + r.cfg.Python, Err: err}
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	args := []string{
		"-m", "inference.infer_cli",
		"--features_csv", featuresCSV,
		"--row_index", strconv.Itoa(0),
		"--model_dir", r.cfg.ModelDir,
		"--out_json", outJSON,
	}

	r.log.Debug().Str("python", python).Str("out", outJSON).Msg("dispatching inference")

	var stderr bytes.Buffer
	if err := r.exec.RunContext(ctx, r.cfg.WorkDir, python, args, &stderr); err != nil {
		de := &DispatchError{
			Stage:  "running infer_cli",
			Stderr: stderr.String(),
			Err:    err,
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			de.Timeout = true
		}
		return zero, de
	}

	return readResult(outJSON)
}

// readResult parses the out JSON written by the subprocess.
func readResult(path string) (types.InferenceResult, error) {
	var res types.InferenceResult
	data, err := os.ReadFile(path)
	if err != nil {
		return res, &ParseError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, &ParseError{Path: path, Err: err}
	}
	return res, nil
}
