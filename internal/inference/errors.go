// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import "fmt"

// DispatchError means the inference subprocess could not produce a
// result: missing interpreter, non-zero exit, or a timeout. The failing
// ROI surfaces it; other ROIs in the batch are unaffected.
type DispatchError struct {
	// Stage describes what failed ("locating interpreter", "running infer_cli").
	Stage string

	// Timeout is true when the configured deadline killed the process.
	Timeout bool

	// Stderr carries captured subprocess diagnostics, possibly empty.
	Stderr string

	Err error
}

func (e *DispatchError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("inference dispatch failed: %s: timed out", e.Stage)
	}
	return fmt.Sprintf("inference dispatch failed: %s: %v", e.Stage, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ParseError means the subprocess finished but its out JSON was missing
// or malformed. Results are read only from that file, never from logs.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("inference result unreadable at %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
