// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package fit assigns and fits node mechanisms, producing a structural
// causal model from a causal graph and (in dynamic mode) execution traces.
//
// Dynamic fitting crosses a narrow request/response boundary to a numeric
// fitting service. The boundary is a contract, not a mechanism: it may be
// satisfied by a child process exchanging one JSON document pair over
// stdin/stdout, or by the in-process gonum-backed service. Either way the
// exchange is idempotent and side-effect-free on the caller.
package fit

import (
	"errors"
	"fmt"
)

// Sentinel causes carried inside a FitError.
var (
	// ErrBoundaryTimeout indicates the fitting boundary exceeded its hard
	// deadline.
	ErrBoundaryTimeout = errors.New("fitting boundary timed out")

	// ErrBoundaryCrash indicates the fitting process failed to start,
	// exited abnormally, or closed its pipes early.
	ErrBoundaryCrash = errors.New("fitting boundary crashed")

	// ErrBoundaryReported indicates the service returned a structured
	// error response.
	ErrBoundaryReported = errors.New("fitting boundary reported an error")

	// ErrMalformedResponse indicates the response document failed to
	// decode or validate.
	ErrMalformedResponse = errors.New("malformed fitting response")

	// ErrVersionMismatch indicates the response carried an unsupported
	// protocol version.
	ErrVersionMismatch = errors.New("fitting protocol version mismatch")

	// ErrInsufficientSamples indicates too few trace rows to fit the
	// requested mechanisms.
	ErrInsufficientSamples = errors.New("insufficient trace samples")

	// ErrMissingTraces indicates dynamic mode was requested without a
	// trace table or with columns missing for graph nodes.
	ErrMissingTraces = errors.New("traces missing for dynamic fit")

	// ErrUnknownMode is returned for a mode string outside
	// static/dynamic/auto. This is a programmer error, not a degradable
	// fitting outcome.
	ErrUnknownMode = errors.New("unknown fitting mode")
)

// FitError is the single typed failure of the fitting stage. Timeout,
// crash, malformed response, version mismatch, and insufficient samples
// all collapse into it: a fit either yields a complete mechanism map or
// fails as a whole, never partially.
type FitError struct {
	// Boundary names the boundary implementation that failed.
	Boundary string

	// Reason is a short human-readable cause.
	Reason string

	// Err is the underlying sentinel or transport error.
	Err error
}

// Error implements the error interface.
func (e *FitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fit via %s: %s: %v", e.Boundary, e.Reason, e.Err)
	}
	return fmt.Sprintf("fit via %s: %s", e.Boundary, e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *FitError) Unwrap() error {
	return e.Err
}
