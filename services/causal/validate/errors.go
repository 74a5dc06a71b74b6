// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validate cross-validates fitted structural causal models
// against held-out execution traces and bounds mechanism stability with
// bootstrap confidence intervals.
package validate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientData indicates fewer than two finite test samples
	// were available for a node.
	ErrInsufficientData = errors.New("insufficient data for validation")

	// ErrNotFitted indicates the model carries no numeric parameters to
	// validate against.
	ErrNotFitted = errors.New("model is not numerically fitted")

	// ErrNoTraces indicates validation was requested without a trace table.
	ErrNoTraces = errors.New("no traces to validate against")
)

// ValidationError reports a per-node validation contradiction, such as a
// zero-variance target with nonzero residual where R² is undefined and
// must not be silently reported as zero.
type ValidationError struct {
	// NodeID is the node whose validation failed.
	NodeID string

	// Reason is a short human-readable cause.
	Reason string

	// Err is the underlying sentinel, if any.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validate node %s: %s: %v", e.NodeID, e.Reason, e.Err)
	}
	return fmt.Sprintf("validate node %s: %s", e.NodeID, e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ThresholdError reports an aggregate R² below the configured threshold,
// naming every failing node.
type ThresholdError struct {
	// Aggregate is the sample-weighted mean R² that fell short.
	Aggregate float64

	// Threshold is the configured pass bar.
	Threshold float64

	// Failing lists every node whose R² is below the threshold, sorted.
	Failing []string
}

// Error implements the error interface.
func (e *ThresholdError) Error() string {
	return fmt.Sprintf("aggregate R² %.4f below threshold %.4f (failing: %s)",
		e.Aggregate, e.Threshold, strings.Join(e.Failing, ", "))
}
