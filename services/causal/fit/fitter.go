// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MeridianAI/MeridianCausal/services/causal/graph"
	"github.com/MeridianAI/MeridianCausal/services/causal/scm"
	"github.com/MeridianAI/MeridianCausal/services/causal/trace"
)

// Mode selects how mechanisms are produced.
type Mode string

const (
	// ModeStatic assigns topology-only mechanisms from structure alone.
	ModeStatic Mode = "static"

	// ModeDynamic fits numeric mechanisms from execution traces across
	// the fitting boundary.
	ModeDynamic Mode = "dynamic"

	// ModeAuto picks dynamic when enough trace rows are available, else
	// static.
	ModeAuto Mode = "auto"
)

// AutoRowThreshold is the minimum number of trace rows for ModeAuto to
// choose dynamic fitting.
const AutoRowThreshold = 100

// DefaultBoundaryTimeout is the hard deadline for one boundary exchange
// on graphs of up to timeoutScaleNodes nodes.
const DefaultBoundaryTimeout = 60 * time.Second

// timeoutScaleNodes is the node-count granularity for timeout scaling:
// the base timeout covers each started block of this many nodes.
const timeoutScaleNodes = 100

// ResolveMode maps ModeAuto to a concrete mode for the given traces.
//
// Errors:
//
//	ErrUnknownMode - mode is not static, dynamic, or auto
func ResolveMode(mode Mode, tab *trace.Table) (Mode, error) {
	switch mode {
	case ModeStatic, ModeDynamic:
		return mode, nil
	case ModeAuto:
		if tab != nil && tab.Rows() >= AutoRowThreshold {
			return ModeDynamic, nil
		}
		return ModeStatic, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// FitterOption is a functional option for configuring Fitter.
type FitterOption func(*Fitter)

// WithBoundary sets the fitting boundary implementation.
func WithBoundary(b Boundary) FitterOption {
	return func(f *Fitter) {
		f.boundary = b
	}
}

// WithBoundaryTimeout sets the base hard timeout for one boundary call.
func WithBoundaryTimeout(d time.Duration) FitterOption {
	return func(f *Fitter) {
		f.baseTimeout = d
	}
}

// WithQuality sets the quality hint sent across the boundary.
func WithQuality(q string) FitterOption {
	return func(f *Fitter) {
		f.quality = q
	}
}

// WithR2Threshold sets the pass/fail bar forwarded to the boundary's
// in-sample validation summary.
func WithR2Threshold(t float64) FitterOption {
	return func(f *Fitter) {
		f.r2Threshold = t
	}
}

// WithFitterLogger sets the logger.
func WithFitterLogger(logger *slog.Logger) FitterOption {
	return func(f *Fitter) {
		f.logger = logger
	}
}

// Fitter assigns a generating mechanism to every node of a causal graph.
//
// # Thread Safety
//
// Fitter is safe for concurrent use; each Fit call is independent.
type Fitter struct {
	boundary    Boundary
	baseTimeout time.Duration
	quality     string
	r2Threshold float64
	logger      *slog.Logger
}

// NewFitter creates a fitter. The default boundary is the in-process
// gonum service; swap in a ProcessBoundary to fit out of process.
func NewFitter(opts ...FitterOption) *Fitter {
	f := &Fitter{
		boundary:    NewLocalBoundary(),
		baseTimeout: DefaultBoundaryTimeout,
		quality:     "standard",
		r2Threshold: 0.7,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Boundary returns the configured boundary implementation.
func (f *Fitter) Boundary() Boundary {
	return f.boundary
}

// Fit produces a frozen SCM for the graph in the given concrete mode.
//
// Description:
//
//	ModeStatic assigns empirical placeholders to roots and topology-only
//	structural mechanisms to non-roots; no numeric parameters and no
//	boundary crossing. ModeDynamic exchanges one request/response pair
//	with the fitting boundary under a hard timeout and converts the
//	returned mechanism map into a frozen SCM. Any boundary failure
//	(timeout, crash, malformed or error response, version mismatch,
//	missing columns) collapses into a single *FitError; a partial or
//	corrupted mechanism map is never returned.
//
// Inputs:
//
//	ctx - Context; the boundary call runs under ctx plus the hard timeout.
//	g - Frozen causal graph.
//	tab - Trace table; required for ModeDynamic, ignored for ModeStatic.
//	mode - A concrete mode (resolve ModeAuto first via ResolveMode).
//
// Outputs:
//
//	*scm.SCM - Frozen model.
//	error - *FitError for any dynamic fitting failure; ErrUnknownMode for
//	        an unresolved mode.
func (f *Fitter) Fit(ctx context.Context, g *graph.Graph, tab *trace.Table, mode Mode) (*scm.SCM, error) {
	ctx, span := tracer.Start(ctx, "fit.Fit")
	defer span.End()
	span.SetAttributes(
		attribute.String("mode", string(mode)),
		attribute.Int("nodes", g.NodeCount()),
	)

	switch mode {
	case ModeStatic:
		return f.fitStatic(g)
	case ModeDynamic:
		model, err := f.fitDynamic(ctx, g, tab)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return model, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// fitStatic assigns topology-only mechanisms.
func (f *Fitter) fitStatic(g *graph.Graph) (*scm.SCM, error) {
	model, err := scm.New(g, scm.SourceStatic)
	if err != nil {
		return nil, &FitError{Boundary: "static", Reason: "model construction", Err: err}
	}
	for _, id := range g.NodeIDs() {
		var m *scm.Mechanism
		if g.IsRoot(id) {
			m = scm.NewEmpirical(nil, scm.SourceStatic)
		} else {
			m = scm.NewStructural(g.Parents(id))
		}
		if err := model.Assign(id, m); err != nil {
			return nil, &FitError{Boundary: "static", Reason: "mechanism assignment", Err: err}
		}
	}
	if err := model.Freeze(); err != nil {
		return nil, &FitError{Boundary: "static", Reason: "model freeze", Err: err}
	}
	return model, nil
}

// fitDynamic crosses the fitting boundary and converts the response.
func (f *Fitter) fitDynamic(ctx context.Context, g *graph.Graph, tab *trace.Table) (*scm.SCM, error) {
	name := f.boundary.Name()

	if tab == nil {
		return nil, &FitError{Boundary: name, Reason: "no traces", Err: ErrMissingTraces}
	}
	for _, id := range g.NodeIDs() {
		if !tab.HasColumn(id) {
			return nil, &FitError{
				Boundary: name,
				Reason:   "trace columns incomplete",
				Err:      fmt.Errorf("%w: node %s", ErrMissingTraces, id),
			}
		}
	}

	timeout := f.scaledTimeout(g.NodeCount())
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := buildRequest(g, tab, BoundaryConfig{
		Quality:     f.quality,
		R2Threshold: f.r2Threshold,
	})

	start := time.Now()
	resp, err := f.boundary.Fit(ctx, req)
	elapsed := time.Since(start)
	recordBoundaryCall(ctx, name, elapsed, err == nil)

	if err != nil {
		reason := "boundary call failed"
		cause := err
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "boundary timeout"
			cause = fmt.Errorf("%w: after %s", ErrBoundaryTimeout, timeout)
		}
		f.logger.Warn("fitting boundary failed",
			slog.String("boundary", name),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, &FitError{Boundary: name, Reason: reason, Err: cause}
	}

	if err := checkResponse(resp); err != nil {
		return nil, &FitError{Boundary: name, Reason: "response rejected", Err: err}
	}

	model, err := f.convert(g, resp)
	if err != nil {
		return nil, &FitError{Boundary: name, Reason: "response conversion", Err: err}
	}

	f.logger.Debug("dynamic fit complete",
		slog.String("boundary", name),
		slog.Duration("elapsed", elapsed),
		slog.Int("mechanisms", len(resp.SCM.Mechanisms)),
	)
	return model, nil
}

// convert turns a success response into a frozen SCM, rejecting partial
// mechanism maps.
func (f *Fitter) convert(g *graph.Graph, resp *BoundaryResponse) (*scm.SCM, error) {
	model, err := scm.New(g, scm.SourceDynamic)
	if err != nil {
		return nil, err
	}
	for _, id := range g.NodeIDs() {
		m, ok := resp.SCM.Mechanisms[id]
		if !ok || m == nil {
			return nil, fmt.Errorf("%w: mechanism missing for node %s", ErrMalformedResponse, id)
		}
		m.FittedFrom = scm.SourceDynamic
		if err := model.Assign(id, m); err != nil {
			return nil, err
		}
	}
	if err := model.Freeze(); err != nil {
		return nil, err
	}
	return model, nil
}

// scaledTimeout scales the base timeout with graph size: the base covers
// each started block of timeoutScaleNodes nodes.
func (f *Fitter) scaledTimeout(nodes int) time.Duration {
	blocks := (nodes + timeoutScaleNodes - 1) / timeoutScaleNodes
	if blocks < 1 {
		blocks = 1
	}
	return time.Duration(blocks) * f.baseTimeout
}
