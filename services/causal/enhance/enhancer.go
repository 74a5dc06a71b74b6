// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package enhance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MeridianAI/MeridianCausal/services/causal/fit"
	"github.com/MeridianAI/MeridianCausal/services/causal/graph"
	"github.com/MeridianAI/MeridianCausal/services/causal/intervene"
	"github.com/MeridianAI/MeridianCausal/services/causal/scm"
	"github.com/MeridianAI/MeridianCausal/services/causal/trace"
	"github.com/MeridianAI/MeridianCausal/services/causal/unit"
	"github.com/MeridianAI/MeridianCausal/services/causal/validate"
)

// Result is the outcome of one enhancement run. Fields past Unit are
// nil when the corresponding stage was skipped or degraded; Warnings
// records why.
type Result struct {
	// RunID uniquely identifies the run in logs and stored artifacts.
	RunID string

	// Unit is the analyzed code unit, passed through unmodified.
	Unit *unit.CodeUnit

	// Graph is the extracted causal DAG, nil on extraction failure.
	Graph *graph.Graph

	// Model is the fitted SCM, nil when fitting was skipped or failed.
	Model *scm.SCM

	// Engine simulates interventions; nil whenever Model is nil.
	Engine *intervene.Engine

	// Validation holds cross-validation scores for a dynamic fit, nil
	// otherwise. It is populated even when the threshold check failed.
	Validation *validate.Result

	// ModeUsed is the concrete fitting mode, empty when fitting never ran.
	ModeUsed fit.Mode

	// Warnings lists every degradation that occurred, in order.
	Warnings []string
}

// GraphOnly reports whether extraction succeeded but fitting did not.
func (r *Result) GraphOnly() bool {
	return r.Graph != nil && r.Model == nil
}

// EnhancerOption is a functional option for configuring Enhancer.
type EnhancerOption func(*Enhancer)

// WithExtractor sets the graph extractor.
func WithExtractor(ex *graph.Extractor) EnhancerOption {
	return func(e *Enhancer) {
		e.extractor = ex
	}
}

// WithFitter sets the mechanism fitter.
func WithFitter(f *fit.Fitter) EnhancerOption {
	return func(e *Enhancer) {
		e.fitter = f
	}
}

// WithValidator sets the cross-validator. A nil validator disables the
// validation stage.
func WithValidator(v *validate.Validator) EnhancerOption {
	return func(e *Enhancer) {
		e.validator = v
	}
}

// WithBreaker sets the fitting circuit breaker, letting several
// enhancers share one failure budget.
func WithBreaker(b *Breaker) EnhancerOption {
	return func(e *Enhancer) {
		e.breaker = b
	}
}

// WithEnhancerLogger sets the logger.
func WithEnhancerLogger(logger *slog.Logger) EnhancerOption {
	return func(e *Enhancer) {
		e.logger = logger
	}
}

// Enhancer runs the causal analysis pipeline under the no-block
// contract: extraction, fitting, and validation failures degrade the
// result and append a warning; they never surface as errors. The only
// errors Enhance returns are programmer errors such as a nil unit or an
// unknown mode string.
//
// # Thread Safety
//
// Enhancer is safe for concurrent use. Independent Enhance calls may run
// in parallel; the circuit breaker is updated atomically.
type Enhancer struct {
	extractor *graph.Extractor
	fitter    *fit.Fitter
	validator *validate.Validator
	breaker   *Breaker
	logger    *slog.Logger
}

// New creates an enhancer with default stages: a default extractor and
// fitter, a default validator, and a fresh breaker at the default
// threshold.
func New(opts ...EnhancerOption) *Enhancer {
	e := &Enhancer{
		extractor: graph.NewExtractor(),
		fitter:    fit.NewFitter(),
		validator: validate.New(),
		breaker:   NewBreaker(DefaultBreakerThreshold),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Breaker exposes the circuit breaker for inspection and manual reset.
func (e *Enhancer) Breaker() *Breaker {
	return e.breaker
}

// Enhance runs the pipeline for one code unit.
//
// Description:
//
//	Extraction failure returns the unmodified unit plus a warning.
//	Fitting failure after a successful extraction returns graph-only
//	results plus a warning and counts against the circuit breaker. An
//	open breaker skips fitting entirely. Validation runs only after a
//	dynamic fit; a threshold miss is recorded as a warning with the
//	scores kept.
//
// Inputs:
//
//	ctx - Context; bounds the fitting-boundary exchange.
//	u - Code unit to analyze.
//	tab - Optional trace table; nil restricts auto mode to static.
//	mode - static, dynamic, or auto.
//
// Outputs:
//
//	*Result - Always non-nil on nil error, possibly degraded.
//	error - ErrNilUnit or fit.ErrUnknownMode only.
func (e *Enhancer) Enhance(ctx context.Context, u *unit.CodeUnit, tab *trace.Table, mode fit.Mode) (*Result, error) {
	if u == nil {
		return nil, ErrNilUnit
	}

	resolved, err := fit.ResolveMode(mode, tab)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "enhance.Enhance")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.String("unit", u.Name),
		attribute.String("mode", string(resolved)),
	)

	res := &Result{RunID: runID, Unit: u}
	logger := e.logger.With(slog.String("run_id", runID), slog.String("unit", u.Name))

	g, err := e.extractor.Extract(ctx, u)
	if err != nil {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("causal graph extraction failed: %v", err))
		logger.Warn("enhancement degraded to base unit", slog.String("error", err.Error()))
		recordEnhancement(ctx, "none", false)
		return res, nil
	}
	res.Graph = g

	if !e.breaker.Allow() {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("fitting skipped: %v", ErrCircuitOpen))
		logger.Warn("fitting short-circuited",
			slog.Int("consecutive_failures", e.breaker.Failures()))
		recordEnhancement(ctx, "graph_only", false)
		return res, nil
	}

	model, err := e.fitter.Fit(ctx, g, tab, resolved)
	if err != nil {
		e.breaker.RecordFailure()
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("mechanism fitting failed: %v", err))
		logger.Warn("enhancement degraded to graph-only",
			slog.String("error", err.Error()),
			slog.String("breaker", e.breaker.State().String()),
		)
		recordEnhancement(ctx, "graph_only", false)
		return res, nil
	}
	e.breaker.RecordSuccess()
	res.Model = model
	res.ModeUsed = resolved
	res.Engine = intervene.New(model)

	if resolved == fit.ModeDynamic && e.validator != nil {
		vres, verr := e.validator.CrossValidate(ctx, model, tab)
		if vres != nil {
			res.Validation = vres
		}
		if verr != nil {
			var terr *validate.ThresholdError
			if errors.As(verr, &terr) {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("validation below threshold: %v", terr))
			} else {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("validation failed: %v", verr))
			}
			logger.Warn("validation degraded", slog.String("error", verr.Error()))
		}
	}

	logger.Info("enhancement complete",
		slog.String("mode", string(resolved)),
		slog.Int("nodes", g.NodeCount()),
		slog.Int("warnings", len(res.Warnings)),
	)
	recordEnhancement(ctx, string(resolved), len(res.Warnings) == 0)
	return res, nil
}
