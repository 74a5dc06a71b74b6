// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MeridianAI/MeridianCausal/services/causal/scm"
	"github.com/MeridianAI/MeridianCausal/services/causal/trace"
)

// Defaults for cross-validation.
const (
	// DefaultThreshold is the pass/fail bar for the aggregate R².
	DefaultThreshold = 0.7

	// DefaultTestFraction is the held-out share of the trace rows.
	DefaultTestFraction = 0.2

	// DefaultSeed makes the train/test split reproducible across runs.
	DefaultSeed = 42
)

// zeroVarEps bounds what counts as a zero-variance target, and residEps
// what counts as an exact match against it.
const (
	zeroVarEps = 1e-12
	residEps   = 1e-9
)

// ValidatorOption is a functional option for configuring Validator.
type ValidatorOption func(*Validator)

// WithThreshold sets the aggregate R² pass bar.
func WithThreshold(t float64) ValidatorOption {
	return func(v *Validator) {
		v.threshold = t
	}
}

// WithSeed sets the seed for the train/test split and bootstrap draws.
func WithSeed(seed int64) ValidatorOption {
	return func(v *Validator) {
		v.seed = seed
	}
}

// WithTestFraction sets the held-out share of trace rows.
func WithTestFraction(frac float64) ValidatorOption {
	return func(v *Validator) {
		v.testFrac = frac
	}
}

// WithWorkers caps the bootstrap worker pool.
func WithWorkers(n int) ValidatorOption {
	return func(v *Validator) {
		v.workers = n
	}
}

// WithValidatorLogger sets the logger.
func WithValidatorLogger(logger *slog.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logger
	}
}

// Validator scores fitted mechanisms on held-out trace rows.
//
// # Thread Safety
//
// Validator is safe for concurrent use after construction; all fields
// are read-only once New returns.
type Validator struct {
	threshold float64
	testFrac  float64
	seed      int64
	workers   int
	logger    *slog.Logger
}

// New creates a validator with reproducible defaults.
func New(opts ...ValidatorOption) *Validator {
	v := &Validator{
		threshold: DefaultThreshold,
		testFrac:  DefaultTestFraction,
		seed:      DefaultSeed,
		workers:   0,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Result is the outcome of one cross-validation pass.
type Result struct {
	// NodeR2 maps each validated non-root node to its held-out R².
	NodeR2 map[string]float64

	// Aggregate is the sample-weighted mean R² across validated nodes.
	// All nodes share one test split, so the weights are constant.
	Aggregate float64

	// Passed reports whether Aggregate met the threshold.
	Passed bool

	// Threshold is the bar Aggregate was checked against.
	Threshold float64

	// TestRows is the size of the held-out split.
	TestRows int
}

// CrossValidate scores every non-root mechanism on a held-out split.
//
// Description:
//
//	The trace rows are split train/test with a reproducible seed. For
//	each non-root node the mechanism predicts the node's value from the
//	test split's parent values only, and R² = 1 - SS_res/SS_tot is
//	computed against the observed test values. Root nodes are skipped;
//	they hold by construction.
//
// Outputs:
//
//	*Result - Per-node and aggregate scores. Returned alongside a
//	          *ThresholdError so callers can still inspect the scores of
//	          a failing model.
//	error - ErrNotFitted, ErrNoTraces, ErrInsufficientData, a
//	        *ValidationError for a zero-variance contradiction, or a
//	        *ThresholdError when the aggregate misses the bar.
func (v *Validator) CrossValidate(ctx context.Context, model *scm.SCM, tab *trace.Table) (*Result, error) {
	ctx, span := tracer.Start(ctx, "validate.CrossValidate")
	defer span.End()

	if !model.Fitted() {
		return nil, ErrNotFitted
	}
	if tab == nil {
		return nil, ErrNoTraces
	}

	_, test := tab.Split(v.testFrac, v.seed)

	scores, err := v.scoreNodes(model, test)
	if err != nil {
		recordValidation(ctx, false)
		return nil, err
	}

	res := &Result{
		NodeR2:    scores,
		Aggregate: meanScore(scores),
		Threshold: v.threshold,
		TestRows:  test.Rows(),
	}
	res.Passed = res.Aggregate >= v.threshold

	span.SetAttributes(
		attribute.Float64("aggregate_r2", res.Aggregate),
		attribute.Bool("passed", res.Passed),
	)
	recordValidation(ctx, res.Passed)

	if !res.Passed {
		failing := make([]string, 0, len(scores))
		for id, r2 := range scores {
			if r2 < v.threshold {
				failing = append(failing, id)
			}
		}
		sort.Strings(failing)
		v.logger.Warn("cross-validation below threshold",
			slog.Float64("aggregate_r2", res.Aggregate),
			slog.Float64("threshold", v.threshold),
			slog.Int("failing_nodes", len(failing)),
		)
		return res, &ThresholdError{
			Aggregate: res.Aggregate,
			Threshold: v.threshold,
			Failing:   failing,
		}
	}

	v.logger.Debug("cross-validation passed",
		slog.Float64("aggregate_r2", res.Aggregate),
		slog.Int("test_rows", res.TestRows),
	)
	return res, nil
}

// scoreNodes computes held-out R² for every non-root node against one
// test table.
func (v *Validator) scoreNodes(model *scm.SCM, test *trace.Table) (map[string]float64, error) {
	g := model.Graph()
	scores := make(map[string]float64)

	for _, id := range g.NodeIDs() {
		if g.IsRoot(id) {
			continue
		}
		mech, err := model.Mechanism(id)
		if err != nil {
			return nil, err
		}

		r2, err := v.scoreNode(id, mech, test)
		if err != nil {
			return nil, err
		}
		scores[id] = r2
	}
	return scores, nil
}

// scoreNode computes R² for one node, honoring the zero-variance edge
// cases: an exactly matched constant scores 1.0, a mismatched constant
// is a contradiction rather than a zero.
func (v *Validator) scoreNode(id string, mech *scm.Mechanism, test *trace.Table) (float64, error) {
	observed, err := test.Column(id)
	if err != nil {
		return 0, &ValidationError{NodeID: id, Reason: "missing test column", Err: err}
	}

	var (
		preds  []float64
		actual []float64
	)
	for i := 0; i < test.Rows(); i++ {
		row, err := test.Row(i, mech.Parents)
		if err != nil {
			return 0, &ValidationError{NodeID: id, Reason: "missing parent column", Err: err}
		}
		if !finiteRow(observed[i], row) {
			continue
		}
		pred, err := mech.Predict(row)
		if err != nil {
			return 0, &ValidationError{NodeID: id, Reason: "mechanism prediction failed", Err: err}
		}
		preds = append(preds, pred)
		actual = append(actual, observed[i])
	}

	if len(actual) < 2 {
		return 0, fmt.Errorf("node %s: %w: %d finite test samples", id, ErrInsufficientData, len(actual))
	}

	mean := 0.0
	for _, y := range actual {
		mean += y
	}
	mean /= float64(len(actual))

	ssRes, ssTot := 0.0, 0.0
	for i, y := range actual {
		r := y - preds[i]
		ssRes += r * r
		d := y - mean
		ssTot += d * d
	}

	if ssTot < zeroVarEps {
		if ssRes < residEps {
			return 1.0, nil
		}
		return 0, &ValidationError{
			NodeID: id,
			Reason: fmt.Sprintf("zero-variance target with residual %.3g, R² undefined", ssRes),
		}
	}
	return 1.0 - ssRes/ssTot, nil
}

// finiteRow reports whether the target and all parent values are finite.
func finiteRow(y float64, parents map[string]float64) bool {
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return false
	}
	for _, v := range parents {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// meanScore averages per-node scores; one shared test split means equal
// sample weights.
func meanScore(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, r2 := range scores {
		sum += r2
	}
	return sum / float64(len(scores))
}
