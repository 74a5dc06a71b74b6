// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intervene

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/montanaflynn/stats"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MeridianAI/MeridianCausal/services/causal/scm"
)

// Kind distinguishes hard from soft interventions.
type Kind string

const (
	// KindHard pins the intervened node to a fixed value, severing its
	// incoming mechanisms.
	KindHard Kind = "hard"

	// KindSoft transforms the value the node's own mechanism would have
	// produced.
	KindSoft Kind = "soft"
)

// Spec describes one intervention.
type Spec struct {
	// NodeID is the intervened node.
	NodeID string

	// Kind selects hard or soft semantics.
	Kind Kind

	// Value is the pinned value of a hard intervention.
	Value float64

	// Transform rewrites the mechanism's output for a soft intervention.
	Transform func(float64) float64
}

// validate checks structural well-formedness of the spec.
func (s Spec) validate() error {
	switch s.Kind {
	case KindHard:
		return nil
	case KindSoft:
		if s.Transform == nil {
			return fmt.Errorf("%w: soft intervention without transform", ErrInvalidSpec)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, s.Kind)
	}
}

// NodeOutcome summarizes one queried node across simulation draws.
type NodeOutcome struct {
	// Mean is the average simulated value.
	Mean float64 `json:"mean"`

	// Variance is the sample variance of the simulated values.
	Variance float64 `json:"variance"`

	// CILower and CIUpper bound the central 95% of the draws.
	CILower float64 `json:"ci_lower"`
	CIUpper float64 `json:"ci_upper"`
}

// Result is the outcome of one intervention simulation.
type Result struct {
	// Intervened is the node the intervention targeted.
	Intervened string `json:"intervened"`

	// Outcomes maps each queried node to its simulated summary.
	Outcomes map[string]NodeOutcome `json:"outcomes"`

	// Samples is the number of simulation draws.
	Samples int `json:"samples"`
}

// EngineOption is a functional option for configuring Engine.
type EngineOption func(*Engine)

// WithEngineSeed sets the simulation seed for reproducible draws.
func WithEngineSeed(seed int64) EngineOption {
	return func(e *Engine) {
		e.seed = seed
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine simulates interventions on a frozen, numerically fitted model.
//
// # Thread Safety
//
// Engine is safe for concurrent use; each EstimateImpact call owns its
// own random source.
type Engine struct {
	model  *scm.SCM
	seed   int64
	logger *slog.Logger
}

// New creates an intervention engine over a frozen model. Static-only
// models are accepted; they answer path queries but reject numeric
// simulation with ErrStaticModel.
func New(model *scm.SCM, opts ...EngineOption) *Engine {
	e := &Engine{
		model:  model,
		seed:   1,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EstimateImpact simulates the model under one intervention.
//
// Description:
//
//	The graph is traversed in topological order nSamples times. At the
//	intervened node the fixed value (hard) or transformed mechanism
//	output (soft) is substituted; every other node draws from its fitted
//	mechanism using the possibly overridden parent values. Per queried
//	node the mean, variance, and a central 95% percentile interval of
//	the draws are reported.
//
// Errors:
//
//	ErrStaticModel - The model has no fitted parameters to simulate.
//	ErrUnknownNode - The intervened or a queried node is not in the graph.
//	ErrInvalidSpec - Malformed intervention spec.
//	ErrNoSamples - nSamples < 1.
func (e *Engine) EstimateImpact(ctx context.Context, spec Spec, queryNodes []string, nSamples int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "intervene.EstimateImpact")
	defer span.End()
	span.SetAttributes(
		attribute.String("node", spec.NodeID),
		attribute.String("kind", string(spec.Kind)),
		attribute.Int("samples", nSamples),
	)

	if err := spec.validate(); err != nil {
		return nil, err
	}
	if nSamples < 1 {
		return nil, ErrNoSamples
	}
	if !e.model.Fitted() {
		return nil, ErrStaticModel
	}

	g := e.model.Graph()
	if !g.HasNode(spec.NodeID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, spec.NodeID)
	}
	for _, q := range queryNodes {
		if !g.HasNode(q) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, q)
		}
	}

	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}

	draws := make(map[string][]float64, len(queryNodes))
	for _, q := range queryNodes {
		draws[q] = make([]float64, 0, nSamples)
	}
	queried := make(map[string]bool, len(queryNodes))
	for _, q := range queryNodes {
		queried[q] = true
	}

	rng := rand.New(rand.NewSource(e.seed))

	for s := 0; s < nSamples; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values := make(map[string]float64, len(order))
		for _, id := range order {
			v, err := e.simulateNode(id, spec, values, rng)
			if err != nil {
				return nil, err
			}
			values[id] = v
		}
		for q := range queried {
			draws[q] = append(draws[q], values[q])
		}
	}

	outcomes := make(map[string]NodeOutcome, len(draws))
	for q, series := range draws {
		out, err := summarize(series)
		if err != nil {
			return nil, fmt.Errorf("summarize node %s: %w", q, err)
		}
		outcomes[q] = out
	}

	recordIntervention(ctx, string(spec.Kind))
	e.logger.Debug("intervention simulated",
		slog.String("node", spec.NodeID),
		slog.String("kind", string(spec.Kind)),
		slog.Int("samples", nSamples),
		slog.Int("queried", len(queryNodes)),
	)
	return &Result{
		Intervened: spec.NodeID,
		Outcomes:   outcomes,
		Samples:    nSamples,
	}, nil
}

// simulateNode produces one node value for one draw, honoring the
// intervention override.
func (e *Engine) simulateNode(id string, spec Spec, values map[string]float64, rng *rand.Rand) (float64, error) {
	mech, err := e.model.Mechanism(id)
	if err != nil {
		return 0, err
	}

	if id == spec.NodeID && spec.Kind == KindHard {
		return spec.Value, nil
	}

	parentVals := make(map[string]float64, len(mech.Parents))
	for _, p := range mech.Parents {
		parentVals[p] = values[p]
	}

	v, err := mech.Sample(parentVals, rng)
	if err != nil {
		return 0, fmt.Errorf("node %s: %w", id, err)
	}
	if id == spec.NodeID && spec.Kind == KindSoft {
		v = spec.Transform(v)
	}
	return v, nil
}

// CausalPaths enumerates simple directed paths from source to target,
// capped by maxPaths. A pure graph query, available on static models.
func (e *Engine) CausalPaths(source, target string, maxPaths int) ([][]string, error) {
	return e.model.Graph().SimplePaths(source, target, maxPaths)
}

// Downstream lists all descendants of a node, sorted.
func (e *Engine) Downstream(id string) ([]string, error) {
	ids, err := e.model.Graph().Descendants(id)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// summarize computes mean, variance, and a central 95% interval.
func summarize(series []float64) (NodeOutcome, error) {
	mean, err := stats.Mean(series)
	if err != nil {
		return NodeOutcome{}, err
	}
	variance := 0.0
	if len(series) > 1 {
		variance, err = stats.SampleVariance(series)
		if err != nil {
			return NodeOutcome{}, err
		}
	}
	lo, err := stats.Percentile(series, 2.5)
	if err != nil {
		// A single-draw series has no percentile spread.
		lo = mean
	}
	hi, err := stats.Percentile(series, 97.5)
	if err != nil {
		hi = mean
	}
	return NodeOutcome{
		Mean:     mean,
		Variance: variance,
		CILower:  lo,
		CIUpper:  hi,
	}, nil
}
