// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package enhance

import (
	"context"
	"math"
	"sync"

	"github.com/MeridianAI/MeridianCausal/services/causal/fit"
	"github.com/MeridianAI/MeridianCausal/services/causal/graph"
	"github.com/MeridianAI/MeridianCausal/services/causal/intervene"
	"github.com/MeridianAI/MeridianCausal/services/causal/scm"
	"github.com/MeridianAI/MeridianCausal/services/causal/unit"
	"github.com/MeridianAI/MeridianCausal/services/causal/validate"
)

// maxImpactPaths caps path enumeration per (source, descendant) pair in
// impact scoring.
const maxImpactPaths = 16

// EnhancedIR is the read-only façade over one enhancement result. The
// base code unit is owned by reference and delegated unchanged; causal
// accessors are cheap eager fields or compute-once caches. The object is
// immutable after construction, so no cache invalidation ever happens.
//
// # Thread Safety
//
// EnhancedIR is safe for concurrent use.
type EnhancedIR struct {
	res *Result

	impactMu    sync.Mutex
	impactCache map[string]map[string]float64
}

// NewEnhancedIR wraps one enhancement result.
func NewEnhancedIR(res *Result) *EnhancedIR {
	return &EnhancedIR{
		res:         res,
		impactCache: make(map[string]map[string]float64),
	}
}

// Unit returns the base code unit, unmodified.
func (ir *EnhancedIR) Unit() *unit.CodeUnit {
	return ir.res.Unit
}

// RunID identifies the enhancement run that produced this object.
func (ir *EnhancedIR) RunID() string {
	return ir.res.RunID
}

// HasCausalCapabilities reports whether any causal structure is present.
func (ir *EnhancedIR) HasCausalCapabilities() bool {
	return ir.res.Graph != nil
}

// CausalMode returns the concrete fitting mode used, empty when fitting
// never ran.
func (ir *EnhancedIR) CausalMode() fit.Mode {
	return ir.res.ModeUsed
}

// CausalWarnings returns a copy of the degradations recorded during
// enhancement.
func (ir *EnhancedIR) CausalWarnings() []string {
	return append([]string(nil), ir.res.Warnings...)
}

// CausalGraph returns the extracted DAG, nil when extraction failed.
func (ir *EnhancedIR) CausalGraph() *graph.Graph {
	return ir.res.Graph
}

// CausalModel returns the fitted SCM, nil when fitting was skipped or
// failed.
func (ir *EnhancedIR) CausalModel() *scm.SCM {
	return ir.res.Model
}

// CausalValidation returns the cross-validation scores of a dynamic fit,
// nil otherwise.
func (ir *EnhancedIR) CausalValidation() *validate.Result {
	return ir.res.Validation
}

// CausalImpact maps each node downstream of id to an impact magnitude in
// [0, 1], derived from simple-path count and, when a numeric model is
// present, fitted-mechanism sensitivity along the strongest path.
//
// Returns an empty map, never an error, when causal structure is
// unavailable or id is unknown. Computed once per node and cached.
func (ir *EnhancedIR) CausalImpact(id string) map[string]float64 {
	g := ir.res.Graph
	if g == nil || !g.HasNode(id) {
		return map[string]float64{}
	}

	ir.impactMu.Lock()
	defer ir.impactMu.Unlock()
	if cached, ok := ir.impactCache[id]; ok {
		return copyImpact(cached)
	}

	impact := ir.computeImpact(g, id)
	ir.impactCache[id] = impact
	return copyImpact(impact)
}

// computeImpact scores every descendant of id.
func (ir *EnhancedIR) computeImpact(g *graph.Graph, id string) map[string]float64 {
	descendants, err := g.Descendants(id)
	if err != nil {
		return map[string]float64{}
	}

	impact := make(map[string]float64, len(descendants))
	for _, d := range descendants {
		paths, err := g.SimplePaths(id, d, maxImpactPaths)
		if err != nil || len(paths) == 0 {
			continue
		}
		pathFactor := float64(len(paths)) / float64(len(paths)+1)

		sensitivity := 1.0
		if ir.res.Model != nil && ir.res.Model.Fitted() {
			sensitivity = ir.bestPathSensitivity(paths)
		}

		score := pathFactor * sensitivity
		if score > 1 {
			score = 1
		}
		if score > 0 {
			impact[d] = score
		}
	}
	return impact
}

// bestPathSensitivity takes the strongest path's product of per-edge
// coefficient magnitudes, each squashed into [0, 1).
func (ir *EnhancedIR) bestPathSensitivity(paths [][]string) float64 {
	best := 0.0
	for _, path := range paths {
		s := 1.0
		for i := 1; i < len(path); i++ {
			s *= ir.edgeSensitivity(path[i-1], path[i])
		}
		if s > best {
			best = s
		}
	}
	return best
}

// edgeSensitivity squashes the child's coefficient on the parent. Edges
// into empirical or structural mechanisms contribute a neutral factor.
func (ir *EnhancedIR) edgeSensitivity(parent, child string) float64 {
	mech, err := ir.res.Model.Mechanism(child)
	if err != nil {
		return 1.0
	}
	switch mech.Type {
	case scm.TypeLinear, scm.TypeNonlinear:
		c := math.Abs(mech.Coef[parent])
		if q, ok := mech.QuadCoef[parent]; ok {
			c += math.Abs(q)
		}
		return c / (1 + c)
	default:
		return 1.0
	}
}

// CausalIntervention simulates one intervention through the embedded
// engine. Returns (nil, nil) when no numerically fitted model is
// available; graph-only and static results cannot simulate.
func (ir *EnhancedIR) CausalIntervention(ctx context.Context, spec intervene.Spec, queryNodes []string, nSamples int) (*intervene.Result, error) {
	if ir.res.Engine == nil || ir.res.Model == nil || !ir.res.Model.Fitted() {
		return nil, nil
	}
	return ir.res.Engine.EstimateImpact(ctx, spec, queryNodes, nSamples)
}

// CausalPaths enumerates simple directed paths between two nodes. Pure
// structure; available whenever a graph exists, fitted or not.
func (ir *EnhancedIR) CausalPaths(source, target string, maxPaths int) ([][]string, error) {
	if ir.res.Graph == nil {
		return nil, graph.ErrNodeNotFound
	}
	return ir.res.Graph.SimplePaths(source, target, maxPaths)
}

func copyImpact(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
