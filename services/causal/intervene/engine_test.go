// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intervene

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeridianAI/MeridianCausal/services/causal/graph"
	"github.com/MeridianAI/MeridianCausal/services/causal/scm"
)

// fittedChain builds a frozen dynamic model over x -> y -> z with
// y = 2x + 1 and z = 3y - 2, plus a little mechanism noise.
func fittedChain(t *testing.T) *scm.SCM {
	t.Helper()
	g := graph.New("pkg.chain")
	for _, id := range []string{"x", "y", "z"} {
		_, err := g.AddNode(id, graph.NodeKindVariable, graph.Loc{})
		require.NoError(t, err)
	}
	require.NoError(t, g.AddEdge("x", "y", graph.EdgeTypeDataFlow))
	require.NoError(t, g.AddEdge("y", "z", graph.EdgeTypeDataFlow))
	require.NoError(t, g.Freeze())

	model, err := scm.New(g, scm.SourceDynamic)
	require.NoError(t, err)
	require.NoError(t, model.Assign("x", scm.NewEmpirical([]float64{1, 2, 3, 4, 5}, scm.SourceDynamic)))
	require.NoError(t, model.Assign("y", &scm.Mechanism{
		Type:       scm.TypeLinear,
		FittedFrom: scm.SourceDynamic,
		Parents:    []string{"x"},
		Intercept:  1,
		Coef:       map[string]float64{"x": 2},
		NoiseSigma: 0.01,
	}))
	require.NoError(t, model.Assign("z", &scm.Mechanism{
		Type:       scm.TypeLinear,
		FittedFrom: scm.SourceDynamic,
		Parents:    []string{"y"},
		Intercept:  -2,
		Coef:       map[string]float64{"y": 3},
		NoiseSigma: 0.01,
	}))
	require.NoError(t, model.Freeze())
	return model
}

func staticChain(t *testing.T) *scm.SCM {
	t.Helper()
	g := graph.New("pkg.chain")
	for _, id := range []string{"x", "y"} {
		_, err := g.AddNode(id, graph.NodeKindVariable, graph.Loc{})
		require.NoError(t, err)
	}
	require.NoError(t, g.AddEdge("x", "y", graph.EdgeTypeDataFlow))
	require.NoError(t, g.Freeze())

	model, err := scm.New(g, scm.SourceStatic)
	require.NoError(t, err)
	require.NoError(t, model.Assign("x", scm.NewEmpirical(nil, scm.SourceStatic)))
	require.NoError(t, model.Assign("y", scm.NewStructural([]string{"x"})))
	require.NoError(t, model.Freeze())
	return model
}

func TestEstimateImpact_HardIntervention(t *testing.T) {
	e := New(fittedChain(t))

	res, err := e.EstimateImpact(context.Background(),
		Spec{NodeID: "x", Kind: KindHard, Value: 10},
		[]string{"x", "y", "z"}, 2000)
	require.NoError(t, err)

	assert.Equal(t, "x", res.Intervened)
	assert.Equal(t, 2000, res.Samples)

	// The pinned node is exactly its value; downstream follows the
	// mechanisms: y = 2*10+1 = 21, z = 3*21-2 = 61.
	assert.Equal(t, 10.0, res.Outcomes["x"].Mean)
	assert.Zero(t, res.Outcomes["x"].Variance)
	assert.InDelta(t, 21.0, res.Outcomes["y"].Mean, 0.01)
	assert.InDelta(t, 61.0, res.Outcomes["z"].Mean, 0.05)
	assert.LessOrEqual(t, res.Outcomes["z"].CILower, res.Outcomes["z"].CIUpper)
}

func TestEstimateImpact_SoftIntervention(t *testing.T) {
	e := New(fittedChain(t))

	// Doubling y's own output shifts z accordingly: with x drawn from
	// {1..5} (mean 3), y ~ 2*(2x+1) = 14 on average, z ~ 3*14-2 = 40.
	res, err := e.EstimateImpact(context.Background(),
		Spec{NodeID: "y", Kind: KindSoft, Transform: func(v float64) float64 { return 2 * v }},
		[]string{"y", "z"}, 5000)
	require.NoError(t, err)

	assert.InDelta(t, 14.0, res.Outcomes["y"].Mean, 0.3)
	assert.InDelta(t, 40.0, res.Outcomes["z"].Mean, 1.0)
}

func TestEstimateImpact_Reproducible(t *testing.T) {
	spec := Spec{NodeID: "x", Kind: KindHard, Value: 2}

	a, err := New(fittedChain(t), WithEngineSeed(7)).
		EstimateImpact(context.Background(), spec, []string{"z"}, 100)
	require.NoError(t, err)
	b, err := New(fittedChain(t), WithEngineSeed(7)).
		EstimateImpact(context.Background(), spec, []string{"z"}, 100)
	require.NoError(t, err)

	assert.Equal(t, a.Outcomes["z"], b.Outcomes["z"], "fixed seed must reproduce draws")
}

func TestEstimateImpact_Rejections(t *testing.T) {
	e := New(fittedChain(t))
	ctx := context.Background()
	hard := Spec{NodeID: "x", Kind: KindHard, Value: 1}

	_, err := New(staticChain(t)).EstimateImpact(ctx, hard, []string{"y"}, 10)
	assert.ErrorIs(t, err, ErrStaticModel)

	_, err = e.EstimateImpact(ctx, Spec{NodeID: "missing", Kind: KindHard}, nil, 10)
	assert.ErrorIs(t, err, ErrUnknownNode)

	_, err = e.EstimateImpact(ctx, hard, []string{"missing"}, 10)
	assert.ErrorIs(t, err, ErrUnknownNode)

	_, err = e.EstimateImpact(ctx, Spec{NodeID: "y", Kind: KindSoft}, nil, 10)
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = e.EstimateImpact(ctx, Spec{NodeID: "y", Kind: Kind("fuzzy")}, nil, 10)
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = e.EstimateImpact(ctx, hard, []string{"y"}, 0)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestEstimateImpact_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(fittedChain(t)).EstimateImpact(ctx,
		Spec{NodeID: "x", Kind: KindHard, Value: 1}, []string{"y"}, 100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCausalPaths_WorksOnStaticModels(t *testing.T) {
	e := New(staticChain(t))
	paths, err := e.CausalPaths("x", "y", 10)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x", "y"}}, paths)
}

func TestDownstream(t *testing.T) {
	e := New(fittedChain(t))
	down, err := e.Downstream("x")
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, down)
}
