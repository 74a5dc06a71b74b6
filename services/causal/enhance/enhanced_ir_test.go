// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package enhance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeridianAI/MeridianCausal/services/causal/fit"
	"github.com/MeridianAI/MeridianCausal/services/causal/graph"
	"github.com/MeridianAI/MeridianCausal/services/causal/intervene"
)

// dynamicIR runs a full dynamic enhancement over simpleUnit.
func dynamicIR(t *testing.T) *EnhancedIR {
	t.Helper()
	tab := simpleTable(t, 300, 0.05, 42)
	res, err := New().Enhance(context.Background(), simpleUnit(), tab, fit.ModeDynamic)
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	return NewEnhancedIR(res)
}

// staticIR runs a static enhancement over simpleUnit.
func staticIR(t *testing.T) *EnhancedIR {
	t.Helper()
	res, err := New().Enhance(context.Background(), simpleUnit(), nil, fit.ModeStatic)
	require.NoError(t, err)
	return NewEnhancedIR(res)
}

func TestEnhancedIR_Accessors(t *testing.T) {
	ir := dynamicIR(t)

	assert.True(t, ir.HasCausalCapabilities())
	assert.Equal(t, fit.ModeDynamic, ir.CausalMode())
	assert.NotEmpty(t, ir.RunID())
	assert.NotNil(t, ir.Unit())
	assert.NotNil(t, ir.CausalGraph())
	assert.NotNil(t, ir.CausalModel())
	assert.NotNil(t, ir.CausalValidation())
	assert.Empty(t, ir.CausalWarnings())
}

func TestEnhancedIR_WarningsAreCopied(t *testing.T) {
	res := &Result{Warnings: []string{"w1"}}
	ir := NewEnhancedIR(res)
	w := ir.CausalWarnings()
	w[0] = "mutated"
	assert.Equal(t, []string{"w1"}, ir.CausalWarnings())
}

func TestCausalImpact_BoundedAndCovering(t *testing.T) {
	ir := dynamicIR(t)

	impact := ir.CausalImpact("x")
	require.NotEmpty(t, impact)
	assert.Contains(t, impact, "y")
	assert.Contains(t, impact, graph.ReturnNodeID)
	for id, score := range impact {
		assert.Greater(t, score, 0.0, "node %s", id)
		assert.LessOrEqual(t, score, 1.0, "node %s", id)
	}
}

func TestCausalImpact_UnknownNodeYieldsEmptyMap(t *testing.T) {
	ir := dynamicIR(t)

	impact := ir.CausalImpact("nonexistent")
	assert.NotNil(t, impact)
	assert.Empty(t, impact)
}

func TestCausalImpact_NoGraphYieldsEmptyMap(t *testing.T) {
	ir := NewEnhancedIR(&Result{})
	assert.Empty(t, ir.CausalImpact("x"))
}

func TestCausalImpact_CachedCopiesAreIndependent(t *testing.T) {
	ir := dynamicIR(t)

	first := ir.CausalImpact("x")
	first["y"] = 99

	second := ir.CausalImpact("x")
	assert.LessOrEqual(t, second["y"], 1.0, "mutating a returned map must not poison the cache")
	assert.NotEqual(t, 99.0, second["y"])
}

func TestCausalImpact_StaticModelUsesStructureOnly(t *testing.T) {
	ir := staticIR(t)

	impact := ir.CausalImpact("x")
	require.Contains(t, impact, "y")
	// One simple path x -> y gives the bare structural factor 1/2.
	assert.InDelta(t, 0.5, impact["y"], 1e-9)
}

func TestCausalIntervention_NilOnUnfittedModel(t *testing.T) {
	ir := staticIR(t)

	res, err := ir.CausalIntervention(context.Background(),
		intervene.Spec{NodeID: "x", Kind: intervene.KindHard, Value: 1},
		[]string{"y"}, 10)
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestCausalIntervention_DelegatesToEngine(t *testing.T) {
	ir := dynamicIR(t)

	res, err := ir.CausalIntervention(context.Background(),
		intervene.Spec{NodeID: "x", Kind: intervene.KindHard, Value: 5},
		[]string{"y"}, 500)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.InDelta(t, 11.0, res.Outcomes["y"].Mean, 0.1)
}

func TestCausalPaths(t *testing.T) {
	ir := dynamicIR(t)

	paths, err := ir.CausalPaths("x", graph.ReturnNodeID, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x", "y", graph.ReturnNodeID}}, paths)

	_, err = NewEnhancedIR(&Result{}).CausalPaths("x", "y", 10)
	assert.Error(t, err)
}
