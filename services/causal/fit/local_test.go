// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fit

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeridianAI/MeridianCausal/services/causal/scm"
)

// linearRequest builds a one-edge request with y = 2x + 1 + noise.
func linearRequest(n int, sigma float64, seed int64) *BoundaryRequest {
	rng := rand.New(rand.NewSource(seed))
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = rng.Float64() * 10
		ys[i] = 2*xs[i] + 1 + rng.NormFloat64()*sigma
	}
	return &BoundaryRequest{
		Version: ProtocolVersion,
		Graph: BoundaryGraph{
			Nodes: []BoundaryNode{
				{ID: "x", Kind: "variable", Root: true},
				{ID: "y", Kind: "variable"},
			},
			Edges: []BoundaryEdge{{From: "x", To: "y", Type: "data_flow"}},
		},
		Traces: map[string][]float64{"x": xs, "y": ys},
		Config: BoundaryConfig{R2Threshold: 0.7},
	}
}

func TestLocalBoundary_LinearRecovery(t *testing.T) {
	resp, err := NewLocalBoundary().Fit(context.Background(), linearRequest(200, 0.01, 42))
	require.NoError(t, err)
	require.Equal(t, "success", resp.Status)

	mech := resp.SCM.Mechanisms["y"]
	require.NotNil(t, mech)
	assert.Equal(t, scm.TypeLinear, mech.Type)
	assert.InDelta(t, 2.0, mech.Coef["x"], 0.01)
	assert.InDelta(t, 1.0, mech.Intercept, 0.05)

	root := resp.SCM.Mechanisms["x"]
	require.NotNil(t, root)
	assert.Equal(t, scm.TypeEmpirical, root.Type)
	assert.Len(t, root.Samples, 200)
}

func TestLocalBoundary_R2ApproachesOneAsNoiseVanishes(t *testing.T) {
	prev := -1.0
	for _, sigma := range []float64{2.0, 0.5, 0.01} {
		resp, err := NewLocalBoundary().Fit(context.Background(), linearRequest(500, sigma, 7))
		require.NoError(t, err)
		require.Equal(t, "success", resp.Status)
		r2 := resp.Validation.R2Scores["y"]
		assert.Greater(t, r2, prev, "R² should improve as noise shrinks")
		prev = r2
	}
	assert.Greater(t, prev, 0.999)
}

func TestLocalBoundary_QuadraticEscalation(t *testing.T) {
	// y = x² over a symmetric range defeats the linear form outright.
	n := 41
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i-20) / 2
		ys[i] = xs[i] * xs[i]
	}
	req := linearRequest(2, 0, 1)
	req.Traces = map[string][]float64{"x": xs, "y": ys}

	resp, err := NewLocalBoundary().Fit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "success", resp.Status)

	mech := resp.SCM.Mechanisms["y"]
	require.NotNil(t, mech)
	assert.Equal(t, scm.TypeNonlinear, mech.Type)
	assert.InDelta(t, 1.0, mech.QuadCoef["x"], 0.01)
	assert.InDelta(t, 0.0, mech.Coef["x"], 0.01)
}

func TestLocalBoundary_NoEscalationWhenLinearFits(t *testing.T) {
	resp, err := NewLocalBoundary().Fit(context.Background(), linearRequest(100, 0.01, 3))
	require.NoError(t, err)
	mech := resp.SCM.Mechanisms["y"]
	assert.Equal(t, scm.TypeLinear, mech.Type, "a well-fit linear form must not escalate")
}

func TestLocalBoundary_ErrorResponses(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		req := linearRequest(50, 0.1, 1)
		delete(req.Traces, "y")
		resp, err := NewLocalBoundary().Fit(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, "missing_column", resp.Error)
	})

	t.Run("too few rows", func(t *testing.T) {
		req := linearRequest(2, 0.1, 1)
		resp, err := NewLocalBoundary().Fit(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, "fit_failed", resp.Error)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewLocalBoundary().Fit(ctx, linearRequest(50, 0.1, 1))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOLSFit_ZeroVarianceTarget(t *testing.T) {
	y := []float64{3, 3, 3, 3, 3}
	x := [][]float64{{1, 2, 3, 4, 5}}
	beta, r2, sigma, err := olsFit(y, x)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, beta[0], 1e-9)
	assert.InDelta(t, 0.0, beta[1], 1e-9)
	assert.Equal(t, 1.0, r2, "exactly matched constant scores 1.0")
	assert.Less(t, sigma, 1e-9)
}

func TestOLSFit_Collinear(t *testing.T) {
	// Perfectly collinear features are near-singular; QR still yields an
	// approximate solution rather than failing.
	y := []float64{2, 4, 6, 8}
	x := [][]float64{{1, 2, 3, 4}, {2, 4, 6, 8}}
	beta, _, _, err := olsFit(y, x)
	require.NoError(t, err)
	require.Len(t, beta, 3)
}
