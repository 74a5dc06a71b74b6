// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fit

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/MeridianAI/MeridianCausal/services/causal/scm"
)

// Default escalation parameters for the local fitting service.
const (
	// defaultEscalationR2 is the in-sample R² below which a linear fit is
	// considered underfit and a quadratic form is tried.
	defaultEscalationR2 = 0.80

	// defaultImproveMargin is the minimum in-sample R² gain the quadratic
	// form must deliver to replace the linear one.
	defaultImproveMargin = 0.05
)

// LocalBoundaryOption is a functional option for LocalBoundary.
type LocalBoundaryOption func(*LocalBoundary)

// WithEscalationR2 sets the underfit threshold triggering a nonlinear fit.
func WithEscalationR2(r2 float64) LocalBoundaryOption {
	return func(b *LocalBoundary) {
		b.escalationR2 = r2
	}
}

// WithImproveMargin sets the R² gain required to keep the nonlinear form.
func WithImproveMargin(margin float64) LocalBoundaryOption {
	return func(b *LocalBoundary) {
		b.improveMargin = margin
	}
}

// LocalBoundary is the in-process numeric fitting service.
//
// It satisfies the same request/response contract as an out-of-process
// fitter: root nodes receive empirical distributions, non-root nodes an
// ordinary-least-squares linear mechanism, escalated to a quadratic
// (nonlinear) form only when residual diagnostics indicate underfit.
//
// # Thread Safety
//
// LocalBoundary is stateless between calls and safe for concurrent use.
type LocalBoundary struct {
	escalationR2  float64
	improveMargin float64
}

// NewLocalBoundary creates the default in-process fitting service.
func NewLocalBoundary(opts ...LocalBoundaryOption) *LocalBoundary {
	b := &LocalBoundary{
		escalationR2:  defaultEscalationR2,
		improveMargin: defaultImproveMargin,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name identifies the implementation.
func (b *LocalBoundary) Name() string {
	return "local-gonum"
}

// Fit fits one mechanism per node from the request's traces.
//
// A structured error response (status "error") is returned for
// recoverable fitting problems such as missing columns or too few rows;
// a Go error is returned only for context cancellation.
func (b *LocalBoundary) Fit(ctx context.Context, req *BoundaryRequest) (*BoundaryResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parents := make(map[string][]string, len(req.Graph.Nodes))
	for _, e := range req.Graph.Edges {
		parents[e.To] = append(parents[e.To], e.From)
	}
	for id := range parents {
		sort.Strings(parents[id])
	}

	mechanisms := make(map[string]*scm.Mechanism, len(req.Graph.Nodes))
	r2Scores := make(map[string]float64)

	for _, node := range req.Graph.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		col, ok := req.Traces[node.ID]
		if !ok {
			return errorResponse("missing_column",
				fmt.Sprintf("no trace column for node %s", node.ID)), nil
		}

		if node.Root || len(parents[node.ID]) == 0 {
			if len(col) == 0 {
				return errorResponse("insufficient_samples",
					fmt.Sprintf("empty trace column for root %s", node.ID)), nil
			}
			mechanisms[node.ID] = scm.NewEmpirical(col, scm.SourceDynamic)
			continue
		}

		mech, r2, err := b.fitNode(node.ID, col, parents[node.ID], req.Traces)
		if err != nil {
			return errorResponse("fit_failed", err.Error()), nil
		}
		mechanisms[node.ID] = mech
		r2Scores[node.ID] = r2
	}

	meanR2 := 1.0
	if len(r2Scores) > 0 {
		sum := 0.0
		for _, r2 := range r2Scores {
			sum += r2
		}
		meanR2 = sum / float64(len(r2Scores))
	}

	return &BoundaryResponse{
		Version: ProtocolVersion,
		Status:  "success",
		SCM:     &BoundarySCM{Mechanisms: mechanisms},
		Validation: &BoundaryValidation{
			R2Scores: r2Scores,
			MeanR2:   meanR2,
			Passed:   meanR2 >= req.Config.R2Threshold,
		},
	}, nil
}

// fitNode fits a regression mechanism for one non-root node, starting
// linear and escalating to a quadratic form on underfit.
func (b *LocalBoundary) fitNode(id string, y []float64, parentIDs []string, traces map[string][]float64) (*scm.Mechanism, float64, error) {
	n := len(y)
	p := len(parentIDs)
	if n < p+2 {
		return nil, 0, fmt.Errorf("node %s: %d rows for %d parents", id, n, p)
	}

	cols := make([][]float64, p)
	for i, pid := range parentIDs {
		col, ok := traces[pid]
		if !ok {
			return nil, 0, fmt.Errorf("node %s: no trace column for parent %s", id, pid)
		}
		if len(col) != n {
			return nil, 0, fmt.Errorf("node %s: ragged column %s", id, pid)
		}
		cols[i] = col
	}

	linBeta, linR2, linSigma, err := olsFit(y, cols)
	if err != nil {
		return nil, 0, fmt.Errorf("node %s: %w", id, err)
	}

	mech := &scm.Mechanism{
		Type:       scm.TypeLinear,
		FittedFrom: scm.SourceDynamic,
		Parents:    append([]string(nil), parentIDs...),
		Intercept:  linBeta[0],
		Coef:       make(map[string]float64, p),
		NoiseSigma: linSigma,
	}
	for i, pid := range parentIDs {
		mech.Coef[pid] = linBeta[i+1]
	}

	// Residual diagnostics: escalate only when the linear form underfits
	// and there is enough data for the doubled feature count.
	if linR2 >= b.escalationR2 || n < 2*(2*p+1)+2 {
		return mech, linR2, nil
	}

	quadCols := make([][]float64, 0, 2*p)
	quadCols = append(quadCols, cols...)
	for _, col := range cols {
		sq := make([]float64, n)
		for i, v := range col {
			sq[i] = v * v
		}
		quadCols = append(quadCols, sq)
	}

	quadBeta, quadR2, quadSigma, err := olsFit(y, quadCols)
	if err != nil || quadR2 < linR2+b.improveMargin {
		return mech, linR2, nil
	}

	nl := &scm.Mechanism{
		Type:       scm.TypeNonlinear,
		FittedFrom: scm.SourceDynamic,
		Parents:    append([]string(nil), parentIDs...),
		Intercept:  quadBeta[0],
		Coef:       make(map[string]float64, p),
		QuadCoef:   make(map[string]float64, p),
		NoiseSigma: quadSigma,
	}
	for i, pid := range parentIDs {
		nl.Coef[pid] = quadBeta[i+1]
		nl.QuadCoef[pid] = quadBeta[i+1+p]
	}
	return nl, quadR2, nil
}

// olsFit solves ordinary least squares with an intercept column via QR.
//
// Outputs:
//
//	beta - Coefficients, beta[0] is the intercept.
//	r2 - In-sample coefficient of determination.
//	sigma - Residual standard deviation (degrees-of-freedom corrected).
func olsFit(y []float64, features [][]float64) (beta []float64, r2, sigma float64, err error) {
	n := len(y)
	p := len(features)

	x := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		for j, col := range features {
			x.Set(i, j+1, col[i])
		}
	}

	var qr mat.QR
	qr.Factorize(x)

	yv := mat.NewDense(n, 1, append([]float64(nil), y...))
	var sol mat.Dense
	if solveErr := qr.SolveTo(&sol, false, yv); solveErr != nil {
		// A Condition error flags near-singularity but still carries an
		// approximate solution; anything else is fatal.
		if _, ok := solveErr.(mat.Condition); !ok {
			return nil, 0, 0, fmt.Errorf("ols solve: %w", solveErr)
		}
	}

	beta = make([]float64, p+1)
	for j := 0; j <= p; j++ {
		beta[j] = sol.At(j, 0)
	}

	ssRes := 0.0
	for i := 0; i < n; i++ {
		pred := beta[0]
		for j, col := range features {
			pred += beta[j+1] * col[i]
		}
		resid := y[i] - pred
		ssRes += resid * resid
	}

	meanY := stat.Mean(y, nil)
	ssTot := 0.0
	for _, v := range y {
		d := v - meanY
		ssTot += d * d
	}

	switch {
	case ssTot < 1e-12 && ssRes < 1e-9:
		r2 = 1.0
	case ssTot < 1e-12:
		r2 = 0.0
	default:
		r2 = 1.0 - ssRes/ssTot
	}

	dof := n - (p + 1)
	if dof < 1 {
		dof = 1
	}
	sigma = math.Sqrt(ssRes / float64(dof))
	return beta, r2, sigma, nil
}

// errorResponse builds a structured error response document.
func errorResponse(code, details string) *BoundaryResponse {
	return &BoundaryResponse{
		Version: ProtocolVersion,
		Status:  "error",
		Error:   code,
		Details: details,
	}
}
