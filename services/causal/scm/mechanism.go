// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scm

import (
	"fmt"
	"math/rand"
)

// MechanismType classifies how a node's value is generated.
type MechanismType string

const (
	// TypeEmpirical draws from the observed distribution of a root node.
	TypeEmpirical MechanismType = "empirical"

	// TypeLinear is an affine function of the parents plus Gaussian noise.
	TypeLinear MechanismType = "linear"

	// TypeNonlinear adds quadratic parent terms to the linear form.
	TypeNonlinear MechanismType = "nonlinear"

	// TypeStructural is a topology-only placeholder assigned in static
	// mode: it preserves causal structure but carries no parameters and
	// cannot produce numeric predictions.
	TypeStructural MechanismType = "structural"
)

// FitSource records which pipeline mode produced the mechanism.
type FitSource string

const (
	// SourceStatic means the mechanism was assigned from structure alone.
	SourceStatic FitSource = "static"

	// SourceDynamic means parameters were learned from execution traces.
	SourceDynamic FitSource = "dynamic"
)

// Mechanism is the generating function of one causal node.
//
// For TypeLinear and TypeNonlinear the generated value is
//
//	Intercept + Σ Coef[p]·v(p) + Σ QuadCoef[p]·v(p)² + N(0, NoiseSigma²)
//
// with QuadCoef empty in the linear case. TypeEmpirical resamples from
// Samples. TypeStructural has no numeric form.
//
// # Thread Safety
//
// Mechanism is immutable after assignment to a frozen SCM. Predict is safe
// for concurrent use; Sample is safe when each goroutine owns its rng.
type Mechanism struct {
	// Type classifies the generating function.
	Type MechanismType `json:"type"`

	// FittedFrom records static or dynamic provenance.
	FittedFrom FitSource `json:"fitted_from"`

	// Parents lists the parent node IDs the mechanism consumes, sorted.
	Parents []string `json:"parents,omitempty"`

	// Intercept is the constant term of a regression mechanism.
	Intercept float64 `json:"intercept,omitempty"`

	// Coef maps parent ID to its linear coefficient.
	Coef map[string]float64 `json:"coef,omitempty"`

	// QuadCoef maps parent ID to its squared-term coefficient
	// (nonlinear mechanisms only).
	QuadCoef map[string]float64 `json:"quad_coef,omitempty"`

	// NoiseSigma is the residual standard deviation used when sampling.
	NoiseSigma float64 `json:"noise_sigma,omitempty"`

	// Samples is the observed value pool of an empirical mechanism.
	Samples []float64 `json:"samples,omitempty"`
}

// NewStructural returns the static-mode placeholder for a non-root node.
func NewStructural(parents []string) *Mechanism {
	return &Mechanism{
		Type:       TypeStructural,
		FittedFrom: SourceStatic,
		Parents:    append([]string(nil), parents...),
	}
}

// NewEmpirical returns a root mechanism drawing from observed values.
// A nil or empty pool yields an unparameterized empirical mechanism, the
// static-mode form for roots.
func NewEmpirical(samples []float64, source FitSource) *Mechanism {
	return &Mechanism{
		Type:       TypeEmpirical,
		FittedFrom: source,
		Samples:    append([]float64(nil), samples...),
	}
}

// Fitted reports whether the mechanism carries numeric parameters usable
// for prediction or simulation.
func (m *Mechanism) Fitted() bool {
	switch m.Type {
	case TypeLinear, TypeNonlinear:
		return m.Coef != nil
	case TypeEmpirical:
		return len(m.Samples) > 0
	default:
		return false
	}
}

// Predict computes the noiseless value from parent values.
//
// Errors:
//
//	ErrNotFitted - Structural or unparameterized mechanism
//	ErrMechanismMissing - A required parent value is absent
func (m *Mechanism) Predict(parents map[string]float64) (float64, error) {
	switch m.Type {
	case TypeLinear, TypeNonlinear:
		if m.Coef == nil {
			return 0, ErrNotFitted
		}
		y := m.Intercept
		for _, p := range m.Parents {
			v, ok := parents[p]
			if !ok {
				return 0, fmt.Errorf("%w: parent value %s", ErrMechanismMissing, p)
			}
			y += m.Coef[p] * v
			if q, ok := m.QuadCoef[p]; ok {
				y += q * v * v
			}
		}
		return y, nil

	case TypeEmpirical:
		if len(m.Samples) == 0 {
			return 0, ErrNotFitted
		}
		// The noiseless summary of an empirical root is its mean.
		sum := 0.0
		for _, v := range m.Samples {
			sum += v
		}
		return sum / float64(len(m.Samples)), nil

	default:
		return 0, ErrNotFitted
	}
}

// Sample draws one value given parent values, using the caller's rng for
// reproducibility.
//
// Errors:
//
//	ErrNotFitted - Structural or unparameterized mechanism
//	ErrNoSamples - Empirical mechanism with an empty pool
func (m *Mechanism) Sample(parents map[string]float64, rng *rand.Rand) (float64, error) {
	switch m.Type {
	case TypeEmpirical:
		if len(m.Samples) == 0 {
			return 0, ErrNoSamples
		}
		return m.Samples[rng.Intn(len(m.Samples))], nil

	case TypeLinear, TypeNonlinear:
		y, err := m.Predict(parents)
		if err != nil {
			return 0, err
		}
		if m.NoiseSigma > 0 {
			y += rng.NormFloat64() * m.NoiseSigma
		}
		return y, nil

	default:
		return 0, ErrNotFitted
	}
}
