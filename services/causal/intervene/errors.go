// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package intervene simulates interventions on fitted structural causal
// models and answers pure-structure path queries.
package intervene

import "errors"

var (
	// ErrStaticModel indicates a numeric intervention query against a
	// static-only model with no fitted parameters to simulate. Path
	// queries remain available.
	ErrStaticModel = errors.New("model has no fitted parameters for numeric interventions")

	// ErrUnknownNode indicates an intervention or query node absent from
	// the graph.
	ErrUnknownNode = errors.New("node not in causal graph")

	// ErrInvalidSpec indicates a malformed intervention specification,
	// such as a soft intervention without a transform.
	ErrInvalidSpec = errors.New("invalid intervention specification")

	// ErrNoSamples indicates a non-positive sample count.
	ErrNoSamples = errors.New("sample count must be positive")
)
