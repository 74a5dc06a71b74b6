// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scm holds the structural causal model: a read-only causal graph
// plus one generating mechanism per node.
//
// # Lifecycle
//
// An SCM moves through a strict lifecycle: empty → mechanisms assigned →
// fitted → frozen. After Freeze() the model is immutable and safe for
// concurrent consumers (validation, intervention simulation).
package scm

import "errors"

// Sentinel errors for structural causal models.
var (
	// ErrModelFrozen is returned when assigning to a frozen model.
	ErrModelFrozen = errors.New("scm is frozen and cannot be modified")

	// ErrNodeNotFound is returned when a mechanism targets a node absent
	// from the model's graph.
	ErrNodeNotFound = errors.New("node not in model graph")

	// ErrMechanismMissing is returned when a node has no assigned
	// mechanism.
	ErrMechanismMissing = errors.New("no mechanism assigned")

	// ErrNotFitted is returned when a numeric prediction is requested from
	// a topology-only (static) mechanism.
	ErrNotFitted = errors.New("mechanism has no fitted parameters")

	// ErrIncomplete is returned by Freeze when some graph node lacks a
	// mechanism.
	ErrIncomplete = errors.New("scm missing mechanisms for some nodes")

	// ErrNoSamples is returned when an empirical mechanism has no sample
	// pool to draw from.
	ErrNoSamples = errors.New("empirical mechanism has no samples")
)
