// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package enhance orchestrates the causal analysis pipeline: graph
// extraction, mechanism fitting, and validation, wrapped in a no-block
// contract. A code unit that does not analyze well degrades to a plain
// result with warnings; it never fails the caller.
package enhance

import "errors"

var (
	// ErrCircuitOpen indicates the fitting circuit breaker has tripped
	// and fitting is being skipped until an explicit reset.
	ErrCircuitOpen = errors.New("fitting circuit breaker is open")

	// ErrNilUnit indicates enhancement was requested for a nil code unit.
	// This is a programmer error, not a degradable outcome.
	ErrNilUnit = errors.New("nil code unit")
)
