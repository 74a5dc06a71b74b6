// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package trace holds the sampled-execution table consumed by mechanism
// fitting and validation.
//
// A Table is ephemeral: columns are causal node IDs, rows are independent
// executions recorded by an external instrumentation component. It lives
// only for the duration of a fit or validate call and is never persisted
// by this engine.
package trace

import "errors"

// Sentinel errors for trace tables.
var (
	// ErrRaggedColumns is returned when columns have differing lengths.
	ErrRaggedColumns = errors.New("trace columns have differing lengths")

	// ErrEmptyTable is returned when a table has no rows or no columns.
	ErrEmptyTable = errors.New("trace table is empty")

	// ErrColumnNotFound is returned when a requested column is absent.
	ErrColumnNotFound = errors.New("trace column not found")

	// ErrRowOutOfRange is returned when a row index is outside the table.
	ErrRowOutOfRange = errors.New("trace row index out of range")

	// ErrMalformedTable is returned when a trace document cannot be
	// decoded.
	ErrMalformedTable = errors.New("malformed trace table")
)
