// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists fitted structural causal models in an embedded
// BadgerDB: an opaque binary blob for exact reload plus a lossy,
// display-safe JSON summary that cannot reconstruct a numerically usable
// model on its own.
package store

import "errors"

var (
	// ErrNotFound indicates no stored model exists under the given ID.
	ErrNotFound = errors.New("model not found")

	// ErrMissingPath indicates a persistent store was opened without a
	// directory path.
	ErrMissingPath = errors.New("path is required for persistent store")

	// ErrNilModel indicates Save was called with a nil or unfrozen model.
	ErrNilModel = errors.New("no frozen model to save")
)
