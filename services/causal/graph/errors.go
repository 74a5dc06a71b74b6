// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph provides the causal graph type and the extractor that
// builds it from a code unit.
//
// Nodes are variables, parameters, and return sites; directed edges record
// data-flow (a read feeding a write) or control-flow (a condition guarding
// an assignment). The graph is a DAG: loop-carried reassignment is
// collapsed into a single node representing the post-loop value, and any
// residual cycle is an extraction error.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. After Freeze() it
// is read-only and safe for concurrent readers.
//
// # Lifecycle
//
//  1. Create with New()
//  2. Build with AddNode() and AddEdge()
//  3. Call Freeze() to verify acyclicity and finalize
//  4. Query with Parents(), Children(), TopoOrder(), SimplePaths(), etc.
package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrNodeNotFound is returned when an operation references a node that
	// does not exist in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when adding a node whose ID already
	// exists.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrInvalidNode is returned when adding a node with an empty ID or an
	// unrecognized kind.
	ErrInvalidNode = errors.New("invalid node")

	// ErrCycle is returned by Freeze when the graph is not acyclic after
	// pruning and loop collapse.
	ErrCycle = errors.New("graph contains a cycle")

	// ErrNotFrozen is returned by query methods that require a frozen
	// graph, such as TopoOrder.
	ErrNotFrozen = errors.New("graph is not frozen")
)

// ExtractionError reports that a code unit could not be turned into a
// causal graph. It is recoverable: the orchestrator degrades to returning
// the unmodified base specification.
type ExtractionError struct {
	// Unit is the name of the code unit that failed, when known.
	Unit string

	// Reason is a short human-readable cause.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Unit, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Unit, e.Reason)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}
