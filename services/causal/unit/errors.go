// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package unit defines the code-unit input model consumed by the causal
// graph extractor.
//
// A CodeUnit is the statement-level view of one function or method as
// produced by an external static-analysis component: which variables each
// statement reads and writes, which statements are guarded by branch or
// loop conditions, and which writes are externally observable sinks. The
// engine consumes this data model; it does not parse source code itself.
//
// # Ownership Model
//
// A decoded CodeUnit is owned by the caller and MUST NOT be mutated after
// being handed to the extractor.
package unit

import (
	"errors"
	"fmt"
)

// Sentinel errors for code-unit decoding and validation.
var (
	// ErrEmptyUnit is returned when a code unit has no name or no
	// statements and no parameters. There is nothing to analyze.
	ErrEmptyUnit = errors.New("code unit is empty")

	// ErrUnknownStatementKind is returned when a statement carries a kind
	// outside the recognized set.
	ErrUnknownStatementKind = errors.New("unknown statement kind")

	// ErrMalformedUnit is returned when the input document cannot be
	// decoded or fails structural validation.
	ErrMalformedUnit = errors.New("malformed code unit")
)

// ValidationIssue records a single structural problem found while
// validating a decoded code unit. Issues are collected rather than
// failing fast so callers can report everything at once.
type ValidationIssue struct {
	// Path locates the offending element, e.g. "statements[3].kind".
	Path string

	// Err is the underlying sentinel error.
	Err error
}

// Error implements the error interface.
func (v ValidationIssue) Error() string {
	return fmt.Sprintf("%s: %v", v.Path, v.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (v ValidationIssue) Unwrap() error {
	return v.Err
}
