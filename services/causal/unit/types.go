// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package unit

import (
	"fmt"
)

// StatementKind classifies what a statement does to program state.
type StatementKind string

const (
	// KindAssign writes one or more variables from the values it reads.
	KindAssign StatementKind = "assign"

	// KindCall invokes another function; any captured results appear in
	// Writes, arguments appear in Reads.
	KindCall StatementKind = "call"

	// KindBranch guards a body of statements with a condition.
	KindBranch StatementKind = "branch"

	// KindLoop guards a body of statements with a loop condition. Writes
	// inside a loop body that reassign an existing variable represent the
	// post-loop value of that variable.
	KindLoop StatementKind = "loop"

	// KindReturn produces the unit's return value from the values it reads.
	KindReturn StatementKind = "return"

	// KindEmit writes to an externally observable, write-only sink such as
	// a diagnostic message. Emit writes are candidates for pruning.
	KindEmit StatementKind = "emit"
)

// knownKinds is the set of statement kinds the extractor understands.
var knownKinds = map[StatementKind]bool{
	KindAssign: true,
	KindCall:   true,
	KindBranch: true,
	KindLoop:   true,
	KindReturn: true,
	KindEmit:   true,
}

// Valid reports whether k is a recognized statement kind.
func (k StatementKind) Valid() bool {
	return knownKinds[k]
}

// Statement is one statement of a code unit in read/write form.
//
// For KindBranch and KindLoop, Cond holds the variables read by the
// condition and Body holds the guarded statements. For every other kind,
// Cond and Body are empty.
type Statement struct {
	// Kind classifies the statement.
	Kind StatementKind `json:"kind"`

	// Reads lists variables whose values the statement consumes.
	Reads []string `json:"reads,omitempty"`

	// Writes lists variables the statement assigns.
	Writes []string `json:"writes,omitempty"`

	// Cond lists variables read by a branch/loop condition.
	Cond []string `json:"cond,omitempty"`

	// Body holds the statements guarded by a branch/loop condition.
	Body []Statement `json:"body,omitempty"`

	// Line is the 1-based source line of the statement, zero if unknown.
	Line int `json:"line,omitempty"`
}

// Param is one declared parameter of the code unit.
type Param struct {
	// Name is the parameter name. Must be unique within the unit.
	Name string `json:"name"`

	// Line is the 1-based source line of the declaration.
	Line int `json:"line,omitempty"`
}

// CodeUnit is the structural view of a single function or method.
//
// # Thread Safety
//
// CodeUnit is a plain value with no internal synchronization. Treat it as
// immutable once decoded.
type CodeUnit struct {
	// Name identifies the unit, e.g. "pkg.ComputeTotals".
	Name string `json:"name"`

	// Language is the source language, informational only.
	Language string `json:"language,omitempty"`

	// FilePath is the source file the unit was extracted from.
	FilePath string `json:"file_path,omitempty"`

	// Params lists declared parameters in declaration order.
	Params []Param `json:"params,omitempty"`

	// Statements lists top-level statements in source order.
	Statements []Statement `json:"statements,omitempty"`
}

// Validate checks the structural integrity of the unit.
//
// Returns nil when the unit is analyzable, or an error wrapping
// ErrEmptyUnit / ErrUnknownStatementKind / ErrMalformedUnit with the
// collected issues otherwise.
func (u *CodeUnit) Validate() error {
	if u == nil {
		return ErrEmptyUnit
	}
	if u.Name == "" {
		return fmt.Errorf("%w: unit has no name", ErrEmptyUnit)
	}
	if len(u.Statements) == 0 && len(u.Params) == 0 {
		return fmt.Errorf("%w: %s has no statements or parameters", ErrEmptyUnit, u.Name)
	}

	var issues []ValidationIssue
	seen := make(map[string]bool, len(u.Params))
	for i, p := range u.Params {
		if p.Name == "" {
			issues = append(issues, ValidationIssue{
				Path: fmt.Sprintf("params[%d]", i),
				Err:  ErrMalformedUnit,
			})
			continue
		}
		if seen[p.Name] {
			issues = append(issues, ValidationIssue{
				Path: fmt.Sprintf("params[%d] (%s)", i, p.Name),
				Err:  fmt.Errorf("%w: duplicate parameter", ErrMalformedUnit),
			})
		}
		seen[p.Name] = true
	}

	validateStatements(u.Statements, "statements", &issues)

	if len(issues) > 0 {
		return fmt.Errorf("%w: %d issue(s), first: %v", ErrMalformedUnit, len(issues), issues[0])
	}
	return nil
}

// validateStatements recursively checks statement kinds and guard shapes.
func validateStatements(stmts []Statement, path string, issues *[]ValidationIssue) {
	for i, s := range stmts {
		p := fmt.Sprintf("%s[%d]", path, i)
		if !s.Kind.Valid() {
			*issues = append(*issues, ValidationIssue{
				Path: p + ".kind",
				Err:  fmt.Errorf("%w: %q", ErrUnknownStatementKind, s.Kind),
			})
			continue
		}
		guarded := s.Kind == KindBranch || s.Kind == KindLoop
		if guarded {
			if len(s.Body) == 0 {
				*issues = append(*issues, ValidationIssue{
					Path: p + ".body",
					Err:  fmt.Errorf("%w: %s without body", ErrMalformedUnit, s.Kind),
				})
			}
			validateStatements(s.Body, p+".body", issues)
			continue
		}
		if len(s.Cond) > 0 || len(s.Body) > 0 {
			*issues = append(*issues, ValidationIssue{
				Path: p,
				Err:  fmt.Errorf("%w: %s carries guard fields", ErrMalformedUnit, s.Kind),
			})
		}
		if s.Kind != KindReturn && len(s.Writes) == 0 {
			*issues = append(*issues, ValidationIssue{
				Path: p + ".writes",
				Err:  fmt.Errorf("%w: %s writes nothing", ErrMalformedUnit, s.Kind),
			})
		}
	}
}
