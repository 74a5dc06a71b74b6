// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package unit

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_NilUnit(t *testing.T) {
	var u *CodeUnit
	if err := u.Validate(); !errors.Is(err, ErrEmptyUnit) {
		t.Fatalf("expected ErrEmptyUnit, got %v", err)
	}
}

func TestValidate_EmptyUnit(t *testing.T) {
	u := &CodeUnit{Name: "pkg.Empty"}
	if err := u.Validate(); !errors.Is(err, ErrEmptyUnit) {
		t.Fatalf("expected ErrEmptyUnit, got %v", err)
	}
}

func TestValidate_MissingName(t *testing.T) {
	u := &CodeUnit{
		Statements: []Statement{{Kind: KindAssign, Writes: []string{"x"}}},
	}
	if err := u.Validate(); !errors.Is(err, ErrEmptyUnit) {
		t.Fatalf("expected ErrEmptyUnit, got %v", err)
	}
}

func TestValidate_UnknownStatementKind(t *testing.T) {
	u := &CodeUnit{
		Name: "pkg.Bad",
		Statements: []Statement{
			{Kind: StatementKind("goto"), Writes: []string{"x"}},
		},
	}
	err := u.Validate()
	if !errors.Is(err, ErrMalformedUnit) {
		t.Fatalf("expected ErrMalformedUnit, got %v", err)
	}
	if !strings.Contains(err.Error(), "goto") {
		t.Fatalf("error should name the unknown kind: %v", err)
	}
}

func TestValidate_GuardShapes(t *testing.T) {
	tests := []struct {
		name string
		stmt Statement
	}{
		{
			name: "branch without body",
			stmt: Statement{Kind: KindBranch, Cond: []string{"x"}},
		},
		{
			name: "assign with guard fields",
			stmt: Statement{Kind: KindAssign, Writes: []string{"y"}, Cond: []string{"x"}},
		},
		{
			name: "assign writing nothing",
			stmt: Statement{Kind: KindAssign, Reads: []string{"x"}},
		},
		{
			name: "duplicate parameter",
			stmt: Statement{Kind: KindAssign, Writes: []string{"y"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &CodeUnit{Name: "pkg.U", Statements: []Statement{tt.stmt}}
			if tt.name == "duplicate parameter" {
				u.Params = []Param{{Name: "a"}, {Name: "a"}}
			}
			if err := u.Validate(); !errors.Is(err, ErrMalformedUnit) {
				t.Fatalf("expected ErrMalformedUnit, got %v", err)
			}
		})
	}
}

func TestValidate_WellFormed(t *testing.T) {
	u := &CodeUnit{
		Name:   "pkg.Compute",
		Params: []Param{{Name: "x", Line: 1}},
		Statements: []Statement{
			{Kind: KindAssign, Reads: []string{"x"}, Writes: []string{"y"}, Line: 2},
			{Kind: KindBranch, Cond: []string{"y"}, Body: []Statement{
				{Kind: KindAssign, Reads: []string{"y"}, Writes: []string{"z"}, Line: 4},
			}, Line: 3},
			{Kind: KindReturn, Reads: []string{"z"}, Line: 5},
		},
	}
	if err := u.Validate(); err != nil {
		t.Fatalf("expected valid unit, got %v", err)
	}
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	doc := `{"name":"pkg.U","statements":[{"kind":"assign","writes":["x"]}],"bogus":1}`
	if _, err := Decode(strings.NewReader(doc)); !errors.Is(err, ErrMalformedUnit) {
		t.Fatalf("expected ErrMalformedUnit for unknown field, got %v", err)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	doc := `{
		"name": "pkg.Compute",
		"language": "python",
		"params": [{"name": "x", "line": 1}],
		"statements": [
			{"kind": "assign", "reads": ["x"], "writes": ["y"], "line": 2},
			{"kind": "return", "reads": ["y"], "line": 3}
		]
	}`
	u, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Name != "pkg.Compute" || len(u.Params) != 1 || len(u.Statements) != 2 {
		t.Fatalf("unexpected decode result: %+v", u)
	}
	if u.Statements[0].Kind != KindAssign {
		t.Fatalf("expected assign, got %s", u.Statements[0].Kind)
	}
}
