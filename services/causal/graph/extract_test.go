// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/MeridianAI/MeridianCausal/services/causal/unit"
)

// computeUnit models:
//
//	func compute(x, n):
//	    y = 2 * x
//	    total = 0
//	    while n:
//	        total = total + y
//	    if y:
//	        z = total + 1
//	    emit(z)        # log, write-only sink
//	    return z, total
func computeUnit() *unit.CodeUnit {
	return &unit.CodeUnit{
		Name:     "pkg.compute",
		FilePath: "compute.py",
		Params:   []unit.Param{{Name: "x", Line: 1}, {Name: "n", Line: 1}},
		Statements: []unit.Statement{
			{Kind: unit.KindAssign, Reads: []string{"x"}, Writes: []string{"y"}, Line: 2},
			{Kind: unit.KindAssign, Writes: []string{"total"}, Line: 3},
			{Kind: unit.KindLoop, Cond: []string{"n"}, Line: 4, Body: []unit.Statement{
				{Kind: unit.KindAssign, Reads: []string{"total", "y"}, Writes: []string{"total"}, Line: 5},
			}},
			{Kind: unit.KindBranch, Cond: []string{"y"}, Line: 6, Body: []unit.Statement{
				{Kind: unit.KindAssign, Reads: []string{"total"}, Writes: []string{"z"}, Line: 7},
			}},
			{Kind: unit.KindEmit, Reads: []string{"z"}, Writes: []string{"log"}, Line: 8},
			{Kind: unit.KindReturn, Reads: []string{"z", "total"}, Line: 9},
		},
	}
}

func TestExtract_BuildsFrozenDAG(t *testing.T) {
	g, err := NewExtractor().Extract(context.Background(), computeUnit())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !g.IsFrozen() {
		t.Fatal("graph should be frozen after extraction")
	}
	if _, err := g.TopoOrder(); err != nil {
		t.Fatalf("frozen graph must have a topological order: %v", err)
	}

	for _, id := range []string{"x", "n", "y", "total", "z", ReturnNodeID} {
		if !g.HasNode(id) {
			t.Errorf("missing node %s", id)
		}
	}
}

func TestExtract_DataFlowEdges(t *testing.T) {
	g, err := NewExtractor().Extract(context.Background(), computeUnit())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	wantParents := map[string][]string{
		"y":          {"x"},
		"z":          {"total", "y"}, // total via data, y via control
		ReturnNodeID: {"total", "z"},
	}
	for id, want := range wantParents {
		got := g.Parents(id)
		if len(got) != len(want) {
			t.Errorf("parents(%s) = %v, want %v", id, got, want)
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("parents(%s) = %v, want %v", id, got, want)
				break
			}
		}
	}
}

func TestExtract_LoopCollapsesToSingleNode(t *testing.T) {
	g, err := NewExtractor().Extract(context.Background(), computeUnit())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	// The loop-carried reassignment must not produce a self-edge.
	for _, e := range g.Edges() {
		if e.FromID == e.ToID {
			t.Fatalf("self-edge survived extraction: %s", e.FromID)
		}
	}
	// total has writes both inside and outside the loop, so the loop
	// condition guards it only partially and contributes no control edge.
	for _, p := range g.Parents("total") {
		if p == "n" {
			t.Fatal("partially guarded variable must not gain a control edge")
		}
	}
}

func TestExtract_ControlEdgeForExclusiveGuard(t *testing.T) {
	g, err := NewExtractor().Extract(context.Background(), computeUnit())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	found := false
	for _, e := range g.Edges() {
		if e.FromID == "y" && e.ToID == "z" && e.Type == EdgeTypeControlFlow {
			found = true
		}
	}
	if !found {
		t.Fatal("z is written only inside the y-guarded branch; expected control edge y -> z")
	}
}

func TestExtract_PrunesEmitOnlySink(t *testing.T) {
	g, err := NewExtractor().Extract(context.Background(), computeUnit())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if g.HasNode("log") {
		t.Fatal("emit-only sink with no downstream use should be pruned")
	}
}

func TestExtract_KeepIncidentalSinks(t *testing.T) {
	x := NewExtractor(WithPrunePolicy(PrunePolicy{KeepIncidentalSinks: true}))
	g, err := x.Extract(context.Background(), computeUnit())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !g.HasNode("log") {
		t.Fatal("KeepIncidentalSinks should retain the emit sink")
	}
}

func TestExtract_KeepHookRetainsSink(t *testing.T) {
	x := NewExtractor(WithPrunePolicy(PrunePolicy{
		Keep: func(nodeID string) bool { return nodeID == "log" },
	}))
	g, err := x.Extract(context.Background(), computeUnit())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !g.HasNode("log") {
		t.Fatal("Keep hook should retain the named sink")
	}
}

func TestExtract_CycleFails(t *testing.T) {
	u := &unit.CodeUnit{
		Name: "pkg.cyclic",
		Statements: []unit.Statement{
			{Kind: unit.KindAssign, Reads: []string{"b"}, Writes: []string{"a"}},
			{Kind: unit.KindAssign, Reads: []string{"a"}, Writes: []string{"b"}},
		},
	}
	_, err := NewExtractor().Extract(context.Background(), u)
	if err == nil {
		t.Fatal("expected extraction failure for a genuine cycle")
	}
	var xerr *ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *ExtractionError, got %T", err)
	}
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle cause, got %v", err)
	}
}

func TestExtract_UnparseableUnit(t *testing.T) {
	u := &unit.CodeUnit{Name: "pkg.bad"}
	_, err := NewExtractor().Extract(context.Background(), u)
	var xerr *ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *ExtractionError, got %v", err)
	}
	if !errors.Is(err, unit.ErrEmptyUnit) {
		t.Fatalf("expected ErrEmptyUnit cause, got %v", err)
	}
}

func TestExtract_ParamsAreRoots(t *testing.T) {
	g, err := NewExtractor().Extract(context.Background(), computeUnit())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	for _, p := range []string{"x", "n"} {
		if !g.IsRoot(p) {
			t.Errorf("parameter %s should be a root", p)
		}
		node, ok := g.GetNode(p)
		if !ok || node.Kind != NodeKindParameter {
			t.Errorf("parameter %s should have kind parameter", p)
		}
	}
	node, _ := g.GetNode(ReturnNodeID)
	if node.Kind != NodeKindFunction {
		t.Error("return node should have kind function")
	}
}
