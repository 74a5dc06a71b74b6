// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"errors"
	"testing"
)

// diamond builds x -> {a, b} -> y and freezes it.
func diamond(t *testing.T) *Graph {
	t.Helper()
	g := New("pkg.diamond")
	for _, id := range []string{"x", "a", "b", "y"} {
		if _, err := g.AddNode(id, NodeKindVariable, Loc{}); err != nil {
			t.Fatalf("add node %s: %v", id, err)
		}
	}
	for _, e := range [][2]string{{"x", "a"}, {"x", "b"}, {"a", "y"}, {"b", "y"}} {
		if err := g.AddEdge(e[0], e[1], EdgeTypeDataFlow); err != nil {
			t.Fatalf("add edge %v: %v", e, err)
		}
	}
	if err := g.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	return g
}

func TestGraph_Lifecycle(t *testing.T) {
	g := New("pkg.u")
	if g.State() != GraphStateBuilding {
		t.Fatal("new graph should be building")
	}
	if _, err := g.AddNode("x", NodeKindVariable, Loc{}); err != nil {
		t.Fatalf("add node: %v", err)
	}
	if _, err := g.AddNode("x", NodeKindVariable, Loc{}); !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("expected ErrDuplicateNode, got %v", err)
	}
	if err := g.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if _, err := g.AddNode("y", NodeKindVariable, Loc{}); !errors.Is(err, ErrGraphFrozen) {
		t.Fatalf("expected ErrGraphFrozen, got %v", err)
	}
	if err := g.AddEdge("x", "x", EdgeTypeDataFlow); !errors.Is(err, ErrGraphFrozen) {
		t.Fatalf("expected ErrGraphFrozen, got %v", err)
	}
}

func TestGraph_EdgeDedupAndSelfDrop(t *testing.T) {
	g := New("pkg.u")
	for _, id := range []string{"a", "b"} {
		if _, err := g.AddNode(id, NodeKindVariable, Loc{}); err != nil {
			t.Fatalf("add node: %v", err)
		}
	}
	// Duplicate (from, to, type) collapses to one edge.
	for i := 0; i < 3; i++ {
		if err := g.AddEdge("a", "b", EdgeTypeDataFlow); err != nil {
			t.Fatalf("add edge: %v", err)
		}
	}
	// Self-edges are dropped silently (loop collapse).
	if err := g.AddEdge("a", "a", EdgeTypeDataFlow); err != nil {
		t.Fatalf("self-edge should be silently dropped, got %v", err)
	}
	if g.EdgeCount() != 1 {
		t.Fatalf("expected 1 edge, got %d", g.EdgeCount())
	}
	// Same pair, different type, is a distinct edge.
	if err := g.AddEdge("a", "b", EdgeTypeControlFlow); err != nil {
		t.Fatalf("add control edge: %v", err)
	}
	if g.EdgeCount() != 2 {
		t.Fatalf("expected 2 edges, got %d", g.EdgeCount())
	}
}

func TestGraph_EdgeUnknownNode(t *testing.T) {
	g := New("pkg.u")
	if _, err := g.AddNode("a", NodeKindVariable, Loc{}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge("a", "missing", EdgeTypeDataFlow); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestGraph_TopoOrderRespectsEdges(t *testing.T) {
	g := diamond(t)
	order, err := g.TopoOrder()
	if err != nil {
		t.Fatalf("topo: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, e := range g.Edges() {
		if pos[e.FromID] >= pos[e.ToID] {
			t.Fatalf("topological order violated for %s -> %s", e.FromID, e.ToID)
		}
	}
}

func TestGraph_TopoOrderDeterministic(t *testing.T) {
	a := diamond(t)
	b := diamond(t)
	oa, _ := a.TopoOrder()
	ob, _ := b.TopoOrder()
	for i := range oa {
		if oa[i] != ob[i] {
			t.Fatalf("topological order not deterministic: %v vs %v", oa, ob)
		}
	}
}

func TestGraph_FreezeDetectsCycle(t *testing.T) {
	g := New("pkg.cyclic")
	for _, id := range []string{"a", "b"} {
		if _, err := g.AddNode(id, NodeKindVariable, Loc{}); err != nil {
			t.Fatal(err)
		}
	}
	_ = g.AddEdge("a", "b", EdgeTypeDataFlow)
	_ = g.AddEdge("b", "a", EdgeTypeDataFlow)
	if err := g.Freeze(); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestGraph_RemoveNodeDropsIncidentEdges(t *testing.T) {
	g := New("pkg.u")
	for _, id := range []string{"a", "b", "c"} {
		if _, err := g.AddNode(id, NodeKindVariable, Loc{}); err != nil {
			t.Fatal(err)
		}
	}
	_ = g.AddEdge("a", "b", EdgeTypeDataFlow)
	_ = g.AddEdge("b", "c", EdgeTypeDataFlow)
	if err := g.RemoveNode("b"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if g.HasNode("b") || g.EdgeCount() != 0 {
		t.Fatalf("remove should drop the node and incident edges, %d edges left", g.EdgeCount())
	}
}

func TestParseRoundTrips(t *testing.T) {
	kinds := []NodeKind{NodeKindVariable, NodeKindParameter, NodeKindFunction}
	for _, k := range kinds {
		if got := ParseNodeKind(k.String()); got != k {
			t.Errorf("ParseNodeKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if ParseNodeKind("nonsense") != NodeKindUnknown {
		t.Error("unknown kind name should parse to NodeKindUnknown")
	}
	for _, e := range []EdgeType{EdgeTypeDataFlow, EdgeTypeControlFlow} {
		if got := ParseEdgeType(e.String()); got != e {
			t.Errorf("ParseEdgeType(%q) = %v, want %v", e.String(), got, e)
		}
	}
}

func TestGraph_Stats(t *testing.T) {
	g := diamond(t)
	s := g.Stats()
	if s.NodeCount != 4 || s.EdgeCount != 4 || s.Roots != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.DataFlowEdges != 4 || s.ControlFlowEdges != 0 {
		t.Fatalf("unexpected edge type counts: %+v", s)
	}
}
