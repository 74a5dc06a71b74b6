// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"fmt"
	"sort"
	"time"
)

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph accepts AddNode/AddEdge calls.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// NodeKind classifies what a causal node represents.
type NodeKind int

const (
	// NodeKindUnknown indicates an unrecognized node kind.
	NodeKindUnknown NodeKind = iota

	// NodeKindVariable is a locally assigned variable.
	NodeKindVariable

	// NodeKindParameter is a declared parameter of the code unit.
	NodeKindParameter

	// NodeKindFunction is a function-valued node such as a return site.
	NodeKindFunction
)

// nodeKindNames maps NodeKind values to their string representations.
var nodeKindNames = map[NodeKind]string{
	NodeKindUnknown:   "unknown",
	NodeKindVariable:  "variable",
	NodeKindParameter: "parameter",
	NodeKindFunction:  "function",
}

// String returns the string representation of the NodeKind.
func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseNodeKind maps a kind name back to its NodeKind. Unrecognized
// names yield NodeKindUnknown.
func ParseNodeKind(name string) NodeKind {
	for k, n := range nodeKindNames {
		if n == name {
			return k
		}
	}
	return NodeKindUnknown
}

// EdgeType defines the kind of causal dependency an edge records.
type EdgeType int

const (
	// EdgeTypeDataFlow indicates a value read feeds a value written.
	EdgeTypeDataFlow EdgeType = iota

	// EdgeTypeControlFlow indicates a branch/loop condition guards an
	// assignment.
	EdgeTypeControlFlow

	// numEdgeTypes is the total number of edge types.
	numEdgeTypes
)

// String returns the string representation of the EdgeType.
func (t EdgeType) String() string {
	switch t {
	case EdgeTypeDataFlow:
		return "data_flow"
	case EdgeTypeControlFlow:
		return "control_flow"
	default:
		return "unknown"
	}
}

// ParseEdgeType maps a type name back to its EdgeType. Unrecognized
// names yield EdgeTypeDataFlow.
func ParseEdgeType(name string) EdgeType {
	if name == EdgeTypeControlFlow.String() {
		return EdgeTypeControlFlow
	}
	return EdgeTypeDataFlow
}

// Loc is a source location attached to a node.
type Loc struct {
	// FilePath is the source file, may be empty.
	FilePath string `json:"file_path,omitempty"`

	// Line is the 1-based source line, zero if unknown.
	Line int `json:"line,omitempty"`
}

// Node is one causal variable in the graph.
type Node struct {
	// ID is the unique node identifier (the variable name within a unit).
	ID string

	// Kind classifies the node.
	Kind NodeKind

	// Loc is where the node is introduced in source.
	Loc Loc
}

// Edge is a directed causal dependency between two nodes.
//
// Multiple edges between the same pair are collapsed: the graph keeps at
// most one edge per (from, to, type) triple.
type Edge struct {
	// FromID is the ID of the cause node.
	FromID string

	// ToID is the ID of the effect node.
	ToID string

	// Type records whether the dependency is data-flow or control-flow.
	Type EdgeType
}

// Graph is a directed acyclic causal graph over the variables of one code
// unit.
//
// Thread Safety:
//
//	Graph is single-writer during building. After Freeze() it can be read
//	from multiple goroutines; no further modification is allowed.
type Graph struct {
	// Unit names the code unit the graph was extracted from.
	Unit string

	nodes map[string]*Node
	edges []*Edge

	// out/in index edges by source/target node ID.
	out map[string][]*Edge
	in  map[string][]*Edge

	// edgeSet dedupes (from, to, type) triples.
	edgeSet map[edgeKey]bool

	// topo is the topological order computed by Freeze.
	topo []string

	state GraphState

	// BuiltAtMilli is the Unix timestamp in milliseconds when Freeze()
	// succeeded. Zero if the graph has not been frozen.
	BuiltAtMilli int64
}

type edgeKey struct {
	from, to string
	typ      EdgeType
}

// New creates an empty graph for the named code unit, in the Building
// state.
func New(unitName string) *Graph {
	return &Graph{
		Unit:    unitName,
		nodes:   make(map[string]*Node),
		out:     make(map[string][]*Edge),
		in:      make(map[string][]*Edge),
		edgeSet: make(map[edgeKey]bool),
		state:   GraphStateBuilding,
	}
}

// State returns the current lifecycle state of the graph.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// AddNode adds a node to the graph.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidNode - Empty ID or unknown kind
//	ErrDuplicateNode - Node with same ID already exists
func (g *Graph) AddNode(id string, kind NodeKind, loc Loc) (*Node, error) {
	if g.state == GraphStateReadOnly {
		return nil, ErrGraphFrozen
	}
	if id == "" {
		return nil, fmt.Errorf("%w: empty ID", ErrInvalidNode)
	}
	if kind != NodeKindVariable && kind != NodeKindParameter && kind != NodeKindFunction {
		return nil, fmt.Errorf("%w: kind %v", ErrInvalidNode, kind)
	}
	if _, exists := g.nodes[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	node := &Node{ID: id, Kind: kind, Loc: loc}
	g.nodes[id] = node
	return node, nil
}

// AddEdge creates a directed edge between two existing nodes.
//
// A duplicate (from, to, type) triple is silently ignored; multiple
// statements expressing the same dependency add no information to the
// causal structure. Self-edges are also ignored: a reassignment reading
// its own previous value collapses into the single post-loop node.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrNodeNotFound - Source or target node does not exist
func (g *Graph) AddEdge(fromID, toID string, edgeType EdgeType) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	if _, ok := g.nodes[fromID]; !ok {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, fromID)
	}
	if _, ok := g.nodes[toID]; !ok {
		return fmt.Errorf("%w: target %s", ErrNodeNotFound, toID)
	}
	if fromID == toID {
		return nil
	}
	key := edgeKey{from: fromID, to: toID, typ: edgeType}
	if g.edgeSet[key] {
		return nil
	}
	g.edgeSet[key] = true

	edge := &Edge{FromID: fromID, ToID: toID, Type: edgeType}
	g.edges = append(g.edges, edge)
	g.out[fromID] = append(g.out[fromID], edge)
	g.in[toID] = append(g.in[toID], edge)
	return nil
}

// RemoveNode removes a node and all its incident edges. Used by pruning
// before Freeze.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrNodeNotFound - Node does not exist
func (g *Graph) RemoveNode(id string) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	delete(g.nodes, id)

	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.FromID == id || e.ToID == id {
			delete(g.edgeSet, edgeKey{from: e.FromID, to: e.ToID, typ: e.Type})
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept

	delete(g.out, id)
	delete(g.in, id)
	for nid, edges := range g.out {
		g.out[nid] = dropIncident(edges, id)
	}
	for nid, edges := range g.in {
		g.in[nid] = dropIncident(edges, id)
	}
	return nil
}

// dropIncident filters out edges touching the removed node.
func dropIncident(edges []*Edge, removed string) []*Edge {
	kept := edges[:0]
	for _, e := range edges {
		if e.FromID == removed || e.ToID == removed {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// Freeze verifies acyclicity and transitions the graph to read-only mode.
//
// The topological order is computed with Kahn's algorithm and cached for
// TopoOrder. Freeze is irreversible.
//
// Errors:
//
//	ErrCycle - The graph is not a DAG
func (g *Graph) Freeze() error {
	if g.state == GraphStateReadOnly {
		return nil
	}
	topo, err := g.kahn()
	if err != nil {
		return err
	}
	g.topo = topo
	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
	return nil
}

// kahn computes a deterministic topological order, or ErrCycle.
func (g *Graph) kahn() ([]string, error) {
	indeg := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indeg[id] = len(g.in[id])
	}

	// Deterministic order: ready nodes processed in sorted order.
	ready := make([]string, 0, len(g.nodes))
	for id, d := range indeg {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		released := make([]string, 0, len(g.out[id]))
		for _, e := range g.out[id] {
			indeg[e.ToID]--
			if indeg[e.ToID] == 0 {
				released = append(released, e.ToID)
			}
		}
		sort.Strings(released)
		ready = append(ready, released...)
	}

	if len(order) != len(g.nodes) {
		remaining := make([]string, 0)
		for id, d := range indeg {
			if d > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, fmt.Errorf("%w: involving %v", ErrCycle, remaining)
	}
	return order, nil
}

// GetNode retrieves a node by its ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// HasNode reports whether the node exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeIDs returns all node IDs in sorted order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns a defensive copy of all edges.
func (g *Graph) Edges() []Edge {
	result := make([]Edge, len(g.edges))
	for i, e := range g.edges {
		result[i] = *e
	}
	return result
}

// Parents returns the IDs of direct causes of the node, sorted.
func (g *Graph) Parents(id string) []string {
	edges := g.in[id]
	result := make([]string, 0, len(edges))
	for _, e := range edges {
		result = append(result, e.FromID)
	}
	sort.Strings(result)
	return result
}

// Children returns the IDs of direct effects of the node, sorted.
func (g *Graph) Children(id string) []string {
	edges := g.out[id]
	result := make([]string, 0, len(edges))
	for _, e := range edges {
		result = append(result, e.ToID)
	}
	sort.Strings(result)
	return result
}

// Roots returns the IDs of nodes with no parents, sorted.
func (g *Graph) Roots() []string {
	result := make([]string, 0)
	for id := range g.nodes {
		if len(g.in[id]) == 0 {
			result = append(result, id)
		}
	}
	sort.Strings(result)
	return result
}

// IsRoot reports whether the node has no parents.
func (g *Graph) IsRoot(id string) bool {
	return len(g.in[id]) == 0
}

// TopoOrder returns the cached topological order of the frozen graph.
//
// Errors:
//
//	ErrNotFrozen - Freeze has not been called
func (g *Graph) TopoOrder() ([]string, error) {
	if g.state != GraphStateReadOnly {
		return nil, ErrNotFrozen
	}
	result := make([]string, len(g.topo))
	copy(result, g.topo)
	return result, nil
}

// Stats summarizes the graph for logging and display.
type Stats struct {
	// Unit names the source code unit.
	Unit string `json:"unit"`

	// NodeCount is the total number of nodes.
	NodeCount int `json:"node_count"`

	// EdgeCount is the total number of edges.
	EdgeCount int `json:"edge_count"`

	// DataFlowEdges counts EdgeTypeDataFlow edges.
	DataFlowEdges int `json:"data_flow_edges"`

	// ControlFlowEdges counts EdgeTypeControlFlow edges.
	ControlFlowEdges int `json:"control_flow_edges"`

	// Roots counts nodes with no parents.
	Roots int `json:"roots"`
}

// Stats returns summary statistics about the graph.
func (g *Graph) Stats() Stats {
	s := Stats{
		Unit:      g.Unit,
		NodeCount: len(g.nodes),
		EdgeCount: len(g.edges),
		Roots:     len(g.Roots()),
	}
	for _, e := range g.edges {
		switch e.Type {
		case EdgeTypeDataFlow:
			s.DataFlowEdges++
		case EdgeTypeControlFlow:
			s.ControlFlowEdges++
		}
	}
	return s
}
