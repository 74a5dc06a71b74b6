// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MeridianAI/MeridianCausal/services/causal/unit"
)

// ReturnNodeID is the node ID assigned to a code unit's return site.
const ReturnNodeID = "return"

// PrunePolicy controls which write-only sinks are excluded from the graph.
//
// The default policy drops an edge into a write-only, externally
// observable sink (an emit statement's target) when nothing downstream
// uses it: the graph tracks state and behavior, not incidental side
// channels. A sink that feeds a return value or anything else downstream
// is always kept. What counts as "incidental" is domain-specific, so the
// policy is a value, not a fixed rule set.
type PrunePolicy struct {
	// KeepIncidentalSinks disables sink pruning entirely.
	KeepIncidentalSinks bool

	// Keep, when non-nil, is consulted for each sink candidate. Returning
	// true retains the node, e.g. a sink representing persisted state.
	Keep func(nodeID string) bool
}

// DefaultPrunePolicy returns the standard sink-pruning behavior.
func DefaultPrunePolicy() PrunePolicy {
	return PrunePolicy{}
}

// ExtractorOption is a functional option for configuring Extractor.
type ExtractorOption func(*Extractor)

// WithPrunePolicy sets the sink-pruning policy.
func WithPrunePolicy(p PrunePolicy) ExtractorOption {
	return func(x *Extractor) {
		x.policy = p
	}
}

// WithExtractorLogger sets the logger used during extraction.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(x *Extractor) {
		x.logger = logger
	}
}

// Extractor builds a causal graph from a code unit.
//
// # Thread Safety
//
// Extractor is stateless between calls and safe for concurrent use.
type Extractor struct {
	policy PrunePolicy
	logger *slog.Logger
}

// NewExtractor creates an extractor with the given options.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	x := &Extractor{
		policy: DefaultPrunePolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// writeEvent records one assignment observed while walking statements.
type writeEvent struct {
	name   string
	reads  []string
	guards []int
	kind   unit.StatementKind
	line   int
}

// guardRecord is one branch/loop condition encountered while walking.
type guardRecord struct {
	cond []string
}

// Extract builds, prunes, and freezes the causal graph for a code unit.
//
// Description:
//
//	Creates one node per assigned variable, parameter, and return site.
//	Every statement contributes data-flow edges from its reads to its
//	writes; branch and loop conditions contribute control-flow edges to
//	variables assigned exclusively inside the guarded body. Loop-carried
//	reassignment collapses into a single node representing the post-loop
//	value (self-edges are dropped), a documented approximation.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	u - The code unit. Must pass unit.Validate.
//
// Outputs:
//
//	*Graph - A frozen, acyclic causal graph.
//	error - *ExtractionError on unparseable input or a residual cycle.
func (x *Extractor) Extract(ctx context.Context, u *unit.CodeUnit) (*Graph, error) {
	ctx, span := tracer.Start(ctx, "graph.Extract")
	defer span.End()

	unitName := "<nil>"
	if u != nil {
		unitName = u.Name
	}
	span.SetAttributes(attribute.String("unit", unitName))

	if err := u.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordExtraction(ctx, unitName, false)
		return nil, &ExtractionError{Unit: unitName, Reason: "unparseable code unit", Err: err}
	}

	var (
		events []writeEvent
		guards []guardRecord
	)
	walkStatements(u.Statements, nil, &events, &guards)

	g := New(u.Name)
	if err := x.populate(g, u, events, guards); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordExtraction(ctx, unitName, false)
		return nil, &ExtractionError{Unit: u.Name, Reason: "graph construction failed", Err: err}
	}

	x.prune(g, events)

	if err := g.Freeze(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordExtraction(ctx, unitName, false)
		return nil, &ExtractionError{Unit: u.Name, Reason: "not a DAG after pruning", Err: err}
	}

	stats := g.Stats()
	x.logger.Debug("causal graph extracted",
		slog.String("unit", u.Name),
		slog.Int("nodes", stats.NodeCount),
		slog.Int("edges", stats.EdgeCount),
	)
	span.SetAttributes(
		attribute.Int("nodes", stats.NodeCount),
		attribute.Int("edges", stats.EdgeCount),
	)
	recordExtraction(ctx, unitName, true)
	return g, nil
}

// walkStatements flattens nested statements, tracking enclosing guards.
func walkStatements(stmts []unit.Statement, active []int, events *[]writeEvent, guards *[]guardRecord) {
	for _, s := range stmts {
		switch s.Kind {
		case unit.KindBranch, unit.KindLoop:
			id := len(*guards)
			*guards = append(*guards, guardRecord{cond: s.Cond})
			inner := make([]int, len(active)+1)
			copy(inner, active)
			inner[len(active)] = id
			walkStatements(s.Body, inner, events, guards)

		case unit.KindReturn:
			*events = append(*events, writeEvent{
				name:   ReturnNodeID,
				reads:  s.Reads,
				guards: append([]int(nil), active...),
				kind:   s.Kind,
				line:   s.Line,
			})

		default:
			for _, w := range s.Writes {
				*events = append(*events, writeEvent{
					name:   w,
					reads:  s.Reads,
					guards: append([]int(nil), active...),
					kind:   s.Kind,
					line:   s.Line,
				})
			}
		}
	}
}

// populate creates nodes and edges from the flattened write events.
func (x *Extractor) populate(g *Graph, u *unit.CodeUnit, events []writeEvent, guards []guardRecord) error {
	// Parameters first: they are root causes by construction.
	for _, p := range u.Params {
		if _, err := g.AddNode(p.Name, NodeKindParameter, Loc{FilePath: u.FilePath, Line: p.Line}); err != nil {
			return err
		}
	}

	// One node per written name; the return site is a function node.
	firstLine := make(map[string]int)
	for _, ev := range events {
		if _, ok := firstLine[ev.name]; !ok {
			firstLine[ev.name] = ev.line
		}
	}
	for _, ev := range events {
		if g.HasNode(ev.name) {
			continue
		}
		kind := NodeKindVariable
		if ev.name == ReturnNodeID && ev.kind == unit.KindReturn {
			kind = NodeKindFunction
		}
		if _, err := g.AddNode(ev.name, kind, Loc{FilePath: u.FilePath, Line: firstLine[ev.name]}); err != nil {
			return err
		}
	}

	// Free reads (never written, not parameters) become root variables.
	ensureRead := func(name string) error {
		if g.HasNode(name) {
			return nil
		}
		_, err := g.AddNode(name, NodeKindVariable, Loc{FilePath: u.FilePath})
		return err
	}
	for _, ev := range events {
		for _, r := range ev.reads {
			if err := ensureRead(r); err != nil {
				return err
			}
		}
	}
	for _, gr := range guards {
		for _, c := range gr.cond {
			if err := ensureRead(c); err != nil {
				return err
			}
		}
	}

	// Data-flow edges: every read feeds every write of the statement.
	for _, ev := range events {
		for _, r := range ev.reads {
			if err := g.AddEdge(r, ev.name, EdgeTypeDataFlow); err != nil {
				return err
			}
		}
	}

	// Control-flow edges: a guard's condition variables feed a variable
	// only when every write of that variable sits inside that guard.
	byName := make(map[string][]writeEvent)
	for _, ev := range events {
		byName[ev.name] = append(byName[ev.name], ev)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, gid := range commonGuards(byName[name]) {
			for _, c := range guards[gid].cond {
				if err := g.AddEdge(c, name, EdgeTypeControlFlow); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// commonGuards returns guard IDs present in every event's guard set.
func commonGuards(events []writeEvent) []int {
	if len(events) == 0 {
		return nil
	}
	counts := make(map[int]int)
	for _, ev := range events {
		seen := make(map[int]bool, len(ev.guards))
		for _, gid := range ev.guards {
			if !seen[gid] {
				seen[gid] = true
				counts[gid]++
			}
		}
	}
	common := make([]int, 0)
	for gid, n := range counts {
		if n == len(events) {
			common = append(common, gid)
		}
	}
	sort.Ints(common)
	return common
}

// prune removes write-only emit sinks with no downstream use.
func (x *Extractor) prune(g *Graph, events []writeEvent) {
	if x.policy.KeepIncidentalSinks {
		return
	}

	// A sink candidate is written exclusively by emit statements.
	emitOnly := make(map[string]bool)
	for _, ev := range events {
		if ev.kind == unit.KindEmit {
			if _, seen := emitOnly[ev.name]; !seen {
				emitOnly[ev.name] = true
			}
		} else {
			emitOnly[ev.name] = false
		}
	}

	for name, isSink := range emitOnly {
		if !isSink || !g.HasNode(name) {
			continue
		}
		// Downstream use (including feeding the return value) keeps it.
		if len(g.Children(name)) > 0 {
			continue
		}
		if x.policy.Keep != nil && x.policy.Keep(name) {
			continue
		}
		if err := g.RemoveNode(name); err != nil {
			x.logger.Warn("sink prune failed",
				slog.String("node", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		x.logger.Debug("pruned incidental sink", slog.String("node", name))
	}
}
