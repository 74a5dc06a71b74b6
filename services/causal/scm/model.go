// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scm

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"

	"github.com/MeridianAI/MeridianCausal/services/causal/graph"
)

// ModelState represents the lifecycle state of an SCM.
type ModelState int

const (
	// ModelStateAssigning indicates mechanisms are being assigned.
	ModelStateAssigning ModelState = iota

	// ModelStateFrozen indicates the model is immutable.
	ModelStateFrozen
)

// String returns the string representation of the ModelState.
func (s ModelState) String() string {
	switch s {
	case ModelStateAssigning:
		return "assigning"
	case ModelStateFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// SCM is a structural causal model: a frozen causal graph plus one
// mechanism per node.
//
// # Thread Safety
//
// SCM is single-writer during assignment. After Freeze() it is immutable
// and safe for concurrent consumers.
type SCM struct {
	graph      *graph.Graph
	mechanisms map[string]*Mechanism
	source     FitSource
	state      ModelState
}

// New creates an empty model over a frozen causal graph.
func New(g *graph.Graph, source FitSource) (*SCM, error) {
	if g == nil || !g.IsFrozen() {
		return nil, graph.ErrNotFrozen
	}
	return &SCM{
		graph:      g,
		mechanisms: make(map[string]*Mechanism, g.NodeCount()),
		source:     source,
		state:      ModelStateAssigning,
	}, nil
}

// Graph returns the model's read-only causal graph.
func (s *SCM) Graph() *graph.Graph {
	return s.graph
}

// Source reports whether the model was fit statically or dynamically.
func (s *SCM) Source() FitSource {
	return s.source
}

// State returns the current lifecycle state.
func (s *SCM) State() ModelState {
	return s.state
}

// Assign attaches a mechanism to a node.
//
// Errors:
//
//	ErrModelFrozen - Freeze has been called
//	ErrNodeNotFound - The node is not in the model's graph
func (s *SCM) Assign(nodeID string, m *Mechanism) error {
	if s.state == ModelStateFrozen {
		return ErrModelFrozen
	}
	if !s.graph.HasNode(nodeID) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	s.mechanisms[nodeID] = m
	return nil
}

// Freeze verifies completeness and makes the model immutable.
//
// Errors:
//
//	ErrIncomplete - Some graph node has no mechanism
func (s *SCM) Freeze() error {
	if s.state == ModelStateFrozen {
		return nil
	}
	missing := make([]string, 0)
	for _, id := range s.graph.NodeIDs() {
		if _, ok := s.mechanisms[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %v", ErrIncomplete, missing)
	}
	s.state = ModelStateFrozen
	return nil
}

// Mechanism returns the mechanism assigned to a node.
//
// Errors:
//
//	ErrMechanismMissing - No mechanism for the node
func (s *SCM) Mechanism(nodeID string) (*Mechanism, error) {
	m, ok := s.mechanisms[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMechanismMissing, nodeID)
	}
	return m, nil
}

// Mechanisms returns a copy of the node → mechanism mapping. Mechanism
// pointers are shared; mechanisms are immutable once the model is frozen.
func (s *SCM) Mechanisms() map[string]*Mechanism {
	out := make(map[string]*Mechanism, len(s.mechanisms))
	for id, m := range s.mechanisms {
		out[id] = m
	}
	return out
}

// Fitted reports whether the model carries numeric parameters for every
// non-root node, i.e. supports intervention simulation.
func (s *SCM) Fitted() bool {
	if s.source != SourceDynamic {
		return false
	}
	for _, id := range s.graph.NodeIDs() {
		m, ok := s.mechanisms[id]
		if !ok || !m.Fitted() {
			return false
		}
	}
	return true
}

// mechanismBlob is the gob wire form of the mechanism map.
type mechanismBlob struct {
	Source     FitSource
	Mechanisms map[string]*Mechanism
}

// EncodeMechanisms serializes the mechanism map to an opaque binary blob
// for exact reload. The graph is not included; callers persist graph
// structure separately in the display-safe summary.
func (s *SCM) EncodeMechanisms() ([]byte, error) {
	var buf bytes.Buffer
	blob := mechanismBlob{Source: s.source, Mechanisms: s.mechanisms}
	if err := gob.NewEncoder(&buf).Encode(blob); err != nil {
		return nil, fmt.Errorf("encode mechanisms: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMechanisms rebuilds a frozen SCM from a mechanism blob and the
// graph it was fitted against.
func DecodeMechanisms(g *graph.Graph, data []byte) (*SCM, error) {
	var blob mechanismBlob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&blob); err != nil {
		return nil, fmt.Errorf("decode mechanisms: %w", err)
	}
	model, err := New(g, blob.Source)
	if err != nil {
		return nil, err
	}
	for id, m := range blob.Mechanisms {
		if err := model.Assign(id, m); err != nil {
			return nil, err
		}
	}
	if err := model.Freeze(); err != nil {
		return nil, err
	}
	return model, nil
}
