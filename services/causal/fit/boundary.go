// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fit

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/MeridianAI/MeridianCausal/services/causal/graph"
	"github.com/MeridianAI/MeridianCausal/services/causal/scm"
	"github.com/MeridianAI/MeridianCausal/services/causal/trace"
)

// ProtocolVersion is the fitting-boundary document version this engine
// speaks. Responses carrying any other version are rejected.
const ProtocolVersion = 1

// Boundary is the narrow contract with the numeric fitting service. One
// request/response document pair is exchanged per fit; the call must be
// idempotent and side-effect-free on the caller.
type Boundary interface {
	// Name identifies the implementation for logs and error messages.
	Name() string

	// Fit exchanges one request/response pair. Implementations must honor
	// ctx cancellation; the fitter applies the hard timeout.
	Fit(ctx context.Context, req *BoundaryRequest) (*BoundaryResponse, error)
}

// BoundaryNode is the wire form of a causal node.
type BoundaryNode struct {
	ID   string `json:"id" validate:"required"`
	Kind string `json:"kind"`
	Root bool   `json:"root"`
}

// BoundaryEdge is the wire form of a causal edge.
type BoundaryEdge struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
	Type string `json:"type"`
}

// BoundaryGraph is the wire form of the causal graph.
type BoundaryGraph struct {
	Nodes []BoundaryNode `json:"nodes" validate:"required,dive"`
	Edges []BoundaryEdge `json:"edges" validate:"dive"`
}

// BoundaryConfig carries fitting quality knobs across the boundary.
type BoundaryConfig struct {
	// Quality is an implementation hint ("fast", "standard", "thorough").
	Quality string `json:"quality,omitempty"`

	// R2Threshold is the pass/fail bar for the boundary's own in-sample
	// validation summary.
	R2Threshold float64 `json:"r2_threshold,omitempty"`
}

// BoundaryRequest is the single document sent to the fitting service.
type BoundaryRequest struct {
	Version int                  `json:"version" validate:"required"`
	Graph   BoundaryGraph        `json:"graph" validate:"required"`
	Traces  map[string][]float64 `json:"traces" validate:"required"`
	Config  BoundaryConfig       `json:"config"`
}

// BoundarySCM is the fitted mechanism map returned on success.
type BoundarySCM struct {
	Mechanisms map[string]*scm.Mechanism `json:"mechanisms" validate:"required"`
}

// BoundaryValidation is the service's in-sample fit summary.
type BoundaryValidation struct {
	R2Scores map[string]float64 `json:"r2_scores,omitempty"`
	MeanR2   float64            `json:"mean_r2"`
	Passed   bool               `json:"passed"`
}

// BoundaryResponse is the single document received from the fitting
// service: success with an SCM, or a structured error.
type BoundaryResponse struct {
	Version    int                 `json:"version"`
	Status     string              `json:"status" validate:"required,oneof=success error"`
	SCM        *BoundarySCM        `json:"scm,omitempty"`
	Validation *BoundaryValidation `json:"validation,omitempty"`
	Error      string              `json:"error,omitempty"`
	Details    string              `json:"details,omitempty"`
}

// validate is the shared struct validator for boundary documents.
var validate = validator.New(validator.WithRequiredStructEnabled())

// buildRequest assembles the boundary request from graph and traces.
func buildRequest(g *graph.Graph, tab *trace.Table, cfg BoundaryConfig) *BoundaryRequest {
	bg := BoundaryGraph{
		Nodes: make([]BoundaryNode, 0, g.NodeCount()),
		Edges: make([]BoundaryEdge, 0, g.EdgeCount()),
	}
	for _, id := range g.NodeIDs() {
		node, _ := g.GetNode(id)
		bg.Nodes = append(bg.Nodes, BoundaryNode{
			ID:   id,
			Kind: node.Kind.String(),
			Root: g.IsRoot(id),
		})
	}
	for _, e := range g.Edges() {
		bg.Edges = append(bg.Edges, BoundaryEdge{
			From: e.FromID,
			To:   e.ToID,
			Type: e.Type.String(),
		})
	}
	return &BoundaryRequest{
		Version: ProtocolVersion,
		Graph:   bg,
		Traces:  tab.ColumnMap(),
		Config:  cfg,
	}
}

// checkResponse enforces the response schema, version, and status.
//
// Returns a sentinel suitable for wrapping into a FitError.
func checkResponse(resp *BoundaryResponse) error {
	if resp == nil {
		return fmt.Errorf("%w: nil response", ErrMalformedResponse)
	}
	if err := validate.Struct(resp); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Version != ProtocolVersion {
		return fmt.Errorf("%w: got v%d, want v%d", ErrVersionMismatch, resp.Version, ProtocolVersion)
	}
	if resp.Status == "error" {
		return fmt.Errorf("%w: %s (%s)", ErrBoundaryReported, resp.Error, resp.Details)
	}
	if resp.SCM == nil || len(resp.SCM.Mechanisms) == 0 {
		return fmt.Errorf("%w: success without mechanisms", ErrMalformedResponse)
	}
	return nil
}
