// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ProcessBoundary crosses the fitting boundary via a child process.
//
// The process receives one JSON request document on stdin and must write
// one JSON response document to stdout before exiting. The caller's hard
// timeout arrives through ctx; when it fires, the process is killed and
// the fit fails as a whole.
//
// # Thread Safety
//
// ProcessBoundary is stateless between calls and safe for concurrent use;
// each Fit spawns its own process.
type ProcessBoundary struct {
	command string
	args    []string
	logger  *slog.Logger
}

// ProcessBoundaryOption is a functional option for ProcessBoundary.
type ProcessBoundaryOption func(*ProcessBoundary)

// WithProcessArgs sets extra arguments passed to the fitting command.
func WithProcessArgs(args ...string) ProcessBoundaryOption {
	return func(b *ProcessBoundary) {
		b.args = args
	}
}

// WithProcessLogger sets the logger for process lifecycle events.
func WithProcessLogger(logger *slog.Logger) ProcessBoundaryOption {
	return func(b *ProcessBoundary) {
		b.logger = logger
	}
}

// NewProcessBoundary creates a boundary that spawns the given command.
func NewProcessBoundary(command string, opts ...ProcessBoundaryOption) *ProcessBoundary {
	b := &ProcessBoundary{
		command: command,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name identifies the implementation.
func (b *ProcessBoundary) Name() string {
	return "process:" + b.command
}

// Fit spawns the fitting process and exchanges one document pair.
//
// Outputs:
//
//	*BoundaryResponse - The decoded response document.
//	error - Context errors pass through unchanged so the fitter can
//	        classify timeouts; process and decode failures wrap
//	        ErrBoundaryCrash / ErrMalformedResponse.
func (b *ProcessBoundary) Fit(ctx context.Context, req *BoundaryRequest) (*BoundaryResponse, error) {
	path, err := exec.LookPath(b.command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrBoundaryCrash, b.command)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrBoundaryCrash, err)
	}

	cmd := exec.CommandContext(ctx, path, b.args...)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	b.logger.Debug("invoking fitting boundary",
		slog.String("command", path),
		slog.Int("request_bytes", len(payload)),
	)

	if runErr := cmd.Run(); runErr != nil {
		// Timeout shows up as a killed process; report the context error
		// so the caller classifies it as ErrBoundaryTimeout.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = runErr.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrBoundaryCrash, detail)
	}

	var resp BoundaryResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrMalformedResponse, err)
	}
	return &resp, nil
}
