// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("meridian.causal.graph")
	meter  = otel.Meter("meridian.causal.graph")
)

// Metrics for graph extraction.
var (
	extractTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		extractTotal, metricsErr = meter.Int64Counter(
			"causal_graph_extract_total",
			metric.WithDescription("Total number of causal graph extractions"),
		)
	})
	return metricsErr
}

// recordExtraction counts one extraction attempt. Metric failures degrade
// silently; observability must never affect the pipeline.
func recordExtraction(ctx context.Context, unitName string, ok bool) {
	if err := initMetrics(); err != nil {
		return
	}
	extractTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("unit", unitName),
			attribute.Bool("success", ok),
		),
	)
}
