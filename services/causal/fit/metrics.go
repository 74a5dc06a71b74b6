// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fit

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for fitting operations.
var (
	tracer = otel.Tracer("meridian.causal.fit")
	meter  = otel.Meter("meridian.causal.fit")
)

// Metrics for boundary exchanges.
var (
	boundaryCalls    metric.Int64Counter
	boundaryDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		boundaryCalls, metricsErr = meter.Int64Counter(
			"causal_fit_boundary_calls_total",
			metric.WithDescription("Total number of fitting boundary exchanges"),
		)
		if metricsErr != nil {
			return
		}
		boundaryDuration, metricsErr = meter.Float64Histogram(
			"causal_fit_boundary_duration_seconds",
			metric.WithDescription("Wall time of one fitting boundary exchange"),
			metric.WithUnit("s"),
		)
	})
	return metricsErr
}

// recordBoundaryCall records one boundary exchange. Metric failures
// degrade silently; observability must never affect the pipeline.
func recordBoundaryCall(ctx context.Context, boundary string, elapsed time.Duration, ok bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("boundary", boundary),
		attribute.Bool("success", ok),
	)
	boundaryCalls.Add(ctx, 1, attrs)
	boundaryDuration.Record(ctx, elapsed.Seconds(), attrs)
}
