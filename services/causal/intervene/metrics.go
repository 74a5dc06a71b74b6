// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intervene

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for intervention operations.
var (
	tracer = otel.Tracer("meridian.causal.intervene")
	meter  = otel.Meter("meridian.causal.intervene")
)

var (
	interventionTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		interventionTotal, metricsErr = meter.Int64Counter(
			"causal_interventions_total",
			metric.WithDescription("Total number of intervention simulations"),
		)
	})
	return metricsErr
}

// recordIntervention counts one simulation. Metric failures degrade
// silently; observability must never affect the pipeline.
func recordIntervention(ctx context.Context, kind string) {
	if err := initMetrics(); err != nil {
		return
	}
	interventionTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
