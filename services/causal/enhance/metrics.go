// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package enhance

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for the enhancement pipeline.
var (
	tracer = otel.Tracer("meridian.causal.enhance")
	meter  = otel.Meter("meridian.causal.enhance")
)

var (
	enhanceTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		enhanceTotal, metricsErr = meter.Int64Counter(
			"causal_enhance_total",
			metric.WithDescription("Total number of enhancement runs"),
		)
	})
	return metricsErr
}

// recordEnhancement counts one run by outcome. Metric failures degrade
// silently; observability must never affect the pipeline.
func recordEnhancement(ctx context.Context, mode string, clean bool) {
	if err := initMetrics(); err != nil {
		return
	}
	enhanceTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.Bool("clean", clean),
		),
	)
}
