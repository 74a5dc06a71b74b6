// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validate

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for validation operations.
var (
	tracer = otel.Tracer("meridian.causal.validate")
	meter  = otel.Meter("meridian.causal.validate")
)

var (
	validateTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		validateTotal, metricsErr = meter.Int64Counter(
			"causal_validate_total",
			metric.WithDescription("Total number of cross-validation passes"),
		)
	})
	return metricsErr
}

// recordValidation counts one cross-validation pass. Metric failures
// degrade silently; observability must never affect the pipeline.
func recordValidation(ctx context.Context, passed bool) {
	if err := initMetrics(); err != nil {
		return
	}
	validateTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("passed", passed)),
	)
}
