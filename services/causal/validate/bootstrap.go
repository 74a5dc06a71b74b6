// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validate

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/montanaflynn/stats"

	"github.com/MeridianAI/MeridianCausal/services/causal/scm"
	"github.com/MeridianAI/MeridianCausal/services/causal/trace"
)

// Defaults for bootstrap confidence intervals.
const (
	// DefaultReplicates is the number of bootstrap resamples.
	DefaultReplicates = 1000

	// DefaultLevel is the confidence level of the reported intervals.
	DefaultLevel = 0.95
)

// Interval is a two-sided percentile confidence interval.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// BootstrapResult bounds the stability of each mechanism's held-out R².
// A wide interval flags an unstable mechanism even when the point
// estimate passes the threshold.
type BootstrapResult struct {
	// Intervals maps each non-root node to its R² confidence interval.
	Intervals map[string]Interval

	// Level is the confidence level, e.g. 0.95 for [2.5th, 97.5th].
	Level float64

	// Replicates is the number of resamples actually scored.
	Replicates int
}

// BootstrapCI estimates per-node R² confidence intervals by resampling.
//
// Description:
//
//	The trace rows are resampled with replacement n times; each resample
//	is split and scored exactly like CrossValidate. Per-node R² values
//	are collected across replicates and the percentile interval at the
//	given level is reported. Replicates whose resample degenerates for a
//	node (zero variance, too few finite samples) are skipped for that
//	node rather than failing the whole run.
//
//	Resamples draw seeds seed+1, seed+2, ... so a fixed seed yields
//	identical intervals on repeat calls. Scoring is parallelized across
//	a capped worker pool.
//
// Inputs:
//
//	n - Number of resamples; <=0 selects DefaultReplicates.
//	level - Confidence level in (0,1); <=0 selects DefaultLevel.
//
// Outputs:
//
//	*BootstrapResult - Intervals per non-root node.
//	error - ErrNotFitted, ErrNoTraces, ErrInsufficientData when a node
//	        produced no usable replicates, or ctx cancellation.
func (v *Validator) BootstrapCI(ctx context.Context, model *scm.SCM, tab *trace.Table, n int, level float64) (*BootstrapResult, error) {
	ctx, span := tracer.Start(ctx, "validate.BootstrapCI")
	defer span.End()

	if !model.Fitted() {
		return nil, ErrNotFitted
	}
	if tab == nil {
		return nil, ErrNoTraces
	}
	if n <= 0 {
		n = DefaultReplicates
	}
	if level <= 0 || level >= 1 {
		level = DefaultLevel
	}

	workers := v.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	replicates := make([]map[string]float64, n)

	var wg sync.WaitGroup
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				seed := v.seed + int64(i) + 1
				resampled := tab.Resample(seed)
				_, test := resampled.Split(v.testFrac, seed)
				scores, err := v.scoreNodes(model, test)
				if err != nil {
					// Degenerate resamples are expected at the tails;
					// drop the replicate instead of failing the run.
					continue
				}
				replicates[i] = scores
			}
		}()
	}

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	perNode := make(map[string][]float64)
	for _, scores := range replicates {
		for id, r2 := range scores {
			perNode[id] = append(perNode[id], r2)
		}
	}

	lowerPct := (1 - level) / 2 * 100
	upperPct := 100 - lowerPct

	intervals := make(map[string]Interval, len(perNode))
	for id, series := range perNode {
		if len(series) < 2 {
			return nil, fmt.Errorf("node %s: %w: %d usable replicates", id, ErrInsufficientData, len(series))
		}
		lo, err := stats.Percentile(series, lowerPct)
		if err != nil {
			return nil, fmt.Errorf("node %s: percentile: %w", id, err)
		}
		hi, err := stats.Percentile(series, upperPct)
		if err != nil {
			return nil, fmt.Errorf("node %s: percentile: %w", id, err)
		}
		intervals[id] = Interval{Lower: lo, Upper: hi}
	}

	v.logger.Debug("bootstrap intervals computed",
		slog.Int("replicates", n),
		slog.Float64("level", level),
		slog.Int("nodes", len(intervals)),
	)
	return &BootstrapResult{
		Intervals:  intervals,
		Level:      level,
		Replicates: n,
	}, nil
}
