// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package enhance

import "sync/atomic"

// DefaultBreakerThreshold is the number of consecutive fitting failures
// that trips the breaker.
const DefaultBreakerThreshold = 3

// BreakerState is the circuit breaker's position.
type BreakerState int32

const (
	// BreakerClosed lets fitting attempts through.
	BreakerClosed BreakerState = iota

	// BreakerOpen short-circuits fitting until an explicit Reset.
	BreakerOpen
)

// String returns the state name.
func (s BreakerState) String() string {
	if s == BreakerOpen {
		return "open"
	}
	return "closed"
}

// Breaker counts consecutive fitting failures and short-circuits further
// attempts once a threshold is reached, sparing callers the boundary
// startup cost when that dependency is known-broken in the current
// environment. It reopens only on an explicit Reset.
//
// # Thread Safety
//
// All methods are safe for concurrent use; state transitions are atomic.
type Breaker struct {
	threshold int32
	failures  atomic.Int32
	state     atomic.Int32
}

// NewBreaker creates a closed breaker. A non-positive threshold selects
// DefaultBreakerThreshold.
func NewBreaker(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	return &Breaker{threshold: int32(threshold)}
}

// Allow reports whether a fitting attempt may proceed.
func (b *Breaker) Allow() bool {
	return BreakerState(b.state.Load()) == BreakerClosed
}

// State returns the current position.
func (b *Breaker) State() BreakerState {
	return BreakerState(b.state.Load())
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	return int(b.failures.Load())
}

// RecordFailure counts one fitting failure, tripping the breaker at the
// threshold.
func (b *Breaker) RecordFailure() {
	if b.failures.Add(1) >= b.threshold {
		b.state.Store(int32(BreakerOpen))
	}
}

// RecordSuccess clears the consecutive failure count. It does not close
// an open breaker; only Reset does.
func (b *Breaker) RecordSuccess() {
	b.failures.Store(0)
}

// Reset closes the breaker and clears the failure count.
func (b *Breaker) Reset() {
	b.failures.Store(0)
	b.state.Store(int32(BreakerClosed))
}
