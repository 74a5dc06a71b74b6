// Copyright (C) 2026 Meridian AI (engineering@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package enhance

import (
	"sync"
	"testing"
)

func TestBreaker_TripsAtThreshold(t *testing.T) {
	b := NewBreaker(3)
	if !b.Allow() {
		t.Fatal("new breaker must start closed")
	}

	b.RecordFailure()
	b.RecordFailure()
	if !b.Allow() {
		t.Fatal("breaker must stay closed below the threshold")
	}

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("third consecutive failure must open the breaker")
	}
	if b.State() != BreakerOpen {
		t.Fatalf("state = %s, want open", b.State())
	}
	if b.Failures() != 3 {
		t.Fatalf("failures = %d, want 3", b.Failures())
	}
}

func TestBreaker_SuccessClearsCountButNotState(t *testing.T) {
	b := NewBreaker(3)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	if b.Failures() != 0 {
		t.Fatalf("failures = %d after success, want 0", b.Failures())
	}

	// Non-consecutive failures never trip it.
	b.RecordFailure()
	b.RecordFailure()
	if !b.Allow() {
		t.Fatal("interleaved successes must keep the breaker closed")
	}

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker should now be open")
	}

	// A success while open does not close it.
	b.RecordSuccess()
	if b.Allow() {
		t.Fatal("only Reset closes an open breaker")
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(1)
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker should be open")
	}
	b.Reset()
	if !b.Allow() || b.Failures() != 0 {
		t.Fatal("reset must close the breaker and clear the count")
	}
}

func TestBreaker_DefaultThreshold(t *testing.T) {
	b := NewBreaker(0)
	for i := 0; i < DefaultBreakerThreshold-1; i++ {
		b.RecordFailure()
	}
	if !b.Allow() {
		t.Fatal("breaker opened before the default threshold")
	}
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker must open at the default threshold")
	}
}

func TestBreaker_ConcurrentFailures(t *testing.T) {
	b := NewBreaker(100)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()
	if b.Failures() != 100 {
		t.Fatalf("failures = %d, want 100", b.Failures())
	}
	if b.Allow() {
		t.Fatal("breaker must be open at the threshold")
	}
}
