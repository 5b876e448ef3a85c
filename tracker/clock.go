// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"sync"
	"time"
)

// Clock provides the tracker's single notion of "now", expressed as a
// duration since the Unix epoch. Every time-sensitive piece of core logic
// (peer staleness, key expiry, UDP connection-ID lifetime) reads from one
// Clock so that tests can freeze and advance it deterministically.
type Clock interface {
	// Now returns the duration elapsed since the Unix epoch.
	Now() time.Duration

	// NowMinus returns Now() - d, saturating at zero instead of
	// underflowing if d is larger than the current time.
	NowMinus(d time.Duration) time.Duration
}

// workingClock reads the real system clock.
type workingClock struct{}

// NewClock returns the Clock implementation used in production: one that
// reads the system's wall clock on every call.
func NewClock() Clock {
	return workingClock{}
}

func (workingClock) Now() time.Duration {
	return time.Duration(time.Now().UnixNano())
}

func (c workingClock) NowMinus(d time.Duration) time.Duration {
	return saturatingSub(c.Now(), d)
}

func saturatingSub(now, d time.Duration) time.Duration {
	if d > now {
		return 0
	}
	return now - d
}

// StoppedClock is a Clock that only advances when told to, for use in
// tests that need deterministic peer-timeout / key-expiry behavior.
type StoppedClock struct {
	mu  sync.Mutex
	now time.Duration
}

// NewStoppedClock returns a StoppedClock initialized to the current wall
// time, which tests may then Set or Add from.
func NewStoppedClock() *StoppedClock {
	return &StoppedClock{now: time.Duration(time.Now().UnixNano())}
}

// Now implements Clock.
func (c *StoppedClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowMinus implements Clock.
func (c *StoppedClock) NowMinus(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return saturatingSub(c.now, d)
}

// Set pins the clock to an absolute duration-since-epoch.
func (c *StoppedClock) Set(now time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Add advances the clock by d, which may be negative.
func (c *StoppedClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}
