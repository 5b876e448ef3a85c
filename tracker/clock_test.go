// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"testing"
	"time"
)

func TestStoppedClockSetAndAdd(t *testing.T) {
	c := NewStoppedClock()
	c.Set(100 * time.Second)

	if got := c.Now(); got != 100*time.Second {
		t.Fatalf("Now() = %v; want 100s", got)
	}

	c.Add(5 * time.Second)
	if got := c.Now(); got != 105*time.Second {
		t.Fatalf("Now() after Add = %v; want 105s", got)
	}
}

func TestStoppedClockNowMinusSaturates(t *testing.T) {
	c := NewStoppedClock()
	c.Set(10 * time.Second)

	if got := c.NowMinus(30 * time.Second); got != 0 {
		t.Fatalf("NowMinus underflow = %v; want 0", got)
	}

	if got := c.NowMinus(4 * time.Second); got != 6*time.Second {
		t.Fatalf("NowMinus = %v; want 6s", got)
	}
}

func TestWorkingClockAdvances(t *testing.T) {
	c := NewClock()
	first := c.Now()
	time.Sleep(time.Millisecond)
	second := c.Now()

	if second <= first {
		t.Fatalf("workingClock did not advance: first=%v second=%v", first, second)
	}
}
