// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package stats

import "runtime"

// MemStatsWrapper exposes a subset of runtime.MemStats for the admin
// stats endpoint, refreshed on the Stats sink's single consumer goroutine
// (§4.6, §5) whenever recordMemStats ticks.
type MemStatsWrapper struct {
	verbose bool
	mem     runtime.MemStats

	HeapAllocated uint64 `json:"memHeapBytes"`
	HeapObjects   uint64 `json:"memHeapObjects"`
	NumGoroutine  int    `json:"memGoroutines"`

	// Verbose-only fields: the full runtime.MemStats snapshot, exposed
	// when StatsConfig.VerboseMem is set.
	Full *runtime.MemStats `json:"memVerbose,omitempty"`
}

// NewMemStatsWrapper constructs a MemStatsWrapper and takes an initial
// reading.
func NewMemStatsWrapper(verbose bool) *MemStatsWrapper {
	w := &MemStatsWrapper{verbose: verbose}
	w.Update()
	return w
}

// Update refreshes the wrapper's snapshot from runtime.ReadMemStats.
func (w *MemStatsWrapper) Update() {
	runtime.ReadMemStats(&w.mem)
	w.HeapAllocated = w.mem.HeapAlloc
	w.HeapObjects = w.mem.HeapObjects
	w.NumGoroutine = runtime.NumGoroutine()
	if w.verbose {
		snapshot := w.mem
		w.Full = &snapshot
	}
}
