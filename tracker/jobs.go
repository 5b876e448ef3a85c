// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import "time"

// RunCleanupJob runs the periodic inactive-peer sweep every interval
// until stop is closed (§4.14). It is meant to run as its own goroutine.
func (t *Tracker) RunCleanupJob(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Cleanup()
		case <-stop:
			return
		}
	}
}
