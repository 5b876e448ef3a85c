// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package stats

import (
	"testing"
	"time"
)

func TestHandleEventIncrementsMatchingCounter(t *testing.T) {
	var s Stats

	s.handleEvent(Tcp4Announce)
	s.handleEvent(Tcp4Announce)
	s.handleEvent(Udp6Scrape)
	s.handleEvent(HandledRequest)
	s.handleEvent(ErroredRequest)
	s.handleEvent(ClientError)

	if s.Tcp4Announces != 2 {
		t.Fatalf("Tcp4Announces = %d; want 2", s.Tcp4Announces)
	}
	if s.Udp6Scrapes != 1 {
		t.Fatalf("Udp6Scrapes = %d; want 1", s.Udp6Scrapes)
	}
	if s.RequestsHandled != 1 || s.RequestsErrored != 1 || s.ClientErrors != 1 {
		t.Fatalf("RequestsHandled=%d RequestsErrored=%d ClientErrors=%d; want 1,1,1",
			s.RequestsHandled, s.RequestsErrored, s.ClientErrors)
	}
}

func TestHandleEventPanicsOnUnknownEvent(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("handleEvent did not panic on an unrecognized event")
		}
	}()

	var s Stats
	s.handleEvent(Event(-1))
}

func TestRecordEventNeverBlocksOnFullChannel(t *testing.T) {
	s := &Stats{events: make(chan Event, 1)}

	done := make(chan struct{})
	go func() {
		s.RecordEvent(Tcp4Announce) // fills the buffer
		s.RecordEvent(Tcp4Announce) // must be dropped, not block
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecordEvent blocked on a full channel instead of dropping the event")
	}
}

func TestRecordTimingNeverBlocksOnFullChannel(t *testing.T) {
	s := &Stats{responseTimeEvents: make(chan time.Duration, 1)}

	done := make(chan struct{})
	go func() {
		s.RecordTiming(time.Millisecond)
		s.RecordTiming(time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecordTiming blocked on a full channel instead of dropping the sample")
	}
}
