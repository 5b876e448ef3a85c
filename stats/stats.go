// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package stats implements a means of tracking processing statistics for a
// BitTorrent tracker.
package stats

import (
	"time"

	"github.com/pushrax/faststats"
	"github.com/pushrax/flatjson"

	"github.com/majestrate/chihaya/config"
)

// Event identifies one of the ten protocol/IP-family pairs the tracker
// facade emits after each announce, scrape, or UDP connect (§4.6).
type Event int

// The events the tracker core may record.
const (
	Tcp4Announce Event = iota
	Tcp6Announce
	Tcp4Scrape
	Tcp6Scrape

	Udp4Connect
	Udp6Connect
	Udp4Announce
	Udp6Announce
	Udp4Scrape
	Udp6Scrape

	HandledRequest
	ErroredRequest
	ClientError

	ResponseTime
)

// DefaultStats is a default instance of stats tracking that uses an unbuffered
// channel for broadcasting events unless StatsConfig.BufferSize specifies
// otherwise.
var DefaultStats *Stats

// PercentileTimes holds response-time percentile trackers.
type PercentileTimes struct {
	P50 *faststats.Percentile
	P90 *faststats.Percentile
	P95 *faststats.Percentile
}

// Stats is the process-wide counter bag described in §4.6: a single
// consumer goroutine owns every field below and applies increments
// received over bounded channels, so no field here is ever written
// concurrently from more than one goroutine.
type Stats struct {
	Started time.Time // Time at which the tracker was booted.

	GoRoutines int `json:"runtimeGoRoutines"`

	RequestsHandled uint64 `json:"requestsHandled"`
	RequestsErrored uint64 `json:"requestsErrored"`
	ClientErrors    uint64 `json:"requestsBad"`
	ResponseTime    PercentileTimes

	Tcp4Announces uint64 `json:"tcp4Announces"`
	Tcp6Announces uint64 `json:"tcp6Announces"`
	Tcp4Scrapes   uint64 `json:"tcp4Scrapes"`
	Tcp6Scrapes   uint64 `json:"tcp6Scrapes"`

	Udp4Connects  uint64 `json:"udp4Connects"`
	Udp6Connects  uint64 `json:"udp6Connects"`
	Udp4Announces uint64 `json:"udp4Announces"`
	Udp6Announces uint64 `json:"udp6Announces"`
	Udp4Scrapes   uint64 `json:"udp4Scrapes"`
	Udp6Scrapes   uint64 `json:"udp6Scrapes"`

	*MemStatsWrapper `json:",omitempty"`

	events             chan Event
	responseTimeEvents chan time.Duration
	recordMemStats     <-chan time.Time

	flattened flatjson.Map
}

// New constructs a Stats sink and starts its single consumer goroutine.
func New(cfg config.StatsConfig) *Stats {
	s := &Stats{
		Started: time.Now(),
		events:  make(chan Event, cfg.BufferSize),

		responseTimeEvents: make(chan time.Duration, cfg.BufferSize),

		ResponseTime: PercentileTimes{
			P50: faststats.NewPercentile(0.5),
			P90: faststats.NewPercentile(0.9),
			P95: faststats.NewPercentile(0.95),
		},
	}

	if cfg.IncludeMem {
		s.MemStatsWrapper = NewMemStatsWrapper(cfg.VerboseMem)
		s.recordMemStats = time.NewTicker(cfg.MemUpdateInterval.Duration).C
	}

	s.flattened = flatjson.Flatten(s)
	go s.handleEvents()
	return s
}

// Flattened returns the flattened JSON view used by the admin stats
// endpoint.
func (s *Stats) Flattened() flatjson.Map {
	return s.flattened
}

// Close stops the consumer goroutine. No further events may be recorded
// after Close.
func (s *Stats) Close() {
	close(s.events)
}

// Uptime reports how long this process has been running.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.Started)
}

// RecordEvent submits event to the sink. Emission is best-effort: a full
// channel drops the event without blocking the request path (§4.6).
func (s *Stats) RecordEvent(event Event) {
	select {
	case s.events <- event:
	default:
	}
}

// RecordTiming submits a response-time sample. Like RecordEvent, this is
// best-effort.
func (s *Stats) RecordTiming(duration time.Duration) {
	select {
	case s.responseTimeEvents <- duration:
	default:
	}
}

func (s *Stats) handleEvents() {
	for {
		select {
		case event, ok := <-s.events:
			if !ok {
				return
			}
			s.handleEvent(event)

		case duration := <-s.responseTimeEvents:
			f := float64(duration) / float64(time.Millisecond)
			s.ResponseTime.P50.AddSample(f)
			s.ResponseTime.P90.AddSample(f)
			s.ResponseTime.P95.AddSample(f)

		case <-s.recordMemStats:
			s.MemStatsWrapper.Update()
		}
	}
}

func (s *Stats) handleEvent(event Event) {
	switch event {
	case Tcp4Announce:
		s.Tcp4Announces++
	case Tcp6Announce:
		s.Tcp6Announces++
	case Tcp4Scrape:
		s.Tcp4Scrapes++
	case Tcp6Scrape:
		s.Tcp6Scrapes++

	case Udp4Connect:
		s.Udp4Connects++
	case Udp6Connect:
		s.Udp6Connects++
	case Udp4Announce:
		s.Udp4Announces++
	case Udp6Announce:
		s.Udp6Announces++
	case Udp4Scrape:
		s.Udp4Scrapes++
	case Udp6Scrape:
		s.Udp6Scrapes++

	case HandledRequest:
		s.RequestsHandled++
	case ErroredRequest:
		s.RequestsErrored++
	case ClientError:
		s.ClientErrors++

	default:
		panic("stats: RecordEvent called with an unknown event")
	}
}

// RecordEvent broadcasts an event to the default stats queue.
func RecordEvent(event Event) {
	if DefaultStats != nil {
		DefaultStats.RecordEvent(event)
	}
}

// RecordTiming broadcasts a timing event to the default stats queue.
func RecordTiming(duration time.Duration) {
	if DefaultStats != nil {
		DefaultStats.RecordTiming(duration)
	}
}
