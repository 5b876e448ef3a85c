// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"net"
	"testing"
	"time"

	"github.com/majestrate/chihaya/config"
	"github.com/majestrate/chihaya/tracker/models"
)

// newTestTracker builds a Tracker directly (bypassing New, and so the
// statistics sink) against the noop driver, for exercising the
// authorization matrix and IP resolution in isolation.
func newTestTracker(t *testing.T, mode config.Mode) *Tracker {
	t.Helper()
	db := testDriver(t)
	clock := NewStoppedClock()
	connIDs, err := NewConnectionIDIssuer(clock, time.Minute)
	if err != nil {
		t.Fatalf("NewConnectionIDIssuer: %s", err)
	}
	return &Tracker{
		Clock:   clock,
		Keys:    NewKeyStore(clock, db),
		List:    NewWhitelist(db),
		Swarms:  NewSwarm(db, false),
		ConnIDs: connIDs,
		DB:      db,
		cfg: config.TrackerConfig{
			Mode:        mode,
			Announce:    config.Duration{Duration: 30 * time.Minute},
			MinAnnounce: config.Duration{Duration: 15 * time.Minute},
		},
	}
}

func testPeer() models.Peer {
	return models.Peer{ID: models.PeerID{1}, IP: net.ParseIP("192.0.2.1"), Port: 6881, Left: 1, Event: models.Started}
}

func TestTrackerAnnouncePublicRequiresNeitherKeyNorWhitelist(t *testing.T) {
	tr := newTestTracker(t, config.Public)

	var ih models.InfoHash
	if _, err := tr.Announce(ih, testPeer(), "", false); err != nil {
		t.Fatalf("Announce: %s", err)
	}
}

func TestTrackerAnnounceListedRejectsUnlistedInfoHash(t *testing.T) {
	tr := newTestTracker(t, config.Listed)

	var ih models.InfoHash
	if _, err := tr.Announce(ih, testPeer(), "", false); err != models.ErrNotWhitelisted {
		t.Fatalf("Announce(unlisted) = %v; want ErrNotWhitelisted", err)
	}

	if err := tr.List.Add(ih); err != nil {
		t.Fatalf("List.Add: %s", err)
	}
	if _, err := tr.Announce(ih, testPeer(), "", false); err != nil {
		t.Fatalf("Announce(listed) = %v; want nil", err)
	}
}

func TestTrackerAnnouncePrivateRequiresKey(t *testing.T) {
	tr := newTestTracker(t, config.Private)

	var ih models.InfoHash
	if _, err := tr.Announce(ih, testPeer(), "", false); err != models.ErrMissingKey {
		t.Fatalf("Announce(no key) = %v; want ErrMissingKey", err)
	}

	key, err := tr.Keys.Generate(0)
	if err != nil {
		t.Fatalf("Keys.Generate: %s", err)
	}
	if _, err := tr.Announce(ih, testPeer(), key.Key, false); err != nil {
		t.Fatalf("Announce(valid key) = %v; want nil", err)
	}
	if _, err := tr.Announce(ih, testPeer(), "wrong-key-wrong-key-wrong-key-12", false); err != models.ErrKeyInvalid {
		t.Fatalf("Announce(wrong key) = %v; want ErrKeyInvalid", err)
	}
}

func TestTrackerAnnouncePrivateListedRequiresBoth(t *testing.T) {
	tr := newTestTracker(t, config.PrivateListed)

	var ih models.InfoHash
	key, err := tr.Keys.Generate(0)
	if err != nil {
		t.Fatalf("Keys.Generate: %s", err)
	}

	if _, err := tr.Announce(ih, testPeer(), key.Key, false); err != models.ErrNotWhitelisted {
		t.Fatalf("Announce(keyed, unlisted) = %v; want ErrNotWhitelisted", err)
	}

	if err := tr.List.Add(ih); err != nil {
		t.Fatalf("List.Add: %s", err)
	}
	if _, err := tr.Announce(ih, testPeer(), key.Key, false); err != nil {
		t.Fatalf("Announce(keyed, listed) = %v; want nil", err)
	}
}

func TestTrackerScrapeZeroesStatsForUnauthorizedInfoHashWithoutAborting(t *testing.T) {
	tr := newTestTracker(t, config.Listed)

	var allowed, denied models.InfoHash
	denied[0] = 1
	if err := tr.List.Add(allowed); err != nil {
		t.Fatalf("List.Add: %s", err)
	}
	if _, err := tr.Announce(allowed, testPeer(), "", false); err != nil {
		t.Fatalf("Announce: %s", err)
	}

	results, err := tr.Scrape([]models.InfoHash{allowed, denied}, "", net.ParseIP("192.0.2.1"), false)
	if err != nil {
		t.Fatalf("Scrape: %s", err)
	}
	if results[0].Incomplete != 1 {
		t.Fatalf("results[0].Incomplete = %d; want 1", results[0].Incomplete)
	}
	if results[1] != (models.ScrapeStats{}) {
		t.Fatalf("results[1] = %+v; want zero value", results[1])
	}
}

func TestTrackerResolvePeerIPSubstitutesExternalIPForLoopback(t *testing.T) {
	tr := newTestTracker(t, config.Public)
	tr.cfg.ExternalIP = net.ParseIP("203.0.113.9")

	got := tr.resolvePeerIP(net.ParseIP("127.0.0.1"))
	if !got.Equal(tr.cfg.ExternalIP) {
		t.Fatalf("resolvePeerIP(loopback) = %v; want %v", got, tr.cfg.ExternalIP)
	}

	real := net.ParseIP("198.51.100.7")
	if got := tr.resolvePeerIP(real); !got.Equal(real) {
		t.Fatalf("resolvePeerIP(non-loopback) = %v; want unchanged %v", got, real)
	}
}

func TestTrackerCleanupEvictsInactivePeers(t *testing.T) {
	tr := newTestTracker(t, config.Public)
	tr.cfg.PeerTimeout = config.Duration{Duration: time.Minute}

	var ih models.InfoHash
	clock := tr.Clock.(*StoppedClock)
	clock.Set(time.Minute)

	if _, err := tr.Announce(ih, testPeer(), "", false); err != nil {
		t.Fatalf("Announce: %s", err)
	}

	clock.Add(2 * time.Minute)
	tr.Cleanup()

	stats, ok := tr.Swarms.Get(ih)
	if ok && (stats.Seeders != 0 || stats.Leechers != 0) {
		t.Fatalf("Cleanup did not evict the inactive peer: %+v", stats)
	}
}
