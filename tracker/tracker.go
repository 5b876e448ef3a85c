// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package tracker implements the protocol-agnostic core of a BitTorrent
// tracker: the swarm repository, authentication key store, whitelist,
// statistics sink wiring, and the announce/scrape facade the HTTP and UDP
// frontends call into.
package tracker

import (
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/majestrate/chihaya/config"
	"github.com/majestrate/chihaya/stats"
	"github.com/majestrate/chihaya/storage"
	"github.com/majestrate/chihaya/tracker/models"
)

// AnnounceData is the result of a successful announce (§4.9).
type AnnounceData struct {
	Peers       models.PeerList
	Stats       models.SwarmStats
	Interval    time.Duration
	IntervalMin time.Duration
}

// Tracker composes the clock, key store, whitelist, swarm repository,
// connection-ID issuer, statistics sink, and persistence driver into the
// single facade the HTTP and UDP frontends drive (§4.9, §4.10).
type Tracker struct {
	Clock   Clock
	Keys    *KeyStore
	List    *Whitelist
	Swarms  *Swarm
	ConnIDs *ConnectionIDIssuer
	Stats   *stats.Stats
	DB      storage.Driver

	cfg config.TrackerConfig
}

// New constructs a Tracker from configuration and an already-open
// persistence driver. Callers should follow up with Reload to warm the
// key store, whitelist, and torrent download counters from persistent
// storage.
func New(cfg config.Config, db storage.Driver, statsSink *stats.Stats) (*Tracker, error) {
	clock := NewClock()

	connIDs, err := NewConnectionIDIssuer(clock, cfg.ConnectionIDLifetime.Duration)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		Clock:   clock,
		Keys:    NewKeyStore(clock, db),
		List:    NewWhitelist(db),
		Swarms:  NewSwarm(db, cfg.PersistentTorrentCompletedStat),
		ConnIDs: connIDs,
		Stats:   statsSink,
		DB:      db,
		cfg:     cfg.TrackerConfig,
	}, nil
}

// Reload warms the key store and whitelist from persistent storage, and
// imports persisted download counters into the swarm repository.
func (t *Tracker) Reload() error {
	if err := t.Keys.Reload(); err != nil {
		return err
	}
	if err := t.List.Reload(); err != nil {
		return err
	}
	rows, err := t.DB.LoadPersistentTorrents()
	if err != nil {
		return storage.WrapError(err)
	}
	t.Swarms.ImportPersistent(rows)
	return nil
}

// authorize implements the authorization matrix of §4.3 for a single
// infohash/key pair.
func (t *Tracker) authorize(ih models.InfoHash, keyText string) error {
	mode := t.cfg.Mode

	if mode.RequiresAuth() {
		if keyText == "" {
			return models.ErrMissingKey
		}
		if err := t.Keys.Verify(keyText); err != nil {
			return err
		}
	}

	if mode.EnforcesWhitelist() && !t.List.Contains(ih) {
		return models.ErrNotWhitelisted
	}
	return nil
}

// resolvePeerIP substitutes configured ExternalIP for a loopback observed
// IP, per §4.8.
func (t *Tracker) resolvePeerIP(ip net.IP) net.IP {
	if ip.IsLoopback() && t.cfg.ExternalIP != nil {
		return t.cfg.ExternalIP
	}
	return ip
}

// announceEvent picks the Tcp{4,6}Announce or Udp{4,6}Announce stats
// event for the observed IP family (§4.9).
func announceEvent(udp bool, family models.AddressFamily) stats.Event {
	switch {
	case !udp && family == models.IPv4:
		return stats.Tcp4Announce
	case !udp && family == models.IPv6:
		return stats.Tcp6Announce
	case udp && family == models.IPv4:
		return stats.Udp4Announce
	default:
		return stats.Udp6Announce
	}
}

// scrapeEvent picks the Tcp{4,6}Scrape or Udp{4,6}Scrape stats event for
// the observed IP family (§4.10).
func scrapeEvent(udp bool, family models.AddressFamily) stats.Event {
	switch {
	case !udp && family == models.IPv4:
		return stats.Tcp4Scrape
	case !udp && family == models.IPv6:
		return stats.Tcp6Scrape
	case udp && family == models.IPv4:
		return stats.Udp4Scrape
	default:
		return stats.Udp6Scrape
	}
}

// Announce implements the tracker facade's announce operation (§4.9).
// keyText is the empty string when no key was supplied. udp distinguishes
// the statistics event family.
func (t *Tracker) Announce(ih models.InfoHash, peer models.Peer, keyText string, udp bool) (AnnounceData, error) {
	if err := t.authorize(ih, keyText); err != nil {
		return AnnounceData{}, err
	}

	peer.IP = t.resolvePeerIP(peer.IP)
	peer.Updated = uint64(t.Clock.Now())

	swarmStats := t.Swarms.UpsertPeer(ih, peer)
	peers := t.Swarms.PeersFor(ih, &peer)

	if t.Stats != nil {
		t.Stats.RecordEvent(announceEvent(udp, peer.AddressFamily()))
	}

	return AnnounceData{
		Peers:       peers,
		Stats:       swarmStats,
		Interval:    t.cfg.Announce.Duration,
		IntervalMin: t.cfg.MinAnnounce.Duration,
	}, nil
}

// Scrape implements the tracker facade's scrape operation (§4.10).
// Unlike Announce, authorization failures for individual infohashes yield
// zeroed stats rather than aborting the whole request.
func (t *Tracker) Scrape(infoHashes []models.InfoHash, keyText string, observedIP net.IP, udp bool) ([]models.ScrapeStats, error) {
	if len(infoHashes) > models.MaxScrapeInfoHashes {
		return nil, models.ErrExceededInfoHashLimit
	}

	out := make([]models.ScrapeStats, len(infoHashes))
	for i, ih := range infoHashes {
		if err := t.authorize(ih, keyText); err != nil {
			continue // zeroed stats for this infohash (§4.3)
		}
		if swarmStats, ok := t.Swarms.Get(ih); ok {
			out[i] = models.ScrapeStats{
				Complete:   swarmStats.Seeders,
				Downloaded: swarmStats.Downloaded,
				Incomplete: swarmStats.Leechers,
			}
		}
	}

	if t.Stats != nil {
		family := models.IPv4
		if observedIP != nil && observedIP.To4() == nil {
			family = models.IPv6
		}
		t.Stats.RecordEvent(scrapeEvent(udp, family))
	}

	return out, nil
}

// RecordConnect emits the Udp{4,6}Connect statistics event for a
// successful UDP connect handshake.
func (t *Tracker) RecordConnect(family models.AddressFamily) {
	if t.Stats == nil {
		return
	}
	if family == models.IPv4 {
		t.Stats.RecordEvent(stats.Udp4Connect)
	} else {
		t.Stats.RecordEvent(stats.Udp6Connect)
	}
}

// Cleanup runs the periodic inactive-peer sweep (§4.14) using the
// tracker's configured policy.
func (t *Tracker) Cleanup() {
	cutoff := uint64(t.Clock.NowMinus(t.cfg.PeerTimeout.Duration))
	t.Swarms.Cleanup(CleanupPolicy{
		Cutoff:              cutoff,
		RemovePeerless:      t.cfg.RemovePeerlessTorrents,
		PersistentCompleted: t.cfg.PersistentTorrentCompletedStat,
	})
	glog.V(2).Infof("tracker: cleanup pass completed (cutoff=%d)", cutoff)
}

// Close releases the persistence driver and stops the statistics sink.
func (t *Tracker) Close() error {
	if t.Stats != nil {
		t.Stats.Close()
	}
	return t.DB.Close()
}
