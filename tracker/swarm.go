// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"sort"
	"sync"

	"github.com/golang/glog"

	"github.com/majestrate/chihaya/storage"
	"github.com/majestrate/chihaya/tracker/models"
)

// CleanupPolicy controls how Swarm.Cleanup prunes stale state (§4.5,
// §4.14).
type CleanupPolicy struct {
	Cutoff              uint64
	RemovePeerless      bool
	PersistentCompleted bool
}

// Swarm is the infohash→entry repository. A single RWMutex guards the map
// itself; each entry carries its own mutex so unrelated infohashes never
// contend with one another. The teacher's and spec's guidance is explicit
// that per-entry sharding of the outer map is unnecessary at the scale
// this tracker targets, so the map itself stays unsharded (§4.5, §5).
type Swarm struct {
	mu    sync.RWMutex
	table map[models.InfoHash]*entry

	db                storage.Driver
	persistDownloaded bool
}

// NewSwarm constructs an empty Swarm repository.
func NewSwarm(db storage.Driver, persistDownloaded bool) *Swarm {
	return &Swarm{
		table:             make(map[models.InfoHash]*entry),
		db:                db,
		persistDownloaded: persistDownloaded,
	}
}

// getOrCreate returns the entry for ih, creating it atomically with
// respect to concurrent first-touch callers.
func (s *Swarm) getOrCreate(ih models.InfoHash) *entry {
	s.mu.RLock()
	e, ok := s.table[ih]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.table[ih]; ok {
		return e
	}
	e = newEntry()
	s.table[ih] = e
	return e
}

// Get returns a snapshot of the current stats for ih, if it exists.
func (s *Swarm) Get(ih models.InfoHash) (models.SwarmStats, bool) {
	s.mu.RLock()
	e, ok := s.table[ih]
	s.mu.RUnlock()
	if !ok {
		return models.SwarmStats{}, false
	}
	return e.stats(), true
}

// UpsertPeer applies peer to ih's entry, optionally scheduling a
// write-through persistence of the downloaded counter when it changes.
func (s *Swarm) UpsertPeer(ih models.InfoHash, peer models.Peer) models.SwarmStats {
	e := s.getOrCreate(ih)

	e.mu.Lock()
	before := e.downloaded
	e.upsertLocked(peer)
	after := e.downloaded
	stats := e.statsLocked()
	e.mu.Unlock()

	if after != before && s.persistDownloaded && s.db != nil {
		if err := s.db.SavePersistentTorrent(ih, after); err != nil {
			glog.Errorf("swarm: failed to persist downloaded counter for %s: %s", ih, err)
		}
	}

	return stats
}

// PeersFor returns up to 74 peers for ih, optionally excluding one peer's
// IP/family (§4.4, §4.5).
func (s *Swarm) PeersFor(ih models.InfoHash, excluding *models.Peer) models.PeerList {
	s.mu.RLock()
	e, ok := s.table[ih]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return e.peerList(excluding)
}

// basicEntry pairs an infohash with its torrent-level scrape stats, used
// by Paginated.
type basicEntry = models.BasicStats

// Paginated returns a deterministically ordered (by infohash hex) slice of
// (infohash, stats), offset and limited. limit == 0 yields an empty slice.
func (s *Swarm) Paginated(offset, limit int) []basicEntry {
	if limit == 0 {
		return nil
	}

	s.mu.RLock()
	hashes := make([]models.InfoHash, 0, len(s.table))
	for ih := range s.table {
		hashes = append(hashes, ih)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i].String() < hashes[j].String()
	})

	if offset >= len(hashes) {
		s.mu.RUnlock()
		return nil
	}
	end := offset + limit
	if end > len(hashes) {
		end = len(hashes)
	}
	page := hashes[offset:end]

	out := make([]basicEntry, 0, len(page))
	for _, ih := range page {
		e := s.table[ih]
		stats := e.stats()
		out = append(out, basicEntry{
			InfoHash: ih,
			ScrapeStats: models.ScrapeStats{
				Complete:   stats.Seeders,
				Downloaded: stats.Downloaded,
				Incomplete: stats.Leechers,
			},
		})
	}
	s.mu.RUnlock()
	return out
}

// Metrics aggregates totals across every entry in the repository.
func (s *Swarm) Metrics() models.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m models.Metrics
	m.Torrents = len(s.table)
	for _, e := range s.table {
		stats := e.stats()
		m.Seeders += stats.Seeders
		m.Leechers += stats.Leechers
		m.Completed += stats.Downloaded
	}
	return m
}

// Remove deletes ih's entry entirely.
func (s *Swarm) Remove(ih models.InfoHash) {
	s.mu.Lock()
	delete(s.table, ih)
	s.mu.Unlock()
}

// ImportPersistent warm-starts the repository from persisted
// (infohash, downloaded) pairs, for entries that do not yet exist.
func (s *Swarm) ImportPersistent(rows []storage.PersistentTorrent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if _, ok := s.table[row.InfoHash]; ok {
			continue
		}
		e := newEntry()
		e.downloaded = row.Downloaded
		s.table[row.InfoHash] = e
	}
}

// Cleanup applies policy across every entry: evicting inactive peers and,
// depending on policy, dropping now-peerless entries (§4.5, §4.14).
func (s *Swarm) Cleanup(policy CleanupPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ih, e := range s.table {
		e.removeInactive(policy.Cutoff)

		if !policy.RemovePeerless {
			continue
		}
		if !e.empty() {
			continue
		}
		if policy.PersistentCompleted && e.downloadedCount() > 0 {
			continue
		}
		delete(s.table, ih)
	}
}
