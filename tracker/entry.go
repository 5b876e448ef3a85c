// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"sync"

	"github.com/majestrate/chihaya/tracker/models"
)

// entry is a single torrent's peer table, guarded by its own mutex so that
// disjoint infohashes can be mutated in parallel under the swarm
// repository's shared outer lock (§5).
type entry struct {
	mu         sync.Mutex
	peers      map[models.PeerID]models.Peer
	downloaded uint64
}

func newEntry() *entry {
	return &entry{peers: make(map[models.PeerID]models.Peer)}
}

// upsertLocked applies peer according to its event, following the ordered
// semantics of §4.4. Callers must hold e.mu.
func (e *entry) upsertLocked(peer models.Peer) {
	switch peer.Event {
	case models.Stopped:
		delete(e.peers, peer.Key())
		return
	case models.Completed:
		if _, exists := e.peers[peer.Key()]; exists {
			e.downloaded++
		}
		e.peers[peer.Key()] = peer
	default:
		e.peers[peer.Key()] = peer
	}
}

// stats returns the entry's seeder/downloaded/leecher counts.
func (e *entry) stats() models.SwarmStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

func (e *entry) statsLocked() models.SwarmStats {
	var seeders int
	for _, p := range e.peers {
		if p.IsSeeder() {
			seeders++
		}
	}
	return models.SwarmStats{
		Seeders:    seeders,
		Leechers:   len(e.peers) - seeders,
		Downloaded: e.downloaded,
	}
}

// downloadedCount returns the entry's lifetime downloaded counter.
func (e *entry) downloadedCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.downloaded
}

// maxPeersInResponse is the BEP-15 scrape peer cap (§4.4).
const maxPeersInResponse = models.MaxScrapeInfoHashes

// peerList returns up to maxPeersInResponse peers, optionally excluding those
// sharing excluding's IP and, when excluding is non-nil, restricted to its
// address family.
func (e *entry) peerList(excluding *models.Peer) models.PeerList {
	e.mu.Lock()
	defer e.mu.Unlock()

	var family models.AddressFamily
	if excluding != nil {
		family = excluding.AddressFamily()
	}

	out := make(models.PeerList, 0, len(e.peers))
	for _, p := range e.peers {
		if len(out) >= maxPeersInResponse {
			break
		}
		if excluding != nil {
			if p.IP.Equal(excluding.IP) {
				continue
			}
			if p.AddressFamily() != family {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// removeInactive drops every peer whose last announce predates cutoff.
func (e *entry) removeInactive(cutoff uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, p := range e.peers {
		if p.Updated < cutoff {
			delete(e.peers, id)
		}
	}
}

// empty reports whether the entry's peer table is empty.
func (e *entry) empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.peers) == 0
}
