// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"sync"

	"github.com/majestrate/chihaya/storage"
	"github.com/majestrate/chihaya/tracker/models"
)

// Whitelist is a set of infohashes the tracker is permitted to serve,
// backed by a storage.Driver for durability. It is safe for concurrent
// use.
type Whitelist struct {
	mu  sync.RWMutex
	set map[models.InfoHash]struct{}
	db  storage.Driver
}

// NewWhitelist constructs an empty Whitelist. Callers should follow up
// with Reload to warm it from persistent storage.
func NewWhitelist(db storage.Driver) *Whitelist {
	return &Whitelist{
		set: make(map[models.InfoHash]struct{}),
		db:  db,
	}
}

// Contains reports whether an infohash is present in the whitelist.
func (w *Whitelist) Contains(ih models.InfoHash) bool {
	w.mu.RLock()
	_, ok := w.set[ih]
	w.mu.RUnlock()
	return ok
}

// Add inserts ih into the whitelist, with write-through persistence.
func (w *Whitelist) Add(ih models.InfoHash) error {
	if err := w.db.AddToWhitelist(ih); err != nil {
		return storage.WrapError(err)
	}
	w.mu.Lock()
	w.set[ih] = struct{}{}
	w.mu.Unlock()
	return nil
}

// Remove deletes ih from the whitelist, with write-through persistence.
func (w *Whitelist) Remove(ih models.InfoHash) error {
	if err := w.db.RemoveFromWhitelist(ih); err != nil {
		return storage.WrapError(err)
	}
	w.mu.Lock()
	delete(w.set, ih)
	w.mu.Unlock()
	return nil
}

// Reload atomically replaces the in-memory whitelist with the set
// currently held by persistent storage.
func (w *Whitelist) Reload() error {
	hashes, err := w.db.LoadWhitelist()
	if err != nil {
		return storage.WrapError(err)
	}

	fresh := make(map[models.InfoHash]struct{}, len(hashes))
	for _, ih := range hashes {
		fresh[ih] = struct{}{}
	}

	w.mu.Lock()
	w.set = fresh
	w.mu.Unlock()
	return nil
}
