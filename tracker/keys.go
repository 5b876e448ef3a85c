// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/majestrate/chihaya/storage"
	"github.com/majestrate/chihaya/tracker/models"
)

// KeyStore is a set of expiring authentication keys, backed by a
// storage.Driver for durability. It is safe for concurrent use.
type KeyStore struct {
	mu    sync.RWMutex
	keys  map[string]models.AuthKey
	clock Clock
	db    storage.Driver
}

// NewKeyStore constructs an empty KeyStore. Callers should follow up with
// Reload to warm it from persistent storage.
func NewKeyStore(clock Clock, db storage.Driver) *KeyStore {
	return &KeyStore{
		keys:  make(map[string]models.AuthKey),
		clock: clock,
		db:    db,
	}
}

// Generate mints a fresh 32-character alphanumeric key, valid for lifetime,
// persists it, and inserts it into the in-memory set.
func (s *KeyStore) Generate(lifetime time.Duration) (models.AuthKey, error) {
	key, err := randomKey()
	if err != nil {
		return models.AuthKey{}, err
	}
	return s.insert(key, lifetime)
}

// Add inserts a caller-supplied, well-formed 32-character key with the
// given lifetime.
func (s *KeyStore) Add(keyText string, lifetime time.Duration) (models.AuthKey, error) {
	if !models.IsWellFormedKey(keyText) {
		return models.AuthKey{}, models.ErrMalformedRequest
	}
	return s.insert(keyText, lifetime)
}

func (s *KeyStore) insert(keyText string, lifetime time.Duration) (models.AuthKey, error) {
	key := models.AuthKey{Key: keyText}
	if lifetime > 0 {
		key.HasExpiry = true
		key.ExpiresAt = uint64(s.clock.Now() + lifetime)
	}

	if err := s.db.AddKey(key); err != nil {
		return models.AuthKey{}, storage.WrapError(err)
	}

	s.mu.Lock()
	s.keys[key.Key] = key
	s.mu.Unlock()

	return key, nil
}

// Verify reports whether key is present and unexpired.
func (s *KeyStore) Verify(keyText string) error {
	s.mu.RLock()
	key, ok := s.keys[keyText]
	s.mu.RUnlock()

	if !ok {
		return models.ErrKeyInvalid
	}
	if key.HasExpiry && key.ExpiresAt <= uint64(s.clock.Now()) {
		return models.ErrKeyExpired
	}
	return nil
}

// Delete removes a key from memory and persistence. Deleting a key that
// does not exist is not an error; callers at the protocol edge may choose
// to surface a 404 themselves.
func (s *KeyStore) Delete(keyText string) error {
	s.mu.Lock()
	delete(s.keys, keyText)
	s.mu.Unlock()

	if err := s.db.RemoveKey(keyText); err != nil {
		return storage.WrapError(err)
	}
	return nil
}

// Reload atomically replaces the in-memory key set with the set currently
// held by persistent storage.
func (s *KeyStore) Reload() error {
	keys, err := s.db.LoadKeys()
	if err != nil {
		return storage.WrapError(err)
	}

	fresh := make(map[string]models.AuthKey, len(keys))
	for _, k := range keys {
		fresh[k.Key] = k
	}

	s.mu.Lock()
	s.keys = fresh
	s.mu.Unlock()
	return nil
}

func randomKey() (string, error) {
	var buf [models.AuthKeyLen]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	runes := []rune(models.ValidKeyRunes)
	out := make([]byte, models.AuthKeyLen)
	for i, b := range buf {
		out[i] = byte(runes[int(b)%len(runes)])
	}
	return string(out), nil
}
