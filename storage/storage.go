// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package storage defines the persistence driver contract used by the
// tracker's key store, whitelist, and swarm repository, along with a
// registry of named driver constructors mirroring the teacher's
// backend.Register pattern.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/majestrate/chihaya/config"
	"github.com/majestrate/chihaya/tracker/models"
)

// ErrorKind classifies a persistence failure so callers can decide whether
// it is worth retrying or surfacing to an admin caller.
type ErrorKind int

// The persistence failure kinds the core distinguishes.
const (
	ErrQueryFailed ErrorKind = iota
	ErrNoRows
	ErrConnectionFailed
)

// Error is the single error type persistence drivers return; it always
// carries a Kind alongside the underlying cause.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persistence error (%d): %s", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError wraps cause with the given kind.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// WrapError normalizes an arbitrary driver error into an *Error, tagging
// unrecognized causes as a generic query failure.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return NewError(ErrQueryFailed, err)
}

// Driver is the persistence contract the tracker core depends on. All
// operations must be idempotent. Implementations live in storage/postgres,
// storage/redis, and storage/noop.
type Driver interface {
	CreateTables() error
	DropTables() error

	LoadKeys() ([]models.AuthKey, error)
	AddKey(key models.AuthKey) error
	RemoveKey(keyText string) error

	LoadWhitelist() ([]models.InfoHash, error)
	AddToWhitelist(ih models.InfoHash) error
	RemoveFromWhitelist(ih models.InfoHash) error
	ContainsWhitelist(ih models.InfoHash) (bool, error)

	LoadPersistentTorrents() ([]PersistentTorrent, error)
	SavePersistentTorrent(ih models.InfoHash, downloaded uint64) error

	Close() error
}

// PersistentTorrent is a single (infohash, downloaded-counter) row used to
// warm-start the swarm repository.
type PersistentTorrent struct {
	InfoHash   models.InfoHash
	Downloaded uint64
}

// Constructor builds a Driver from the params of a config.DriverConfig.
type Constructor func(cfg config.DriverConfig) (Driver, error)

var (
	driversMu sync.Mutex
	drivers   = make(map[string]Constructor)
)

// Register associates a name with a driver Constructor, so that
// config.DriverConfig.Name can select it at boot. Driver packages call
// this from an init func, mirroring the teacher's backend.Register.
func Register(name string, ctor Constructor) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if ctor == nil {
		panic("storage: Register called with a nil Constructor")
	}
	if _, dup := drivers[name]; dup {
		panic("storage: Register called twice for driver " + name)
	}
	drivers[name] = ctor
}

// Open builds a Driver using the registered Constructor named by cfg.Name.
func Open(cfg config.DriverConfig) (Driver, error) {
	driversMu.Lock()
	ctor, ok := drivers[cfg.Name]
	driversMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Name)
	}
	return ctor(cfg)
}
