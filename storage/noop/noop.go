// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package noop implements a storage.Driver that discards every write and
// reports empty reads. It is the tracker's default driver, matching the
// teacher's DriverConfig.Name == "noop" default, for operators who accept
// that in-memory state does not survive a restart.
package noop

import (
	"github.com/majestrate/chihaya/config"
	"github.com/majestrate/chihaya/storage"
	"github.com/majestrate/chihaya/tracker/models"
)

func init() {
	storage.Register("noop", New)
}

type driver struct{}

// New constructs a noop Driver. It never fails.
func New(_ config.DriverConfig) (storage.Driver, error) {
	return driver{}, nil
}

func (driver) CreateTables() error { return nil }
func (driver) DropTables() error   { return nil }

func (driver) LoadKeys() ([]models.AuthKey, error)       { return nil, nil }
func (driver) AddKey(models.AuthKey) error               { return nil }
func (driver) RemoveKey(string) error                    { return nil }

func (driver) LoadWhitelist() ([]models.InfoHash, error)          { return nil, nil }
func (driver) AddToWhitelist(models.InfoHash) error               { return nil }
func (driver) RemoveFromWhitelist(models.InfoHash) error          { return nil }
func (driver) ContainsWhitelist(models.InfoHash) (bool, error)    { return false, nil }

func (driver) LoadPersistentTorrents() ([]storage.PersistentTorrent, error) { return nil, nil }
func (driver) SavePersistentTorrent(models.InfoHash, uint64) error          { return nil }

func (driver) Close() error { return nil }
