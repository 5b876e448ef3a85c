// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package postgres implements a storage.Driver backed by PostgreSQL,
// adapted from the teacher's backend/uguu driver: same lib/pq connection
// handling and glog-on-failure style, repointed at the keys/whitelist/
// torrents schema of spec.md §6 instead of uguu's upload-tracker schema.
package postgres

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/golang/glog"

	"github.com/majestrate/chihaya/config"
	"github.com/majestrate/chihaya/storage"
	"github.com/majestrate/chihaya/tracker/models"
)

func init() {
	storage.Register("postgres", New)
}

// Driver is a storage.Driver implementation backed by PostgreSQL.
type Driver struct {
	conn *sql.DB
}

// New opens a PostgreSQL connection using cfg.Params["url"] and ensures
// the schema exists.
func New(cfg config.DriverConfig) (storage.Driver, error) {
	url, ok := cfg.Params["url"]
	if !ok {
		return nil, config.ErrMissingRequiredParam
	}

	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}

	d := &Driver{conn: conn}
	if err := d.CreateTables(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// CreateTables creates the keys, whitelist, and torrents tables if they do
// not already exist (§6).
func (d *Driver) CreateTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS keys (
			key CHAR(32) UNIQUE NOT NULL,
			valid_until BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS whitelist (
			info_hash CHAR(40) UNIQUE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS torrents (
			info_hash CHAR(40) UNIQUE NOT NULL,
			completed BIGINT NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// DropTables drops every table this driver owns.
func (d *Driver) DropTables() error {
	for _, tbl := range []string{"keys", "whitelist", "torrents"} {
		if _, err := d.conn.Exec("DROP TABLE IF EXISTS " + tbl); err != nil {
			return err
		}
	}
	return nil
}

// LoadKeys returns every key currently in persistent storage.
func (d *Driver) LoadKeys() ([]models.AuthKey, error) {
	rows, err := d.conn.Query(`SELECT key, valid_until FROM keys`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []models.AuthKey
	for rows.Next() {
		var key models.AuthKey
		var validUntil sql.NullInt64
		if err := rows.Scan(&key.Key, &validUntil); err != nil {
			return nil, err
		}
		if validUntil.Valid {
			key.HasExpiry = true
			key.ExpiresAt = uint64(validUntil.Int64)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// AddKey upserts a key row.
func (d *Driver) AddKey(key models.AuthKey) error {
	var validUntil sql.NullInt64
	if key.HasExpiry {
		validUntil = sql.NullInt64{Int64: int64(key.ExpiresAt), Valid: true}
	}
	_, err := d.conn.Exec(
		`INSERT INTO keys (key, valid_until) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET valid_until = EXCLUDED.valid_until`,
		key.Key, validUntil)
	return err
}

// RemoveKey deletes a key row. Deleting an absent key is not an error.
func (d *Driver) RemoveKey(keyText string) error {
	_, err := d.conn.Exec(`DELETE FROM keys WHERE key = $1`, keyText)
	return err
}

// LoadWhitelist returns every whitelisted infohash.
func (d *Driver) LoadWhitelist() ([]models.InfoHash, error) {
	rows, err := d.conn.Query(`SELECT info_hash FROM whitelist`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []models.InfoHash
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, err
		}
		ih, err := models.InfoHashFromHex(hex)
		if err != nil {
			glog.Errorf("postgres: skipping malformed whitelist row %q: %s", hex, err)
			continue
		}
		hashes = append(hashes, ih)
	}
	return hashes, rows.Err()
}

// AddToWhitelist upserts an infohash into the whitelist.
func (d *Driver) AddToWhitelist(ih models.InfoHash) error {
	_, err := d.conn.Exec(
		`INSERT INTO whitelist (info_hash) VALUES ($1) ON CONFLICT (info_hash) DO NOTHING`,
		ih.String())
	return err
}

// RemoveFromWhitelist deletes an infohash from the whitelist.
func (d *Driver) RemoveFromWhitelist(ih models.InfoHash) error {
	_, err := d.conn.Exec(`DELETE FROM whitelist WHERE info_hash = $1`, ih.String())
	return err
}

// ContainsWhitelist reports whether ih is present in persistent storage.
func (d *Driver) ContainsWhitelist(ih models.InfoHash) (bool, error) {
	var count int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM whitelist WHERE info_hash = $1`, ih.String()).Scan(&count)
	return count > 0, err
}

// LoadPersistentTorrents returns every (infohash, downloaded) row for
// warm-starting the swarm repository.
func (d *Driver) LoadPersistentTorrents() ([]storage.PersistentTorrent, error) {
	rows, err := d.conn.Query(`SELECT info_hash, completed FROM torrents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.PersistentTorrent
	for rows.Next() {
		var hex string
		var completed int64
		if err := rows.Scan(&hex, &completed); err != nil {
			return nil, err
		}
		ih, err := models.InfoHashFromHex(hex)
		if err != nil {
			glog.Errorf("postgres: skipping malformed torrents row %q: %s", hex, err)
			continue
		}
		out = append(out, storage.PersistentTorrent{InfoHash: ih, Downloaded: uint64(completed)})
	}
	return out, rows.Err()
}

// SavePersistentTorrent upserts a torrent's downloaded counter.
func (d *Driver) SavePersistentTorrent(ih models.InfoHash, downloaded uint64) error {
	_, err := d.conn.Exec(
		`INSERT INTO torrents (info_hash, completed) VALUES ($1, $2)
		 ON CONFLICT (info_hash) DO UPDATE SET completed = EXCLUDED.completed`,
		ih.String(), int64(downloaded))
	return err
}

// Close releases the underlying database connection.
func (d *Driver) Close() error {
	return d.conn.Close()
}
