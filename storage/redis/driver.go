// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package redis implements a storage.Driver backed by Redis, grounded on
// modasi-mika's store/redis hash-per-row idiom: every key or torrent row
// is a single HSET, and the whitelist is a Redis set keyed by infohash.
package redis

import (
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v7"

	"github.com/majestrate/chihaya/config"
	"github.com/majestrate/chihaya/storage"
	"github.com/majestrate/chihaya/tracker/models"
)

func init() {
	storage.Register("redis", New)
}

const clientName = "chihaya"

func keyRowKey(keyText string) string {
	return fmt.Sprintf("key:%s", keyText)
}

func torrentRowKey(ih models.InfoHash) string {
	return fmt.Sprintf("torrent:%s", ih.String())
}

const whitelistSetKey = "whitelist"

// Driver is a storage.Driver implementation backed by Redis.
type Driver struct {
	client *redis.Client
}

// New connects to the Redis instance described by cfg.Params.
//
// Recognized params: addr (required), password, db.
func New(cfg config.DriverConfig) (storage.Driver, error) {
	addr, ok := cfg.Params["addr"]
	if !ok {
		return nil, config.ErrMissingRequiredParam
	}

	db := 0
	if s, ok := cfg.Params["db"]; ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		db = n
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Params["password"],
		DB:       db,
		OnConnect: func(conn *redis.Conn) error {
			return conn.ClientSetName(clientName).Err()
		},
	})

	if err := client.Ping().Err(); err != nil {
		return nil, err
	}

	return &Driver{client: client}, nil
}

// CreateTables is a no-op: Redis keys are created implicitly on first
// write.
func (d *Driver) CreateTables() error { return nil }

// DropTables flushes the selected database.
func (d *Driver) DropTables() error {
	return d.client.FlushDB().Err()
}

// LoadKeys scans every key:* hash and decodes it into an AuthKey.
func (d *Driver) LoadKeys() ([]models.AuthKey, error) {
	rowKeys, err := d.client.Keys("key:*").Result()
	if err != nil {
		return nil, err
	}

	keys := make([]models.AuthKey, 0, len(rowKeys))
	for _, rowKey := range rowKeys {
		v, err := d.client.HGetAll(rowKey).Result()
		if err != nil {
			return nil, err
		}
		key := models.AuthKey{Key: v["key"]}
		if hasExpiry, _ := strconv.ParseBool(v["has_expiry"]); hasExpiry {
			key.HasExpiry = true
			key.ExpiresAt, _ = strconv.ParseUint(v["expires_at"], 10, 64)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// AddKey writes a key row as a Redis hash.
func (d *Driver) AddKey(key models.AuthKey) error {
	return d.client.HSet(keyRowKey(key.Key), map[string]interface{}{
		"key":        key.Key,
		"has_expiry": key.HasExpiry,
		"expires_at": key.ExpiresAt,
	}).Err()
}

// RemoveKey deletes a key row. Deleting an absent key is not an error.
func (d *Driver) RemoveKey(keyText string) error {
	return d.client.Del(keyRowKey(keyText)).Err()
}

// LoadWhitelist returns the members of the whitelist set.
func (d *Driver) LoadWhitelist() ([]models.InfoHash, error) {
	members, err := d.client.SMembers(whitelistSetKey).Result()
	if err != nil {
		return nil, err
	}

	hashes := make([]models.InfoHash, 0, len(members))
	for _, m := range members {
		ih, err := models.InfoHashFromHex(m)
		if err != nil {
			continue
		}
		hashes = append(hashes, ih)
	}
	return hashes, nil
}

// AddToWhitelist adds ih to the whitelist set.
func (d *Driver) AddToWhitelist(ih models.InfoHash) error {
	return d.client.SAdd(whitelistSetKey, ih.String()).Err()
}

// RemoveFromWhitelist removes ih from the whitelist set.
func (d *Driver) RemoveFromWhitelist(ih models.InfoHash) error {
	return d.client.SRem(whitelistSetKey, ih.String()).Err()
}

// ContainsWhitelist reports set membership.
func (d *Driver) ContainsWhitelist(ih models.InfoHash) (bool, error) {
	return d.client.SIsMember(whitelistSetKey, ih.String()).Result()
}

// LoadPersistentTorrents scans every torrent:* hash for warm-starting the
// swarm repository.
func (d *Driver) LoadPersistentTorrents() ([]storage.PersistentTorrent, error) {
	rowKeys, err := d.client.Keys("torrent:*").Result()
	if err != nil {
		return nil, err
	}

	out := make([]storage.PersistentTorrent, 0, len(rowKeys))
	for _, rowKey := range rowKeys {
		v, err := d.client.HGetAll(rowKey).Result()
		if err != nil {
			return nil, err
		}
		ih, err := models.InfoHashFromHex(v["info_hash"])
		if err != nil {
			continue
		}
		downloaded, _ := strconv.ParseUint(v["downloaded"], 10, 64)
		out = append(out, storage.PersistentTorrent{InfoHash: ih, Downloaded: downloaded})
	}
	return out, nil
}

// SavePersistentTorrent upserts a torrent's downloaded counter.
func (d *Driver) SavePersistentTorrent(ih models.InfoHash, downloaded uint64) error {
	return d.client.HSet(torrentRowKey(ih), map[string]interface{}{
		"info_hash":  ih.String(),
		"downloaded": downloaded,
	}).Err()
}

// Close releases the underlying Redis client.
func (d *Driver) Close() error {
	return d.client.Close()
}
