// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package models implements the common data types used throughout a BitTorrent
// tracker.
package models

import (
	"encoding/hex"
	"fmt"
	"net"
)

var (
	// ErrMalformedRequest is returned when a request does not contain the
	// required parameters needed to create a model.
	ErrMalformedRequest = ClientError("malformed request")

	// ErrBadRequest is returned when a request is invalid in the peer's
	// current state.
	ErrBadRequest = ClientError("bad request")

	// ErrTorrentDNE is returned when a torrent does not exist.
	ErrTorrentDNE = NotFoundError("torrent does not exist")

	// ErrMissingKey is returned when a private tracker receives a request
	// without an authentication key.
	ErrMissingKey = ClientError("missing key")

	// ErrKeyInvalid is returned when an authentication key is not present
	// in the key store.
	ErrKeyInvalid = ClientError("key is invalid")

	// ErrKeyExpired is returned when an authentication key has passed its
	// expiry time.
	ErrKeyExpired = ClientError("key has expired")

	// ErrNotWhitelisted is returned when an infohash is not present in the
	// whitelist and the tracker is enforcing one.
	ErrNotWhitelisted = ClientError("unregistered torrent")

	// ErrInvalidInfoHash is returned when an infohash is not exactly 20
	// bytes long.
	ErrInvalidInfoHash = ClientError("infohash is invalid")

	// ErrInvalidConnectionID is returned when a UDP connection ID fails
	// verification.
	ErrInvalidConnectionID = ProtocolError("connection id is invalid")

	// ErrMissingXForwardedFor is returned when the tracker is configured
	// to run behind a reverse proxy but a request carries no
	// X-Forwarded-For header.
	ErrMissingXForwardedFor = ClientError("missing X-Forwarded-For header")

	// ErrExceededInfoHashLimit is returned when a scrape names more than
	// MaxScrapeInfoHashes infohashes.
	ErrExceededInfoHashLimit = ClientError("exceeded infohash limit for scrape")
)

// ClientError is an error that should be exposed to the client.
type ClientError string

// NotFoundError is a ClientError that corresponds to a missing resource.
type NotFoundError ClientError

// ProtocolError is a ClientError rooted in wire-format violations.
type ProtocolError ClientError

func (e ClientError) Error() string   { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProtocolError) Error() string { return string(e) }

// IsPublicError determines whether an error should be propagated to the client.
func IsPublicError(err error) bool {
	_, cl := err.(ClientError)
	_, nf := err.(NotFoundError)
	_, pc := err.(ProtocolError)
	return cl || nf || pc
}

// MaxScrapeInfoHashes is the largest number of infohashes accepted in a
// single scrape request, and the largest number of peers returned from a
// single announce. Both caps derive from the same BEP-15 packet-size math.
const MaxScrapeInfoHashes = 74

// InfoHashLen is the length in bytes of an InfoHash.
const InfoHashLen = 20

// InfoHash is a 20-byte SHA-1 infohash identifying a swarm.
type InfoHash [InfoHashLen]byte

// NewInfoHash builds an InfoHash from a raw byte slice. It fails unless b
// is exactly 20 bytes long.
func NewInfoHash(b []byte) (InfoHash, error) {
	var ih InfoHash
	if len(b) != InfoHashLen {
		return ih, ErrInvalidInfoHash
	}
	copy(ih[:], b)
	return ih, nil
}

// InfoHashFromHex parses a 40-character hex string into an InfoHash.
func InfoHashFromHex(s string) (InfoHash, error) {
	var ih InfoHash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != InfoHashLen {
		return ih, ErrInvalidInfoHash
	}
	copy(ih[:], b)
	return ih, nil
}

// String renders an InfoHash as 40 lowercase hex digits.
func (ih InfoHash) String() string {
	return hex.EncodeToString(ih[:])
}

// RawString returns the infohash as a 20-byte binary string, used as the
// raw bencoded form in HTTP and UDP wire payloads.
func (ih InfoHash) RawString() string {
	return string(ih[:])
}

// PeerIDLen is the length in bytes of a PeerID.
const PeerIDLen = 20

// PeerID is a 20-byte client-chosen peer identifier.
type PeerID [PeerIDLen]byte

// NewPeerID builds a PeerID from a raw byte slice.
func NewPeerID(b []byte) (PeerID, error) {
	var id PeerID
	if len(b) != PeerIDLen {
		return id, ErrMalformedRequest
	}
	copy(id[:], b)
	return id, nil
}

func (id PeerID) String() string { return string(id[:]) }

// Event is the announce event a client reports.
type Event uint8

// The four announce events a peer may report.
const (
	None Event = iota
	Started
	Completed
	Stopped
)

// NewEvent parses a BEP-3 "event" query parameter into an Event. Any value
// other than the three named events yields None, matching the HTTP wire
// format (§4.12).
func NewEvent(s string) Event {
	switch s {
	case "started":
		return Started
	case "stopped":
		return Stopped
	case "completed":
		return Completed
	default:
		return None
	}
}

func (e Event) String() string {
	switch e {
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	case Completed:
		return "completed"
	default:
		return ""
	}
}

// AddressFamily distinguishes IPv4 from IPv6 peers and statistics buckets.
type AddressFamily uint8

// The two address families the tracker distinguishes in statistics.
const (
	IPv4 AddressFamily = iota
	IPv6
)

// Peer represents a participant in a BitTorrent swarm.
type Peer struct {
	ID PeerID

	IP   net.IP
	Port uint16

	// Updated is the duration-since-epoch (per the tracker's Clock) at
	// which this peer last announced.
	Updated uint64

	Uploaded   uint64
	Downloaded uint64
	Left       uint64
	Event      Event
}

// IsSeeder reports whether a peer is a seeder: it has nothing left to
// download and has not announced that it stopped.
func (p *Peer) IsSeeder() bool {
	return p.Left == 0 && p.Event != Stopped
}

// AddressFamily reports which IP family this peer's address belongs to.
func (p *Peer) AddressFamily() AddressFamily {
	if p.IP.To4() != nil {
		return IPv4
	}
	return IPv6
}

// Key uniquely identifies a peer within a torrent entry's peer table.
func (p *Peer) Key() PeerID { return p.ID }

// String renders the peer's socket address for logging.
func (p *Peer) String() string {
	return fmt.Sprintf("%s:%d", p.IP, p.Port)
}

// PeerList is an ordered collection of Peer.
type PeerList []Peer

// SwarmStats is the tuple returned after mutating a torrent entry's peer
// table: current seeder/leecher counts and the lifetime download counter.
type SwarmStats struct {
	Seeders    int
	Leechers   int
	Downloaded uint64
}

// ScrapeStats is a single infohash's aggregate counters, as returned by
// scrape.
type ScrapeStats struct {
	Complete   int
	Downloaded uint64
	Incomplete int
}

// BasicStats pairs an infohash with its current scrape-style counters, used
// by the paginated admin listing.
type BasicStats struct {
	InfoHash InfoHash
	ScrapeStats
}

// Metrics aggregates swarm-wide totals across every known torrent.
type Metrics struct {
	Torrents  int
	Seeders   int
	Completed uint64
	Leechers  int
}

// AuthKeyLen is the required length of an authentication key.
const AuthKeyLen = 32

// AuthKey is a 32-character alphanumeric identifier issued to private
// tracker clients, with an optional expiry.
type AuthKey struct {
	Key string

	// HasExpiry is false for keys that never expire.
	HasExpiry bool
	ExpiresAt uint64 // duration-since-epoch, valid only if HasExpiry.
}

// ValidKeyRunes are the only runes permitted in an AuthKey.
const ValidKeyRunes = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// IsWellFormedKey reports whether s is exactly AuthKeyLen characters, each
// drawn from ValidKeyRunes.
func IsWellFormedKey(s string) bool {
	if len(s) != AuthKeyLen {
		return false
	}
	for _, r := range s {
		if !isKeyRune(r) {
			return false
		}
	}
	return true
}

func isKeyRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	default:
		return false
	}
}
