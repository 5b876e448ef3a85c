// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"crypto/rand"
	"encoding/binary"
	"hash/fnv"
	"net"
	"time"
)

// connectionIDExtents is the number of trailing time extents a connection
// ID is checked against, giving tokens a lifetime of between one and two
// extents (§4.7).
const connectionIDExtents = 2

// ConnectionIDIssuer mints and verifies the 8-byte opaque connection IDs
// BEP-15 uses to defeat UDP source-address spoofing, grounded on
// torrust-tracker's connection_cookie time-extent hashing scheme.
type ConnectionIDIssuer struct {
	clock  Clock
	secret [32]byte
	extent time.Duration
}

// NewConnectionIDIssuer constructs an issuer whose process secret is
// randomized at startup; it is never persisted or logged.
func NewConnectionIDIssuer(clock Clock, extent time.Duration) (*ConnectionIDIssuer, error) {
	issuer := &ConnectionIDIssuer{clock: clock, extent: extent}
	if _, err := rand.Read(issuer.secret[:]); err != nil {
		return nil, err
	}
	return issuer, nil
}

func timeExtent(now time.Duration, extent time.Duration) int64 {
	return int64(now / extent)
}

func (c *ConnectionIDIssuer) hash(addr *net.UDPAddr, extent int64) uint64 {
	h := fnv.New64a()
	h.Write(addr.IP.To16())
	var buf [10]byte
	binary.LittleEndian.PutUint16(buf[:2], uint16(addr.Port))
	binary.LittleEndian.PutUint64(buf[2:], uint64(extent))
	h.Write(buf[:])
	h.Write(c.secret[:])
	return h.Sum64()
}

// Issue derives an 8-byte connection ID for addr at the current time
// extent.
func (c *ConnectionIDIssuer) Issue(addr *net.UDPAddr) int64 {
	extent := timeExtent(c.clock.Now(), c.extent)
	return int64(c.hash(addr, extent))
}

// Verify reports whether id was issued to addr within the last
// connectionIDExtents extents.
func (c *ConnectionIDIssuer) Verify(id int64, addr *net.UDPAddr) bool {
	current := timeExtent(c.clock.Now(), c.extent)
	for offset := int64(0); offset < connectionIDExtents; offset++ {
		candidate := current - offset
		if candidate < 0 {
			break
		}
		if int64(c.hash(addr, candidate)) == id {
			return true
		}
	}
	return false
}
