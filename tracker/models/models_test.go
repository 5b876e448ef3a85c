// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package models

import (
	"net"
	"testing"
)

func TestNewInfoHashRejectsWrongLength(t *testing.T) {
	if _, err := NewInfoHash(make([]byte, 19)); err != ErrInvalidInfoHash {
		t.Fatalf("NewInfoHash(19 bytes) = %v; want ErrInvalidInfoHash", err)
	}
	if _, err := NewInfoHash(make([]byte, 20)); err != nil {
		t.Fatalf("NewInfoHash(20 bytes) = %v; want nil", err)
	}
}

func TestInfoHashFromHexRoundTrip(t *testing.T) {
	ih, err := NewInfoHash([]byte("01234567890123456789"))
	if err != nil {
		t.Fatalf("NewInfoHash: %s", err)
	}

	parsed, err := InfoHashFromHex(ih.String())
	if err != nil {
		t.Fatalf("InfoHashFromHex: %s", err)
	}
	if parsed != ih {
		t.Fatalf("round trip mismatch: got %v, want %v", parsed, ih)
	}
}

func TestInfoHashFromHexRejectsMalformed(t *testing.T) {
	if _, err := InfoHashFromHex("not-hex"); err != ErrInvalidInfoHash {
		t.Fatalf("InfoHashFromHex(non-hex) = %v; want ErrInvalidInfoHash", err)
	}
	if _, err := InfoHashFromHex("aabb"); err != ErrInvalidInfoHash {
		t.Fatalf("InfoHashFromHex(short) = %v; want ErrInvalidInfoHash", err)
	}
}

func TestNewPeerIDRejectsWrongLength(t *testing.T) {
	if _, err := NewPeerID(make([]byte, 19)); err != ErrMalformedRequest {
		t.Fatalf("NewPeerID(19 bytes) = %v; want ErrMalformedRequest", err)
	}
}

func TestNewEventRoundTrip(t *testing.T) {
	cases := map[string]Event{
		"started":   Started,
		"stopped":   Stopped,
		"completed": Completed,
		"":          None,
		"garbage":   None,
	}
	for s, want := range cases {
		if got := NewEvent(s); got != want {
			t.Fatalf("NewEvent(%q) = %v; want %v", s, got, want)
		}
	}

	if Started.String() != "started" || Stopped.String() != "stopped" || Completed.String() != "completed" {
		t.Fatal("Event.String did not round-trip through NewEvent's vocabulary")
	}
	if None.String() != "" {
		t.Fatalf("None.String() = %q; want empty", None.String())
	}
}

func TestPeerIsSeeder(t *testing.T) {
	p := Peer{Left: 0, Event: Started}
	if !p.IsSeeder() {
		t.Fatal("peer with Left=0 and Event=Started should be a seeder")
	}

	p.Event = Stopped
	if p.IsSeeder() {
		t.Fatal("a stopped peer is never a seeder, regardless of Left")
	}

	p = Peer{Left: 10}
	if p.IsSeeder() {
		t.Fatal("peer with nonzero Left should not be a seeder")
	}
}

func TestPeerAddressFamily(t *testing.T) {
	p := Peer{IP: net.ParseIP("192.0.2.1")}
	if p.AddressFamily() != IPv4 {
		t.Fatal("IPv4-mapped address reported as IPv6")
	}

	p = Peer{IP: net.ParseIP("2001:db8::1")}
	if p.AddressFamily() != IPv6 {
		t.Fatal("IPv6 address reported as IPv4")
	}
}

func TestIsWellFormedKey(t *testing.T) {
	valid := "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdef"
	if len(valid) != AuthKeyLen {
		t.Fatalf("test fixture length = %d; want %d", len(valid), AuthKeyLen)
	}
	if !IsWellFormedKey(valid) {
		t.Fatal("IsWellFormedKey rejected a valid key")
	}
	if IsWellFormedKey(valid[:AuthKeyLen-1]) {
		t.Fatal("IsWellFormedKey accepted a key of the wrong length")
	}
	if IsWellFormedKey(valid[:AuthKeyLen-1] + "!") {
		t.Fatal("IsWellFormedKey accepted a key containing a non-alphanumeric rune")
	}
}

func TestIsPublicError(t *testing.T) {
	if !IsPublicError(ErrMalformedRequest) {
		t.Fatal("ClientError should be public")
	}
	if !IsPublicError(ErrTorrentDNE) {
		t.Fatal("NotFoundError should be public")
	}
	if !IsPublicError(ErrInvalidConnectionID) {
		t.Fatal("ProtocolError should be public")
	}
	if IsPublicError(nil) {
		t.Fatal("nil error should not be public")
	}
}
