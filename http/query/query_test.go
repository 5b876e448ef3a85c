// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package query

import "testing"

func TestNewParsesSimpleParams(t *testing.T) {
	q, err := New("port=6881&uploaded=0&left=100")
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	if q.Params["port"] != "6881" {
		t.Fatalf("port = %q; want 6881", q.Params["port"])
	}
	left, err := q.Uint64("left")
	if err != nil {
		t.Fatalf("Uint64(left): %s", err)
	}
	if left != 100 {
		t.Fatalf("left = %d; want 100", left)
	}
}

func TestNewPercentDecodesBinaryParams(t *testing.T) {
	// %00%01%02 must decode to the raw bytes, not be treated as UTF-8.
	q, err := New("info_hash=%00%01%02")
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	want := string([]byte{0, 1, 2})
	if q.Params["info_hash"] != want {
		t.Fatalf("info_hash = %q; want %q", q.Params["info_hash"], want)
	}
}

func TestNewAccumulatesRepeatedInfoHash(t *testing.T) {
	q, err := New("info_hash=aa&info_hash=bb&info_hash=cc")
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	if len(q.Infohashes) != 3 {
		t.Fatalf("len(Infohashes) = %d; want 3", len(q.Infohashes))
	}
	if q.Infohashes[0] != "aa" || q.Infohashes[1] != "bb" || q.Infohashes[2] != "cc" {
		t.Fatalf("Infohashes = %v; want [aa bb cc] in order", q.Infohashes)
	}
}

func TestNewLowercasesKeys(t *testing.T) {
	q, err := New("PORT=6881")
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	if _, ok := q.Params["port"]; !ok {
		t.Fatal("New did not lowercase the parameter key")
	}
}

func TestNewRejectsTruncatedPercentSequence(t *testing.T) {
	if _, err := New("info_hash=%0"); err == nil {
		t.Fatal("New accepted a truncated %-sequence")
	}
}

func TestNewRejectsInvalidHexInPercentSequence(t *testing.T) {
	if _, err := New("info_hash=%zz"); err == nil {
		t.Fatal("New accepted a non-hex %-sequence")
	}
}

func TestNewSkipsEmptyPairs(t *testing.T) {
	q, err := New("port=6881&&left=0")
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	if len(q.Params) != 2 {
		t.Fatalf("len(Params) = %d; want 2", len(q.Params))
	}
}

func TestUint64MissingKeyDefaultsToZero(t *testing.T) {
	q, err := New("port=6881")
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	got, err := q.Uint64("left")
	if err != nil {
		t.Fatalf("Uint64: %s", err)
	}
	if got != 0 {
		t.Fatalf("Uint64(missing) = %d; want 0", got)
	}
}
