// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package query implements a parser for the percent-encoded query strings
// used by the BitTorrent HTTP tracker protocol (BEP 3). Unlike
// net/url.ParseQuery, it preserves raw (non-UTF8) bytes for binary
// parameters such as info_hash and peer_id, and it accumulates repeated
// info_hash keys in order for scrape requests.
package query

import (
	"strconv"
	"strings"

	"github.com/majestrate/chihaya/tracker/models"
)

// Query is a parsed HTTP tracker query string.
type Query struct {
	Params     map[string]string
	Infohashes []string
}

// New parses a raw query string (the part of a URL after '?').
func New(raw string) (*Query, error) {
	q := &Query{
		Params: make(map[string]string),
	}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}

		eq := strings.IndexByte(pair, '=')
		var key, value string
		if eq < 0 {
			key = pair
		} else {
			key = pair[:eq]
			value = pair[eq+1:]
		}

		key, err := unescape(key)
		if err != nil {
			return nil, models.ErrMalformedRequest
		}
		value, err = unescape(value)
		if err != nil {
			return nil, models.ErrMalformedRequest
		}

		key = strings.ToLower(key)
		if key == "info_hash" {
			q.Infohashes = append(q.Infohashes, value)
		}
		q.Params[key] = value
	}

	return q, nil
}

// unescape percent-decodes s, treating '+' literally (the BitTorrent
// tracker protocol does not use it for spaces).
func unescape(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%':
			if i+2 >= len(s) {
				return "", models.ErrMalformedRequest
			}
			n, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", models.ErrMalformedRequest
			}
			b.WriteByte(byte(n))
			i += 2
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

// Uint64 parses the named parameter as a base-10 uint64, defaulting to 0
// if the parameter is absent.
func (q *Query) Uint64(key string) (uint64, error) {
	str, exists := q.Params[key]
	if !exists {
		return 0, nil
	}
	return strconv.ParseUint(str, 10, 64)
}
