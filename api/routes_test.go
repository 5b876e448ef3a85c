// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/majestrate/chihaya/config"
	"github.com/majestrate/chihaya/stats"
	"github.com/majestrate/chihaya/storage/noop"
	"github.com/majestrate/chihaya/tracker"
	"github.com/majestrate/chihaya/tracker/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig

	db, err := noop.New(config.DriverConfig{})
	if err != nil {
		t.Fatalf("noop.New: %s", err)
	}
	statsSink := stats.New(cfg.StatsConfig)
	t.Cleanup(statsSink.Close)

	tkr, err := tracker.New(cfg, db, statsSink)
	if err != nil {
		t.Fatalf("tracker.New: %s", err)
	}
	return NewServer(&cfg, tkr)
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	router := newRouter(s)
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCheck(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, "GET", "/check")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if rec.Body.String() != "STILL-ALIVE" {
		t.Fatalf("body = %q; want STILL-ALIVE", rec.Body.String())
	}
}

func TestGenerateAndDeleteKey(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "POST", "/keys/generate")
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d; want 200", rec.Code)
	}
	var key models.AuthKey
	if err := json.Unmarshal(rec.Body.Bytes(), &key); err != nil {
		t.Fatalf("decode key: %s", err)
	}
	if len(key.Key) != models.AuthKeyLen {
		t.Fatalf("len(key.Key) = %d; want %d", len(key.Key), models.AuthKeyLen)
	}

	rec = doRequest(s, "DELETE", "/keys/"+key.Key)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d; want 200", rec.Code)
	}
}

func TestAddAndRemoveWhitelist(t *testing.T) {
	s := newTestServer(t)

	ih := "0123456789abcdef0123456789abcdef01234567"

	rec := doRequest(s, "PUT", "/whitelist/"+ih)
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d; want 200, body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(s, "DELETE", "/whitelist/"+ih)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d; want 200", rec.Code)
	}
}

func TestAddWhitelistRejectsMalformedInfoHash(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, "PUT", "/whitelist/not-a-valid-infohash")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

func TestGetEntryMissingTorrentReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	ih := "000000000000000000000000000000000000000a"
	rec := doRequest(s, "GET", "/torrents/"+ih)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", rec.Code)
	}
}

func TestPaginatedAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "GET", "/torrents")
	if rec.Code != http.StatusOK {
		t.Fatalf("torrents status = %d; want 200", rec.Code)
	}

	rec = doRequest(s, "GET", "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d; want 200", rec.Code)
	}
	var m models.Metrics
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode metrics: %s", err)
	}
}

func TestReloadKeysAndWhitelist(t *testing.T) {
	s := newTestServer(t)

	if rec := doRequest(s, "POST", "/keys/reload"); rec.Code != http.StatusOK {
		t.Fatalf("keys/reload status = %d; want 200", rec.Code)
	}
	if rec := doRequest(s, "POST", "/whitelist/reload"); rec.Code != http.StatusOK {
		t.Fatalf("whitelist/reload status = %d; want 200", rec.Code)
	}
}
