// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/majestrate/chihaya/config"
	"github.com/majestrate/chihaya/stats"
	"github.com/majestrate/chihaya/storage/noop"
	"github.com/majestrate/chihaya/tracker"
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

func doRequest(s *Server, target string) *httptest.ResponseRecorder {
	router := newRouter(s)
	req := httptest.NewRequest("GET", target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestServeHealthCheck(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, "/health_check")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Ok") {
		t.Fatalf("body = %q; want it to contain Ok", rec.Body.String())
	}
}

func TestServeAnnounceSuccess(t *testing.T) {
	s := newTestServer(t)
	target := "/announce?info_hash=" + strings.Repeat("A", 20) +
		"&peer_id=" + strings.Repeat("B", 20) +
		"&port=6881&uploaded=0&downloaded=0&left=0&event=started"

	rec := doRequest(s, target)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200, body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() == 0 {
		t.Fatal("announce response body is empty")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("Content-Type = %q; want text/plain", ct)
	}
}

func TestServeAnnounceMissingInfoHashYieldsBencodedFailure(t *testing.T) {
	s := newTestServer(t)
	target := "/announce?peer_id=" + strings.Repeat("B", 20) + "&port=6881"

	rec := doRequest(s, target)
	// Public errors are reported as a bencoded failure dict with HTTP 200,
	// per BEP 3 (§4.12) — not surfaced as an HTTP error status.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "failure reason") {
		t.Fatalf("body = %q; want a bencoded failure reason", rec.Body.String())
	}
}

func TestServeScrapeSuccess(t *testing.T) {
	s := newTestServer(t)
	target := "/scrape?info_hash=" + strings.Repeat("A", 20)

	rec := doRequest(s, target)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200, body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "files") {
		t.Fatalf("body = %q; want a bencoded files dict", rec.Body.String())
	}
}

func TestServeScrapeMissingInfoHashYieldsBencodedFailure(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, "/scrape")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "failure reason") {
		t.Fatalf("body = %q; want a bencoded failure reason", rec.Body.String())
	}
}

func TestObservedIPUsesRemoteAddrByDefault(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/announce", nil)
	req.RemoteAddr = "198.51.100.7:54321"

	ip, err := s.observedIP(req)
	if err != nil {
		t.Fatalf("observedIP: %s", err)
	}
	if ip.String() != "198.51.100.7" {
		t.Fatalf("observedIP = %v; want 198.51.100.7", ip)
	}
}

func TestObservedIPRequiresForwardedHeaderBehindProxy(t *testing.T) {
	s := newTestServer(t)
	s.config.OnReverseProxy = true

	req := httptest.NewRequest("GET", "/announce", nil)
	if _, err := s.observedIP(req); err == nil {
		t.Fatal("observedIP did not reject a missing X-Forwarded-For header")
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 198.51.100.7")
	ip, err := s.observedIP(req)
	if err != nil {
		t.Fatalf("observedIP: %s", err)
	}
	if ip.String() != "198.51.100.7" {
		t.Fatalf("observedIP = %v; want the right-most entry 198.51.100.7", ip)
	}
}
