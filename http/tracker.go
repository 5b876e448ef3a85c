// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/majestrate/chihaya/http/query"
	"github.com/majestrate/chihaya/tracker/models"
)

type announceRequest struct {
	InfoHash models.InfoHash
	Peer     models.Peer
	Key      string
	Compact  bool
	NumWant  int
}

type scrapeRequest struct {
	InfoHashes []models.InfoHash
	Key        string
	ObservedIP net.IP
}

// newAnnounce parses an HTTP request into an announceRequest (§4.12).
func (s *Server) newAnnounce(r *http.Request, p httprouter.Params) (*announceRequest, error) {
	q, err := query.New(r.URL.RawQuery)
	if err != nil {
		return nil, err
	}

	rawHash, exists := q.Params["info_hash"]
	if !exists {
		return nil, models.ErrMalformedRequest
	}
	ih, err := models.NewInfoHash([]byte(rawHash))
	if err != nil {
		return nil, err
	}

	rawPeerID, exists := q.Params["peer_id"]
	if !exists {
		return nil, models.ErrMalformedRequest
	}
	peerID, err := models.NewPeerID([]byte(rawPeerID))
	if err != nil {
		return nil, err
	}

	port, err := q.Uint64("port")
	if err != nil {
		return nil, models.ErrMalformedRequest
	}

	left, err := q.Uint64("left")
	if err != nil {
		return nil, models.ErrMalformedRequest
	}

	downloaded, err := q.Uint64("downloaded")
	if err != nil {
		return nil, models.ErrMalformedRequest
	}

	uploaded, err := q.Uint64("uploaded")
	if err != nil {
		return nil, models.ErrMalformedRequest
	}

	ip, err := s.observedIP(r)
	if err != nil {
		return nil, err
	}

	compact := q.Params["compact"] == "1"
	numWant := requestedPeerCount(q, s.config.NumWantFallback)

	peer := models.Peer{
		ID:         peerID,
		IP:         ip,
		Port:       uint16(port),
		Uploaded:   uploaded,
		Downloaded: downloaded,
		Left:       left,
		Event:      models.NewEvent(q.Params["event"]),
	}

	return &announceRequest{
		InfoHash: ih,
		Peer:     peer,
		Key:      p.ByName("key"),
		Compact:  compact,
		NumWant:  numWant,
	}, nil
}

// newScrape parses an HTTP request into a scrapeRequest (§4.12).
func (s *Server) newScrape(r *http.Request, p httprouter.Params) (*scrapeRequest, error) {
	q, err := query.New(r.URL.RawQuery)
	if err != nil {
		return nil, err
	}

	if len(q.Infohashes) == 0 {
		return nil, models.ErrMalformedRequest
	}
	if len(q.Infohashes) > models.MaxScrapeInfoHashes {
		return nil, models.ErrExceededInfoHashLimit
	}

	hashes := make([]models.InfoHash, 0, len(q.Infohashes))
	for _, raw := range q.Infohashes {
		ih, err := models.NewInfoHash([]byte(raw))
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, ih)
	}

	ip, err := s.observedIP(r)
	if err != nil {
		return nil, err
	}

	return &scrapeRequest{
		InfoHashes: hashes,
		Key:        p.ByName("key"),
		ObservedIP: ip,
	}, nil
}

// observedIP resolves the client's observed IP per §4.8: the right-most
// entry of the RealIPHeader header (X-Forwarded-For by default) when
// behind a reverse proxy, otherwise the transport-level remote address.
func (s *Server) observedIP(r *http.Request) (net.IP, error) {
	if s.config.OnReverseProxy {
		header := s.config.RealIPHeader
		if header == "" {
			header = "X-Forwarded-For"
		}
		raw := r.Header.Get(header)
		if raw == "" {
			return nil, models.ErrMissingXForwardedFor
		}
		parts := strings.Split(raw, ",")
		last := strings.TrimSpace(parts[len(parts)-1])
		ip := net.ParseIP(last)
		if ip == nil {
			return nil, models.ErrMissingXForwardedFor
		}
		return ip, nil
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, models.ErrMalformedRequest
	}
	return ip, nil
}

// requestedPeerCount returns the wanted peer count or the provided
// fallback, used by the writer when trimming the compact/non-compact peer
// list.
func requestedPeerCount(q *query.Query, fallback int) int {
	if numWantStr, exists := q.Params["numwant"]; exists {
		numWant, err := strconv.Atoi(numWantStr)
		if err != nil {
			return fallback
		}
		return numWant
	}
	return fallback
}
