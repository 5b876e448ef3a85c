// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package http

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/majestrate/chihaya/stats"
	"github.com/majestrate/chihaya/tracker/models"
)

func handleTorrentError(err error, w *Writer) (int, error) {
	if err == nil {
		return http.StatusOK, nil
	} else if models.IsPublicError(err) {
		stats.RecordEvent(stats.ClientError)
		w.WriteError(err)
		return http.StatusOK, nil
	}

	return http.StatusInternalServerError, err
}

func (s *Server) serveAnnounce(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	writer := &Writer{w}

	req, err := s.newAnnounce(r, p)
	if err != nil {
		return handleTorrentError(err, writer)
	}

	data, err := s.tracker.Announce(req.InfoHash, req.Peer, req.Key, false)
	if err != nil {
		return handleTorrentError(err, writer)
	}

	return handleTorrentError(writer.WriteAnnounce(req, data), writer)
}

func (s *Server) serveScrape(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	writer := &Writer{w}

	req, err := s.newScrape(r, p)
	if err != nil {
		return handleTorrentError(err, writer)
	}

	stats, err := s.tracker.Scrape(req.InfoHashes, req.Key, req.ObservedIP, false)
	if err != nil {
		return handleTorrentError(err, writer)
	}

	return handleTorrentError(writer.WriteScrape(req.InfoHashes, stats), writer)
}

func (s *Server) serveHealthCheck(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	w.Header().Set("Content-Type", "application/json")
	return http.StatusOK, json.NewEncoder(w).Encode(map[string]string{"status": "Ok"})
}
