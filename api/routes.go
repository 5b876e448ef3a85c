// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/majestrate/chihaya/stats"
	"github.com/majestrate/chihaya/tracker/models"
)

const jsonContentType = "application/json; charset=UTF-8"

func handleError(err error) (int, error) {
	if err == nil {
		return http.StatusOK, nil
	} else if _, ok := err.(models.NotFoundError); ok {
		stats.RecordEvent(stats.ClientError)
		return http.StatusNotFound, err
	} else if models.IsPublicError(err) {
		stats.RecordEvent(stats.ClientError)
		return http.StatusBadRequest, err
	}
	return http.StatusInternalServerError, err
}

func writeJSON(w http.ResponseWriter, v interface{}) (int, error) {
	w.Header().Set("Content-Type", jsonContentType)
	return handleError(json.NewEncoder(w).Encode(v))
}

// check is a liveness probe for the admin API.
func (s *Server) check(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	_, err := w.Write([]byte("STILL-ALIVE"))
	return handleError(err)
}

// stats returns a snapshot of the statistics sink, optionally flattened
// for dashboards (?flatten) and pretty-printed (?pretty).
func (s *Server) stats(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	w.Header().Set("Content-Type", jsonContentType)
	query := r.URL.Query()

	var val interface{} = s.tracker.Stats
	if _, flatten := query["flatten"]; flatten {
		val = s.tracker.Stats.Flattened()
	}

	if _, pretty := query["pretty"]; pretty {
		buf, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			return handleError(err)
		}
		_, err = w.Write(buf)
		return handleError(err)
	}
	return handleError(json.NewEncoder(w).Encode(val))
}

func parseLifetime(r *http.Request) time.Duration {
	secs, err := strconv.Atoi(r.URL.Query().Get("lifetime"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// generateKey mints a fresh authentication key (§4.2).
func (s *Server) generateKey(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	key, err := s.tracker.Keys.Generate(parseLifetime(r))
	if err != nil {
		return handleError(err)
	}
	return writeJSON(w, key)
}

// addKey installs a caller-supplied key (§4.2).
func (s *Server) addKey(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	key, err := s.tracker.Keys.Add(p.ByName("key"), parseLifetime(r))
	if err != nil {
		return handleError(err)
	}
	return writeJSON(w, key)
}

// deleteKey removes a key from the store.
func (s *Server) deleteKey(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	if err := s.tracker.Keys.Delete(p.ByName("key")); err != nil {
		return handleError(err)
	}
	return http.StatusOK, nil
}

// reloadKeys reloads the in-memory key set from persistent storage.
func (s *Server) reloadKeys(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	if err := s.tracker.Keys.Reload(); err != nil {
		return handleError(err)
	}
	return http.StatusOK, nil
}

func parseInfoHash(p httprouter.Params) (models.InfoHash, error) {
	return models.InfoHashFromHex(p.ByName("infohash"))
}

// addWhitelist whitelists an infohash (§4.3).
func (s *Server) addWhitelist(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	ih, err := parseInfoHash(p)
	if err != nil {
		return handleError(err)
	}
	if err := s.tracker.List.Add(ih); err != nil {
		return handleError(err)
	}
	return http.StatusOK, nil
}

// removeWhitelist de-whitelists an infohash.
func (s *Server) removeWhitelist(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	ih, err := parseInfoHash(p)
	if err != nil {
		return handleError(err)
	}
	if err := s.tracker.List.Remove(ih); err != nil {
		return handleError(err)
	}
	return http.StatusOK, nil
}

// reloadWhitelist reloads the in-memory whitelist from persistent storage.
func (s *Server) reloadWhitelist(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	if err := s.tracker.List.Reload(); err != nil {
		return handleError(err)
	}
	return http.StatusOK, nil
}

// paginated lists torrents in deterministic order (§4.5).
func (s *Server) paginated(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = 50
	}
	return writeJSON(w, s.tracker.Swarms.Paginated(offset, limit))
}

// getEntry returns a single torrent's current scrape-style stats.
func (s *Server) getEntry(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	ih, err := parseInfoHash(p)
	if err != nil {
		return handleError(err)
	}
	entryStats, ok := s.tracker.Swarms.Get(ih)
	if !ok {
		return handleError(models.ErrTorrentDNE)
	}
	return writeJSON(w, entryStats)
}

// metrics returns swarm-wide aggregate totals.
func (s *Server) metrics(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	return writeJSON(w, s.tracker.Swarms.Metrics())
}
