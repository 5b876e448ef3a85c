// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package api implements the JSON admin API for managing authentication
// keys, the infohash whitelist, and reading swarm statistics.
package api

import (
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/tylerb/graceful"

	"github.com/majestrate/chihaya/config"
	"github.com/majestrate/chihaya/tracker"
)

// Server serves the JSON admin API.
type Server struct {
	config   *config.Config
	tracker  *tracker.Tracker
	grace    *graceful.Server
	stopping bool
}

// NewServer returns a new admin API server for the given configuration
// and tracker.
func NewServer(cfg *config.Config, tkr *tracker.Tracker) *Server {
	return &Server{config: cfg, tracker: tkr}
}

func newRouter(s *Server) *httprouter.Router {
	r := httprouter.New()

	r.GET("/check", makeHandler(s.check))
	r.GET("/stats", makeHandler(s.stats))

	r.POST("/keys/generate", makeHandler(s.generateKey))
	r.PUT("/keys/:key", makeHandler(s.addKey))
	r.DELETE("/keys/:key", makeHandler(s.deleteKey))
	r.POST("/keys/reload", makeHandler(s.reloadKeys))

	r.PUT("/whitelist/:infohash", makeHandler(s.addWhitelist))
	r.DELETE("/whitelist/:infohash", makeHandler(s.removeWhitelist))
	r.POST("/whitelist/reload", makeHandler(s.reloadWhitelist))

	r.GET("/torrents", makeHandler(s.paginated))
	r.GET("/torrents/:infohash", makeHandler(s.getEntry))
	r.GET("/metrics", makeHandler(s.metrics))

	return r
}

type responseHandler func(http.ResponseWriter, *http.Request, httprouter.Params) (int, error)

func makeHandler(handler responseHandler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code, err := handler(w, r, p)
		if err != nil {
			http.Error(w, err.Error(), code)
			glog.Errorf("[API] %s %s -> %d: %s", r.Method, r.URL.Path, code, err)
		}
	}
}

// Setup satisfies the server interface; the admin API has no setup work
// beyond what NewServer already performed.
func (s *Server) Setup() error { return nil }

// Serve runs the admin API server, blocking until shutdown.
func (s *Server) Serve() {
	router := newRouter(s)
	serv := &http.Server{
		Handler:      router,
		ReadTimeout:  s.config.APIConfig.ReadTimeout.Duration,
		WriteTimeout: s.config.APIConfig.WriteTimeout.Duration,
	}

	l, err := net.Listen("tcp", s.config.APIConfig.ListenAddr)
	if err != nil {
		glog.Error(err)
		return
	}

	s.grace = &graceful.Server{Server: serv, Timeout: 10 * time.Second}
	glog.Infof("Serving admin API on %s", s.config.APIConfig.ListenAddr)
	if err := s.grace.Serve(l); err != nil {
		glog.Error(err)
	}
	glog.Info("Admin API server shut down cleanly")
}

// Stop cleanly shuts down the server.
func (s *Server) Stop() {
	if !s.stopping && s.grace != nil {
		s.stopping = true
		s.grace.Stop(s.grace.Timeout)
	}
}
