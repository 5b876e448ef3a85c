// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package http implements a BitTorrent tracker over the HTTP protocol as per
// BEP 3.
package http

import (
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/tylerb/graceful"
	"golang.org/x/net/netutil"

	"github.com/majestrate/chihaya/config"
	"github.com/majestrate/chihaya/stats"
	"github.com/majestrate/chihaya/tracker"
)

// ResponseHandler is an HTTP handler that returns a status code.
type ResponseHandler func(http.ResponseWriter, *http.Request, httprouter.Params) (int, error)

// Server represents an HTTP serving torrent tracker.
type Server struct {
	addr     string
	config   *config.Config
	tracker  *tracker.Tracker
	grace    *graceful.Server
	stopping bool
}

// makeHandler wraps our ResponseHandlers while timing requests, collecting
// stats, logging, and handling errors.
func makeHandler(handler ResponseHandler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		start := time.Now()
		httpCode, err := handler(w, r, p)
		duration := time.Since(start)

		var msg string
		if err != nil {
			msg = err.Error()
		} else if httpCode != http.StatusOK {
			msg = http.StatusText(httpCode)
		}

		if len(msg) > 0 {
			http.Error(w, msg, httpCode)
			stats.RecordEvent(stats.ClientError)
		}

		if len(msg) > 0 || glog.V(2) {
			reqString := r.URL.Path + " " + r.RemoteAddr
			if glog.V(3) {
				reqString = r.URL.RequestURI() + " " + r.RemoteAddr
			}

			if len(msg) > 0 {
				glog.Errorf("[HTTP - %9s] %s (%d - %s)", duration, reqString, httpCode, msg)
			} else {
				glog.Infof("[HTTP - %9s] %s (%d)", duration, reqString, httpCode)
			}
		}

		stats.RecordEvent(stats.HandledRequest)
		stats.RecordTiming(duration)
	}
}

func (s *Server) ServerAddr() string {
	return s.addr
}

// newRouter returns a router with all the routes (§4.12). The key path
// segment is always accepted; whether it is required is decided per
// request by the tracker's authorization matrix (§4.3).
func newRouter(s *Server) *httprouter.Router {
	r := httprouter.New()

	r.GET("/announce", makeHandler(s.serveAnnounce))
	r.GET("/announce/:key", makeHandler(s.serveAnnounce))
	r.GET("/scrape", makeHandler(s.serveScrape))
	r.GET("/scrape/:key", makeHandler(s.serveScrape))
	r.GET("/health_check", makeHandler(s.serveHealthCheck))
	return r
}

func (s *Server) Setup() error { return nil }

// Serve runs an HTTP server, blocking until the server has shut down.
func (s *Server) Serve() {
	router := newRouter(s)
	serv := &http.Server{
		Handler:      router,
		ReadTimeout:  s.config.HTTPConfig.ReadTimeout.Duration,
		WriteTimeout: s.config.HTTPConfig.WriteTimeout.Duration,
	}

	l, err := net.Listen("tcp", s.config.HTTPConfig.ListenAddr)
	if err != nil {
		glog.Error(err)
		return
	}
	if s.config.NumListeners > 0 {
		l = netutil.LimitListener(l, s.config.NumListeners)
	}

	s.addr = l.Addr().String()
	s.grace = &graceful.Server{Server: serv, Timeout: 10 * time.Second}

	glog.Infof("Serving HTTP on %s", s.addr)
	err = s.grace.Serve(l)
	if err != nil {
		glog.Error(err)
	}
	glog.Info("HTTP server shut down cleanly")
}

// Stop cleanly shuts down the server.
func (s *Server) Stop() {
	if !s.stopping && s.grace != nil {
		s.stopping = true
		s.grace.Stop(s.grace.Timeout)
	}
}

// NewServer returns a new HTTP server for a given configuration and tracker.
func NewServer(cfg *config.Config, tkr *tracker.Tracker) *Server {
	return &Server{
		config:  cfg,
		tracker: tkr,
	}
}
