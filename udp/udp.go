// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package udp implements a BitTorrent tracker over the UDP protocol as per
// BEP 15.
package udp

import (
	"net"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pushrax/bufferpool"

	"github.com/majestrate/chihaya/config"
	"github.com/majestrate/chihaya/stats"
	"github.com/majestrate/chihaya/tracker"
)

// maxPacketSize is the largest UDP packet the pipeline will read; BEP-15
// clients never send more (§4.11).
const maxPacketSize = 1496

// Server serves the UDP BitTorrent tracker protocol.
type Server struct {
	config  *config.Config
	tracker *tracker.Tracker

	conn    *net.UDPConn
	pool    *bufferpool.BufferPool
	closing chan struct{}
	wg      sync.WaitGroup
}

// NewServer returns a new UDP server for the given configuration and
// tracker.
func NewServer(cfg *config.Config, tkr *tracker.Tracker) *Server {
	return &Server{
		config:  cfg,
		tracker: tkr,
		pool:    bufferpool.New(64, maxPacketSize),
		closing: make(chan struct{}),
	}
}

// Setup binds the UDP listening socket.
func (s *Server) Setup() error {
	addr, err := net.ResolveUDPAddr("udp", s.config.UDPConfig.ListenAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// Serve reads and dispatches UDP packets until Stop is called.
func (s *Server) Serve() {
	glog.Infof("Serving UDP on %s", s.conn.LocalAddr())

	s.wg.Add(1)
	defer s.wg.Done()

	for {
		select {
		case <-s.closing:
			glog.Info("UDP server shut down cleanly")
			return
		default:
		}

		buf := s.pool.Take()
		buf.Grow(maxPacketSize)
		packet := buf.Bytes()[:maxPacketSize]

		n, addr, err := s.conn.ReadFromUDP(packet)
		if err != nil {
			s.pool.Give(buf)
			if netErr, ok := err.(net.Error); ok && netErr.Temporary() {
				continue
			}
			select {
			case <-s.closing:
			default:
				glog.Errorf("udp: read error: %s", err)
			}
			return
		}
		if n == 0 {
			s.pool.Give(buf)
			continue
		}

		s.wg.Add(1)
		go func(data []byte, addr *net.UDPAddr) {
			defer s.wg.Done()
			defer s.pool.Give(buf)

			start := time.Now()
			s.handlePacket(data, addr)
			stats.RecordTiming(time.Since(start))
			stats.RecordEvent(stats.HandledRequest)
		}(append([]byte(nil), packet[:n]...), addr)
	}
}

// Stop closes the UDP socket and waits for in-flight packets to finish.
func (s *Server) Stop() {
	close(s.closing)
	if s.conn != nil {
		s.conn.SetReadDeadline(time.Now())
	}
	s.wg.Wait()
	if s.conn != nil {
		s.conn.Close()
	}
}
