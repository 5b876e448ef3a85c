// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package udp

import (
	"bytes"
	"encoding/binary"
	"net"

	"github.com/golang/glog"

	"github.com/majestrate/chihaya/stats"
	"github.com/majestrate/chihaya/tracker/models"
)

// The BEP-15 wire constants (§4.11).
const (
	connectMagic int64 = 0x41727101980

	actionConnect  int32 = 0
	actionAnnounce int32 = 1
	actionScrape   int32 = 2
	actionError    int32 = 3

	connectRequestLen  = 16
	announceRequestLen = 98
	scrapeHeaderLen    = 16
)

// handlePacket dispatches a single UDP datagram per §4.11.
func (s *Server) handlePacket(packet []byte, addr *net.UDPAddr) {
	if len(packet) < connectRequestLen {
		return // too short to recover a transaction id; drop silently
	}

	action := int32(binary.BigEndian.Uint32(packet[8:12]))
	txID := packet[12:16]

	if action == actionConnect {
		s.handleConnect(packet, txID, addr)
		return
	}

	if len(packet) < scrapeHeaderLen {
		s.writeError(addr, txID, models.ErrMalformedRequest)
		return
	}

	connID := int64(binary.BigEndian.Uint64(packet[0:8]))
	if !s.tracker.ConnIDs.Verify(connID, addr) {
		s.writeError(addr, txID, models.ErrInvalidConnectionID)
		return
	}

	switch action {
	case actionAnnounce:
		s.handleAnnounce(packet, txID, addr)
	case actionScrape:
		s.handleScrape(packet, txID, addr)
	default:
		s.writeError(addr, txID, models.ErrMalformedRequest)
	}
}

func family(ip net.IP) models.AddressFamily {
	if ip.To4() != nil {
		return models.IPv4
	}
	return models.IPv6
}

func (s *Server) handleConnect(packet []byte, txID []byte, addr *net.UDPAddr) {
	if len(packet) != connectRequestLen {
		s.writeError(addr, txID, models.ErrMalformedRequest)
		return
	}
	magic := int64(binary.BigEndian.Uint64(packet[0:8]))
	if magic != connectMagic {
		s.writeError(addr, txID, models.ErrMalformedRequest)
		return
	}

	connID := s.tracker.ConnIDs.Issue(addr)
	s.tracker.RecordConnect(family(addr.IP))

	resp := make([]byte, 16)
	binary.BigEndian.PutUint32(resp[0:4], uint32(actionConnect))
	copy(resp[4:8], txID)
	binary.BigEndian.PutUint64(resp[8:16], uint64(connID))
	s.write(addr, resp)
}

func (s *Server) handleAnnounce(packet []byte, txID []byte, addr *net.UDPAddr) {
	if len(packet) != announceRequestLen {
		s.writeError(addr, txID, models.ErrMalformedRequest)
		return
	}

	ih, err := models.NewInfoHash(packet[16:36])
	if err != nil {
		s.writeError(addr, txID, err)
		return
	}
	peerID, err := models.NewPeerID(packet[36:56])
	if err != nil {
		s.writeError(addr, txID, err)
		return
	}

	downloaded := binary.BigEndian.Uint64(packet[56:64])
	left := binary.BigEndian.Uint64(packet[64:72])
	uploaded := binary.BigEndian.Uint64(packet[72:80])
	eventCode := binary.BigEndian.Uint32(packet[80:84])
	ipField := binary.BigEndian.Uint32(packet[84:88])
	numWant := int32(binary.BigEndian.Uint32(packet[92:96]))
	port := binary.BigEndian.Uint16(packet[96:98])

	peerIP := addr.IP
	if ipField != 0 {
		overridden := make(net.IP, 4)
		binary.BigEndian.PutUint32(overridden, ipField)
		peerIP = overridden
	}

	peer := models.Peer{
		ID:         peerID,
		IP:         peerIP,
		Port:       port,
		Uploaded:   uploaded,
		Downloaded: downloaded,
		Left:       left,
		Event:      udpEvent(eventCode),
	}

	data, err := s.tracker.Announce(ih, peer, "", true)
	if err != nil {
		s.writeError(addr, txID, err)
		return
	}

	peers := data.Peers
	if numWant >= 0 && int(numWant) < len(peers) {
		peers = peers[:numWant]
	}

	var buf bytes.Buffer
	var header [20]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(actionAnnounce))
	copy(header[4:8], txID)
	binary.BigEndian.PutUint32(header[8:12], uint32(data.Interval.Seconds()))
	binary.BigEndian.PutUint32(header[12:16], uint32(data.Stats.Leechers))
	binary.BigEndian.PutUint32(header[16:20], uint32(data.Stats.Seeders))
	buf.Write(header[:])

	for _, p := range peers {
		writeCompactPeer(&buf, p)
	}

	s.write(addr, buf.Bytes())
}

// udpEvent maps a BEP-15 announce event code to a models.Event
// (0=None,1=Completed,2=Started,3=Stopped per §4.11 — note this ordering
// differs from the HTTP protocol's event strings).
func udpEvent(code uint32) models.Event {
	switch code {
	case 1:
		return models.Completed
	case 2:
		return models.Started
	case 3:
		return models.Stopped
	default:
		return models.None
	}
}

func writeCompactPeer(buf *bytes.Buffer, p models.Peer) {
	if ip4 := p.IP.To4(); ip4 != nil {
		buf.Write(ip4)
	} else {
		buf.Write(p.IP.To16())
	}
	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], p.Port)
	buf.Write(portBuf[:])
}

func (s *Server) handleScrape(packet []byte, txID []byte, addr *net.UDPAddr) {
	body := packet[scrapeHeaderLen:]
	if len(body)%models.InfoHashLen != 0 {
		s.writeError(addr, txID, models.ErrMalformedRequest)
		return
	}

	count := len(body) / models.InfoHashLen
	if count > models.MaxScrapeInfoHashes {
		s.writeError(addr, txID, models.ErrExceededInfoHashLimit)
		return
	}

	hashes := make([]models.InfoHash, count)
	for i := 0; i < count; i++ {
		ih, err := models.NewInfoHash(body[i*models.InfoHashLen : (i+1)*models.InfoHashLen])
		if err != nil {
			s.writeError(addr, txID, err)
			return
		}
		hashes[i] = ih
	}

	results, err := s.tracker.Scrape(hashes, "", addr.IP, true)
	if err != nil {
		s.writeError(addr, txID, err)
		return
	}

	var buf bytes.Buffer
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(actionScrape))
	copy(header[4:8], txID)
	buf.Write(header[:])

	for _, r := range results {
		var triple [12]byte
		binary.BigEndian.PutUint32(triple[0:4], uint32(r.Complete))
		binary.BigEndian.PutUint32(triple[4:8], uint32(r.Downloaded))
		binary.BigEndian.PutUint32(triple[8:12], uint32(r.Incomplete))
		buf.Write(triple[:])
	}

	s.write(addr, buf.Bytes())
}

func (s *Server) writeError(addr *net.UDPAddr, txID []byte, err error) {
	stats.RecordEvent(stats.ClientError)

	var buf bytes.Buffer
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(actionError))
	copy(header[4:8], txID)
	buf.Write(header[:])
	buf.WriteString(err.Error())
	s.write(addr, buf.Bytes())
}

func (s *Server) write(addr *net.UDPAddr, payload []byte) {
	if _, err := s.conn.WriteToUDP(payload, addr); err != nil {
		glog.Errorf("udp: write to %s failed: %s", addr, err)
	}
}
