// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package http

import (
	"bytes"
	"net/http"

	"github.com/chihaya/bencode"

	"github.com/majestrate/chihaya/tracker"
	"github.com/majestrate/chihaya/tracker/models"
)

// Writer implements bencoded HTTP tracker responses per BEP 3/BEP 23
// (§4.12).
type Writer struct {
	http.ResponseWriter
}

// WriteError writes a bencode dict with a failure reason.
func (w *Writer) WriteError(err error) error {
	w.Header().Set("Content-Type", "text/plain")
	return bencode.NewEncoder(w).Encode(bencode.Dict{
		"failure reason": err.Error(),
	})
}

// WriteAnnounce writes a bencode dict representation of an announce
// response, compact or non-compact per req.Compact.
func (w *Writer) WriteAnnounce(req *announceRequest, data tracker.AnnounceData) error {
	peers := trimPeers(data.Peers, req.NumWant)

	dict := bencode.Dict{
		"complete":     data.Stats.Seeders,
		"incomplete":   data.Stats.Leechers,
		"interval":     int(data.Interval.Seconds()),
		"min interval": int(data.IntervalMin.Seconds()),
	}

	if req.Compact {
		dict["peers"] = compactPeers4(peers)
		dict["peers6"] = compactPeers6(peers)
	} else {
		dict["peers"] = peerDicts(peers)
	}

	w.Header().Set("Content-Type", "text/plain")
	return bencode.NewEncoder(w).Encode(dict)
}

func trimPeers(peers models.PeerList, numWant int) models.PeerList {
	if numWant <= 0 || numWant >= len(peers) {
		return peers
	}
	return peers[:numWant]
}

func compactPeers4(peers models.PeerList) []byte {
	var buf bytes.Buffer
	for _, peer := range peers {
		ip4 := peer.IP.To4()
		if ip4 == nil {
			continue
		}
		buf.Write(ip4)
		buf.WriteByte(byte(peer.Port >> 8))
		buf.WriteByte(byte(peer.Port & 0xff))
	}
	return buf.Bytes()
}

func compactPeers6(peers models.PeerList) []byte {
	var buf bytes.Buffer
	for _, peer := range peers {
		if peer.IP.To4() != nil {
			continue
		}
		ip16 := peer.IP.To16()
		if ip16 == nil {
			continue
		}
		buf.Write(ip16)
		buf.WriteByte(byte(peer.Port >> 8))
		buf.WriteByte(byte(peer.Port & 0xff))
	}
	return buf.Bytes()
}

func peerDicts(peers models.PeerList) []bencode.Dict {
	out := make([]bencode.Dict, 0, len(peers))
	for _, peer := range peers {
		out = append(out, bencode.Dict{
			"peer id": peer.ID.String(),
			"ip":      peer.IP.String(),
			"port":    peer.Port,
		})
	}
	return out
}

func scrapeFilesDict(infoHashes []models.InfoHash, stats []models.ScrapeStats) bencode.Dict {
	files := bencode.NewDict()
	for i, ih := range infoHashes {
		files[ih.RawString()] = bencode.Dict{
			"complete":   stats[i].Complete,
			"incomplete": stats[i].Incomplete,
			"downloaded": stats[i].Downloaded,
		}
	}
	return files
}

// WriteScrape writes a bencode dict representation of a scrape response
// (§4.12).
func (w *Writer) WriteScrape(infoHashes []models.InfoHash, stats []models.ScrapeStats) error {
	w.Header().Set("Content-Type", "text/plain")
	return bencode.NewEncoder(w).Encode(bencode.Dict{
		"files": scrapeFilesDict(infoHashes, stats),
	})
}
