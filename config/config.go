// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package config implements the configuration for a BitTorrent tracker
package config

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// ErrMissingRequiredParam is used by drivers to indicate that an entry required
// to be within the DriverConfig.Params map is not present.
var ErrMissingRequiredParam = errors.New("A parameter that was required by a driver is not present")

// Duration wraps a time.Duration and adds JSON marshalling.
type Duration struct{ time.Duration }

// MarshalJSON transforms a duration into JSON.
func (d *Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON transform JSON into a Duration.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var str string
	err := json.Unmarshal(b, &str)
	d.Duration, err = time.ParseDuration(str)
	return err
}

// DriverConfig is the configuration used to connect to a storage.Driver.
type DriverConfig struct {
	Name   string            `json:"driver"`
	Params map[string]string `json:"params,omitempty"`
}

// Mode is the tracker's authentication/authorization mode (§4.3).
type Mode string

// The four tracker modes spec.md §4.3 defines.
const (
	Public        Mode = "public"
	Listed        Mode = "listed"
	Private       Mode = "private"
	PrivateListed Mode = "private_listed"
)

// RequiresAuth reports whether this mode demands a valid authentication key
// on every announce/scrape.
func (m Mode) RequiresAuth() bool {
	return m == Private || m == PrivateListed
}

// EnforcesWhitelist reports whether this mode restricts service to
// whitelisted infohashes.
func (m Mode) EnforcesWhitelist() bool {
	return m == Listed || m == PrivateListed
}

// NetConfig is the configuration used to tune networking behaviour.
type NetConfig struct {
	AllowIPSpoofing bool   `json:"allowIPSpoofing"`
	RealIPHeader    string `json:"realIPHeader"`
	NumListeners    int    `json:"listeners"`

	// OnReverseProxy takes the client IP from the right-most entry of the
	// RealIPHeader header (X-Forwarded-For when RealIPHeader is empty),
	// which must be present on every HTTP announce/scrape (§4.8). UDP never
	// runs behind a reverse proxy.
	OnReverseProxy bool `json:"onReverseProxy"`

	// ExternalIP substitutes for a loopback client address (§4.8, §4.9).
	ExternalIP net.IP `json:"externalIP,omitempty"`
}

// StatsConfig is the configuration used to record runtime statistics.
type StatsConfig struct {
	BufferSize        int      `json:"statsBufferSize"`
	IncludeMem        bool     `json:"includeMemStats"`
	VerboseMem        bool     `json:"verboseMemStats"`
	MemUpdateInterval Duration `json:"memStatsInterval"`
}

// TrackerConfig is the configuration for tracker functionality.
type TrackerConfig struct {
	Mode Mode `json:"mode"`

	Announce    Duration `json:"announce"`
	MinAnnounce Duration `json:"minAnnounce"`

	// PeerTimeout is how long a peer may go without announcing before the
	// periodic cleanup job evicts it (§4.14).
	PeerTimeout Duration `json:"peerTimeout"`

	// InactivePeerCleanupInterval is how often the cleanup job runs.
	InactivePeerCleanupInterval Duration `json:"inactivePeerCleanupInterval"`

	RemovePeerlessTorrents bool `json:"removePeerlessTorrents"`

	// PersistentTorrentCompletedStat enables write-through of the
	// downloaded counter on every change, and preserves empty-peer
	// entries with a nonzero counter across cleanup (§4.5, §4.14).
	PersistentTorrentCompletedStat bool `json:"persistentTorrentCompletedStat"`

	NumWantFallback int `json:"defaultNumWant"`

	// ConnectionIDLifetime is the span of one UDP connection-ID time
	// extent (§4.7); BEP-15 uses 60 seconds.
	ConnectionIDLifetime Duration `json:"connectionIDLifetime"`

	NetConfig
}

// APIConfig is the configuration for an HTTP JSON admin API server.
type APIConfig struct {
	ListenAddr     string   `json:"apiListenAddr"`
	RequestTimeout Duration `json:"apiRequestTimeout"`
	ReadTimeout    Duration `json:"apiReadTimeout"`
	WriteTimeout   Duration `json:"apiWriteTimeout"`
}

// HTTPConfig is the configuration for the HTTP protocol.
type HTTPConfig struct {
	ListenAddr     string   `json:"httpListenAddr"`
	RequestTimeout Duration `json:"httpRequestTimeout"`
	ReadTimeout    Duration `json:"httpReadTimeout"`
	WriteTimeout   Duration `json:"httpWriteTimeout"`
}

// UDPConfig is the configuration for the UDP protocol.
type UDPConfig struct {
	ListenAddr     string `json:"udpListenAddr"`
	ReadBufferSize int    `json:"udpReadBufferSize"`
}

// Config is the global configuration for an instance of Chihaya.
type Config struct {
	TrackerConfig
	APIConfig
	HTTPConfig
	UDPConfig
	DriverConfig
	StatsConfig
}

// DefaultConfig is a configuration that can be used as a fallback value.
var DefaultConfig = Config{
	TrackerConfig: TrackerConfig{
		Mode:                           Public,
		Announce:                       Duration{30 * time.Minute},
		MinAnnounce:                    Duration{15 * time.Minute},
		PeerTimeout:                    Duration{30 * time.Minute},
		InactivePeerCleanupInterval:    Duration{60 * time.Second},
		RemovePeerlessTorrents:         true,
		PersistentTorrentCompletedStat: false,
		NumWantFallback:                50,
		ConnectionIDLifetime:           Duration{60 * time.Second},

		NetConfig: NetConfig{
			AllowIPSpoofing: true,
			NumListeners:    8,
		},
	},

	APIConfig: APIConfig{
		ListenAddr:     "localhost:6880",
		RequestTimeout: Duration{10 * time.Second},
		ReadTimeout:    Duration{10 * time.Second},
		WriteTimeout:   Duration{10 * time.Second},
	},

	HTTPConfig: HTTPConfig{
		ListenAddr:     "localhost:6881",
		RequestTimeout: Duration{10 * time.Second},
		ReadTimeout:    Duration{10 * time.Second},
		WriteTimeout:   Duration{10 * time.Second},
	},

	UDPConfig: UDPConfig{
		ListenAddr:     "localhost:6882",
		ReadBufferSize: 2048,
	},

	DriverConfig: DriverConfig{
		Name: "noop",
	},

	StatsConfig: StatsConfig{
		BufferSize: 0,
		IncludeMem: true,
		VerboseMem: false,

		MemUpdateInterval: Duration{5 * time.Second},
	},
}

// Open is a shortcut to open a file, read it, and generate a Config.
// It supports relative and absolute paths. Given "", it returns DefaultConfig.
func Open(path string) (*Config, error) {
	if path == "" {
		return &DefaultConfig, nil
	}

	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return conf, nil
}

// Decode casts an io.Reader into a JSONDecoder and decodes it into a *Config.
func Decode(r io.Reader) (*Config, error) {
	conf := DefaultConfig
	err := json.NewDecoder(r).Decode(&conf)
	return &conf, err
}
