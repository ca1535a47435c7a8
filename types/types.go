package types

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/samaelod/paesim/protocol"
)

var (
	ErrInvalidHost      = errors.New("config: invalid host")
	ErrInvalidPort      = errors.New("config: invalid port")
	ErrInvalidTick      = errors.New("config: tick period must be positive")
	ErrInvalidPattern   = errors.New("config: invalid traffic pattern")
	ErrDuplicateSession = errors.New("config: duplicate session id")
)

// Pattern names understood by the scheduler.
const (
	PatternShort = "short" // 10 blocked packets after the hold phase
	PatternLong  = "long"  // 100 blocked packets after the hold phase
)

type Config struct {
	Globals  Globals   `toml:"globals"`
	Sessions []Session `toml:"sessions"`
}

type Globals struct {
	TickMs        int    `toml:"tick_ms"`         // tick period, one packet per tick
	Listen        string `toml:"listen"`          // optional UDP address for inbound status/ack packets
	Capture       string `toml:"capture"`         // optional pcap file recording every emitted datagram
	LogLines      int    `toml:"log_lines"`       // max lines in memory buffer (default 1000)
	SendTimeoutMs int    `toml:"send_timeout_ms"` // write deadline for one datagram
}

// Session is one PAE -> AFFCAR sender. Each session owns its own sequence counter.
type Session struct {
	ID                 int    `toml:"id"`
	Name               string `toml:"name"`
	Host               string `toml:"host"` // AFFCAR host
	Port               int    `toml:"port"`
	SourceHost         string `toml:"source_host"` // PAE host, only used for captures
	SourcePort         int    `toml:"source_port"`
	SourceAddress      int    `toml:"source_address"`
	DestinationAddress int    `toml:"destination_address"`
	AckRequired        bool   `toml:"ack_required"`
	AFFCAR1            bool   `toml:"affcar1"`
	AFFCAR2            bool   `toml:"affcar2"`
	Pattern            string `toml:"pattern"`
	Burst              int    `toml:"burst"` // overrides the pattern burst length when > 0
	Start              *int   `toml:"start"` // initial countdown value, nil means DefaultStart
}

// DefaultStart is the countdown value a session starts from when none is set.
const DefaultStart = 10

// InitialCountdown returns the configured start value. Zero is a valid start.
func (s Session) InitialCountdown() int {
	if s.Start == nil {
		return DefaultStart
	}
	return *s.Start
}

func (s Session) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("session-%d", s.ID)
}

func (s Session) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// Tick returns the configured tick period.
func (g Globals) Tick() time.Duration {
	return time.Duration(g.TickMs) * time.Millisecond
}

// ApplyDefaults fills zero values left out of a scenario file.
func (c *Config) ApplyDefaults() {
	if c.Globals.TickMs == 0 {
		c.Globals.TickMs = int(protocol.DefaultTick / time.Millisecond)
	}
	if c.Globals.LogLines <= 0 {
		c.Globals.LogLines = 1000
	}
	if c.Globals.SendTimeoutMs <= 0 {
		c.Globals.SendTimeoutMs = 50
	}
	for i := range c.Sessions {
		s := &c.Sessions[i]
		if s.Port == 0 {
			s.Port = protocol.DefaultPort
		}
		if s.SourceHost == "" {
			s.SourceHost = protocol.PAEHost
		}
		if s.SourcePort == 0 {
			s.SourcePort = protocol.DefaultPort
		}
		if s.SourceAddress == 0 {
			s.SourceAddress = int(protocol.PAEAddress)
		}
		if s.DestinationAddress == 0 {
			s.DestinationAddress = int(protocol.AFFCARAddress)
		}
		if s.Pattern == "" {
			s.Pattern = PatternShort
		}
	}
}

// FindSession returns the session with the given id.
func (c *Config) FindSession(id int) *Session {
	for i := range c.Sessions {
		if c.Sessions[i].ID == id {
			return &c.Sessions[i]
		}
	}
	return nil
}

// Validate checks everything that must hold before the first packet is sent.
func (c *Config) Validate() error {
	if c.Globals.TickMs <= 0 {
		return fmt.Errorf("%w: tick_ms=%d", ErrInvalidTick, c.Globals.TickMs)
	}
	if c.Globals.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Globals.Listen); err != nil {
			return fmt.Errorf("%w: listen %q: %v", ErrInvalidHost, c.Globals.Listen, err)
		}
	}
	seen := make(map[int]bool, len(c.Sessions))
	for i, s := range c.Sessions {
		if seen[s.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateSession, s.ID)
		}
		seen[s.ID] = true
		if err := s.Validate(); err != nil {
			return fmt.Errorf("session %d (index %d): %w", s.ID, i, err)
		}
	}
	return nil
}

func (s Session) Validate() error {
	if !validHost(s.Host) {
		return fmt.Errorf("%w: %q", ErrInvalidHost, s.Host)
	}
	if s.SourceHost != "" && net.ParseIP(s.SourceHost) == nil {
		return fmt.Errorf("%w: source_host %q", ErrInvalidHost, s.SourceHost)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, s.Port)
	}
	if s.SourcePort < 0 || s.SourcePort > 65535 {
		return fmt.Errorf("%w: source_port %d", ErrInvalidPort, s.SourcePort)
	}
	if s.SourceAddress < 0 || s.SourceAddress > 0xffff || s.DestinationAddress < 0 || s.DestinationAddress > 0xffff {
		return fmt.Errorf("config: protocol address out of range: %d -> %d", s.SourceAddress, s.DestinationAddress)
	}
	switch s.Pattern {
	case PatternShort, PatternLong:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPattern, s.Pattern)
	}
	if s.Burst < 0 {
		return fmt.Errorf("%w: burst=%d", ErrInvalidPattern, s.Burst)
	}
	if start := s.InitialCountdown(); start < 0 || start > 0xffff {
		return fmt.Errorf("%w: start=%d", ErrInvalidPattern, start)
	}
	return nil
}

func validHost(host string) bool {
	host = strings.TrimSpace(host)
	if host == "" || strings.ContainsAny(host, " \t/") {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	if strings.Contains(host, ":") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		for _, r := range label {
			if !(r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				return false
			}
		}
	}
	return true
}

type SessionStatus int

const (
	StatusIdle SessionStatus = iota
	StatusRunning
	StatusCompleted
	StatusError
)

func (s SessionStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// SessionState is the live view of one session kept by the engine.
type SessionState struct {
	Status      SessionStatus
	Phase       string
	Countdown   uint16
	Sent        int
	Failed      int
	LastSeq     uint16
	AckReceived bool
	LastAckCode uint8
	LastError   string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// DefaultConfig returns the two observed PAE behaviors aimed at the default AFFCAR.
func DefaultConfig() *Config {
	cfg := &Config{
		Globals: Globals{TickMs: int(protocol.DefaultTick / time.Millisecond)},
		Sessions: []Session{
			{ID: 1, Name: "rl2b71", Host: protocol.AFFCARHost, AFFCAR1: true, Pattern: PatternShort},
			{ID: 2, Name: "futur", Host: protocol.AFFCARHost, AFFCAR1: true, Pattern: PatternLong},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}
