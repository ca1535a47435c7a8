package engine

import (
	"context"
	"time"

	"github.com/samaelod/paesim/protocol"
	"github.com/samaelod/paesim/types"
)

// Recorder receives a copy of every datagram handed to the transport.
type Recorder interface {
	WriteDatagram(ts time.Time, s types.Session, payload []byte) error
}

// Emission describes one packet the session put on the wire.
type Emission struct {
	SessionID int
	Sequence  uint16
	Countdown uint32
	Color     protocol.DisplayColor
	Phase     Phase
	Payload   []byte
	At        time.Time
	Err       error

	CaptureErr error
}

// SenderSession owns the sequence counter for one PAE -> AFFCAR link.
// It is not safe for concurrent use; run one session per goroutine.
type SenderSession struct {
	cfg       types.Session
	transport Transport
	recorder  Recorder
	seq       uint16
	now       func() time.Time
}

func NewSenderSession(cfg types.Session, transport Transport) *SenderSession {
	return &SenderSession{
		cfg:       cfg,
		transport: transport,
		now:       time.Now,
	}
}

// SetRecorder attaches a capture recorder; nil detaches.
func (s *SenderSession) SetRecorder(r Recorder) {
	s.recorder = r
}

func (s *SenderSession) Config() types.Session {
	return s.cfg
}

// Sequence is the number the next packet will carry.
func (s *SenderSession) Sequence() uint16 {
	return s.seq
}

// Frame builds the next countdown packet without sending it or advancing the counter.
func (s *SenderSession) Frame(countdown uint32, color protocol.DisplayColor) protocol.Frame {
	h := protocol.Header{
		Sequence:    s.seq,
		Source:      uint16(s.cfg.SourceAddress),
		Destination: uint16(s.cfg.DestinationAddress),
	}
	if s.cfg.AckRequired {
		h.AckRequest = protocol.AckRequested
	}
	return protocol.Frame{
		Header: h,
		Body:   protocol.NewCountdown(s.cfg.AFFCAR1, s.cfg.AFFCAR2, countdown, color),
	}
}

// Send stamps, encodes and transmits one countdown packet. The counter advances
// whether or not the transport succeeds.
func (s *SenderSession) Send(ctx context.Context, countdown uint32, color protocol.DisplayColor) Emission {
	f := s.Frame(countdown, color)
	em := Emission{
		SessionID: s.cfg.ID,
		Sequence:  f.Header.Sequence,
		Countdown: countdown,
		Color:     color,
		At:        s.now(),
	}
	s.seq++

	payload, err := protocol.Encode(f)
	if err != nil {
		em.Err = err
		return em
	}
	em.Payload = payload

	if s.recorder != nil {
		em.CaptureErr = s.recorder.WriteDatagram(em.At, s.cfg, payload)
	}
	em.Err = s.transport.Send(ctx, payload, s.cfg.Host, s.cfg.Port)
	return em
}
