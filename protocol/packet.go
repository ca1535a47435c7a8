package protocol

import (
	"encoding/hex"
	"fmt"
)

// Frame is one outbound packet. Header.Type is overwritten from Body on encode.
type Frame struct {
	Header Header
	Body   Encodable
}

// Packet is one decoded inbound packet. Body is nil when the type id is unknown
// or the body was shorter than its variant requires.
type Packet struct {
	Header Header
	Body   Body
}

// Encode writes the header followed by the body.
func Encode(f Frame) ([]byte, error) {
	if f.Body == nil {
		return nil, ErrMissingBody
	}
	h := f.Header
	h.Type = f.Body.MessageType()
	h.Reserved = 0
	b := make([]byte, 0, HeaderSize+CountdownSize)
	b = AppendHeader(b, h)
	return f.Body.AppendBinary(b), nil
}

// Decode parses a full datagram.
func Decode(b []byte) (Packet, error) {
	if len(b) <= HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes, need more than %d", ErrMalformedPacket, len(b), HeaderSize)
	}
	h, err := DecodeHeader(b)
	if err != nil {
		return Packet{}, err
	}
	p := Packet{Header: h}
	rest := b[HeaderSize:]

	switch h.Type {
	case TypeCountdown:
		var c Countdown
		if c.DecodeBinary(rest) == nil {
			p.Body = c
		}
	case TypeStatusResponse:
		var s StatusResponse
		if s.DecodeBinary(rest) == nil {
			p.Body = s
		}
	case TypeAcknowledgement:
		var a Acknowledgement
		if a.DecodeBinary(rest) == nil {
			p.Body = a
		}
	}
	return p, nil
}

// HasBody reports whether a body variant was decoded.
func (p Packet) HasBody() bool {
	return p.Body != nil
}

func (p Packet) String() string {
	s := fmt.Sprintf("seq=%d type=%s src=%d dst=%d", p.Header.Sequence, p.Header.Type, p.Header.Source, p.Header.Destination)
	switch b := p.Body.(type) {
	case Countdown:
		s += fmt.Sprintf(" affcar1=%d affcar2=%d value=%d color=%s clear=%d", b.AFFCAR1, b.AFFCAR2, b.Value, b.Color, b.Clear)
	case StatusResponse:
		s += fmt.Sprintf(" affcar=%d sw=%d.%d health=%d dam1=%#08x dam0=%#08x", b.AFFCARID, b.SwMajor, b.SwMinor, b.Health, b.DAM1, b.DAM0)
	case Acknowledgement:
		s += fmt.Sprintf(" ack=%#02x", b.Code)
	default:
		s += " body=none"
	}
	return s
}

// Hex renders b as lowercase hex, the form used in logs and Lua dumps.
func Hex(b []byte) string {
	return hex.EncodeToString(b)
}
