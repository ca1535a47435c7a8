package protocol

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed 9-byte packet header.
//
// Layout: Sequence(2) | AckRequest(1) | Reserved(1) | Type(1) | Source(2) | Destination(2)
type Header struct {
	Sequence    uint16
	AckRequest  uint8
	Reserved    uint8
	Type        MessageType
	Source      uint16
	Destination uint16
}

// AckWanted reports whether the sender asked for an acknowledgement.
func (h Header) AckWanted() bool {
	return h.AckRequest == AckRequested
}

// AppendHeader appends the wire form of h to b.
func AppendHeader(b []byte, h Header) []byte {
	b = binary.BigEndian.AppendUint16(b, h.Sequence)
	b = append(b, h.AckRequest, h.Reserved, byte(h.Type))
	b = binary.BigEndian.AppendUint16(b, h.Source)
	b = binary.BigEndian.AppendUint16(b, h.Destination)
	return b
}

// DecodeHeader reads a header from the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrMalformedPacket, HeaderSize, len(b))
	}
	return Header{
		Sequence:    binary.BigEndian.Uint16(b[0:2]),
		AckRequest:  b[2],
		Reserved:    b[3],
		Type:        MessageType(b[4]),
		Source:      binary.BigEndian.Uint16(b[5:7]),
		Destination: binary.BigEndian.Uint16(b[7:9]),
	}, nil
}
