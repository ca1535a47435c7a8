package protocol

import (
	"encoding/binary"
	"fmt"
)

// Encodable is a body the PAE can put on the wire.
type Encodable interface {
	MessageType() MessageType
	AppendBinary(b []byte) []byte
}

// Decodable is a body that can be filled from its wire form.
type Decodable interface {
	MessageType() MessageType
	DecodeBinary(b []byte) error
}

// Body is the closed set of decoded message bodies carried by a Packet.
type Body interface {
	MessageType() MessageType
	body()
}

var (
	_ Encodable = Countdown{}
	_ Decodable = (*Countdown)(nil)
	_ Decodable = (*StatusResponse)(nil)
	_ Decodable = (*Acknowledgement)(nil)
	_ Body      = Countdown{}
	_ Body      = StatusResponse{}
	_ Body      = Acknowledgement{}
)

// Countdown is the PAE -> AFFCAR display message.
//
// AFFCAR1 and AFFCAR2 are written unchecked; 0x01 enables, 0x00 disables.
type Countdown struct {
	AFFCAR1 uint8
	AFFCAR2 uint8
	Value   uint32
	Color   DisplayColor
	Clear   uint8
}

// NewCountdown builds a countdown body from mode booleans.
func NewCountdown(affcar1, affcar2 bool, value uint32, color DisplayColor) Countdown {
	return Countdown{
		AFFCAR1: Flag(affcar1),
		AFFCAR2: Flag(affcar2),
		Value:   value,
		Color:   color,
	}
}

func (Countdown) MessageType() MessageType { return TypeCountdown }
func (Countdown) body()                    {}

func (c Countdown) AppendBinary(b []byte) []byte {
	b = append(b, c.AFFCAR1, c.AFFCAR2)
	b = binary.BigEndian.AppendUint32(b, c.Value)
	return append(b, byte(c.Color), c.Clear)
}

// Encode returns the 8-byte body.
func (c Countdown) Encode() []byte {
	return c.AppendBinary(make([]byte, 0, CountdownSize))
}

func (c *Countdown) DecodeBinary(b []byte) error {
	if len(b) < CountdownSize {
		return fmt.Errorf("%w: countdown needs %d bytes, got %d", ErrShortBody, CountdownSize, len(b))
	}
	c.AFFCAR1 = b[0]
	c.AFFCAR2 = b[1]
	c.Value = binary.BigEndian.Uint32(b[2:6])
	c.Color = DisplayColor(b[6])
	c.Clear = b[7]
	return nil
}

// StatusResponse is the AFFCAR -> PAE health report. Decode only.
type StatusResponse struct {
	AFFCARID uint16
	SwMajor  uint8
	SwMinor  uint8
	Health   uint8
	DAM1     uint32
	DAM0     uint32
}

func (StatusResponse) MessageType() MessageType { return TypeStatusResponse }
func (StatusResponse) body()                    {}

func (s *StatusResponse) DecodeBinary(b []byte) error {
	if len(b) < StatusResponseSize {
		return fmt.Errorf("%w: status response needs %d bytes, got %d", ErrShortBody, StatusResponseSize, len(b))
	}
	s.AFFCARID = binary.BigEndian.Uint16(b[0:2])
	s.SwMajor = b[2]
	s.SwMinor = b[3]
	s.Health = b[4]
	s.DAM1 = binary.BigEndian.Uint32(b[5:9])
	s.DAM0 = binary.BigEndian.Uint32(b[9:13])
	return nil
}

// Acknowledgement carries the acknowledged ack code. Decode only.
type Acknowledgement struct {
	Code uint8
}

func (Acknowledgement) MessageType() MessageType { return TypeAcknowledgement }
func (Acknowledgement) body()                    {}

func (a *Acknowledgement) DecodeBinary(b []byte) error {
	if len(b) < AcknowledgementSize {
		return fmt.Errorf("%w: acknowledgement needs %d byte, got %d", ErrShortBody, AcknowledgementSize, len(b))
	}
	a.Code = b[0]
	return nil
}
