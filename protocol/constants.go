package protocol

import (
	"fmt"
	"time"
)

// Wire sizes in bytes.
const (
	HeaderSize          = 9
	CountdownSize       = 8
	StatusResponseSize  = 13
	AcknowledgementSize = 1
)

// AckRequested is the ack_request sentinel written when an acknowledgement is wanted.
const AckRequested byte = 0x0f

// Session defaults observed on the PAE/AFFCAR link.
const (
	PAEAddress    uint16 = 5121
	AFFCARAddress uint16 = 1100

	PAEHost     = "172.40.0.62"
	AFFCARHost  = "172.40.0.41"
	DefaultPort = 61440

	DefaultTick    = 100 * time.Millisecond
	TicksPerSecond = int(time.Second / DefaultTick)
)

// MessageType is the header type identifier selecting the body variant.
type MessageType uint8

const (
	TypeCountdown       MessageType = 102 // PAE -> AFFCAR
	TypeStatusResponse  MessageType = 103 // AFFCAR -> PAE
	TypeAcknowledgement MessageType = 189
)

func (t MessageType) String() string {
	switch t {
	case TypeCountdown:
		return "countdown"
	case TypeStatusResponse:
		return "status"
	case TypeAcknowledgement:
		return "ack"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// DisplayColor is the countdown display state.
type DisplayColor uint8

const (
	ColorNotBlocked DisplayColor = 0x00
	ColorBlocked    DisplayColor = 0x01
)

func (c DisplayColor) String() string {
	switch c {
	case ColorNotBlocked:
		return "not-blocked"
	case ColorBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("color(%d)", uint8(c))
	}
}

// Flag converts a mode boolean to its wire byte.
func Flag(enabled bool) uint8 {
	if enabled {
		return 0x01
	}
	return 0x00
}
