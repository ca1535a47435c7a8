package capture

import (
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/samaelod/paesim/protocol"
)

// ErrEmptyCapture is returned when a file holds no readable packet header.
var ErrEmptyCapture = errors.New("capture: empty capture file")

// Record is one UDP datagram found in a capture.
type Record struct {
	Index     int
	Timestamp time.Time
	TDelta    int // ms since previous kept record
	Src       string
	Dst       string
	DstPort   int
	Raw       []byte
	Packet    protocol.Packet
	Err       error // decode error; the record is kept so callers can show it
}

// Filter narrows which datagrams Read keeps. Zero value keeps every UDP datagram.
type Filter struct {
	Port int // match source or destination port
}

func (f Filter) match(udp *layers.UDP) bool {
	if f.Port == 0 {
		return true
	}
	return int(udp.SrcPort) == f.Port || int(udp.DstPort) == f.Port
}

type packetSource interface {
	LinkType() layers.LinkType
	ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error)
}

func detectFormat(r io.ReaderAt) (string, error) {
	header := make([]byte, 4)
	n, err := r.ReadAt(header, 0)
	if n < 4 {
		if err == nil || errors.Is(err, io.EOF) {
			return "", ErrEmptyCapture
		}
		return "", err
	}

	magic := uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16 | uint32(header[3])<<24
	switch magic {
	case 0x0A0D0D0A:
		return "pcapng", nil
	default:
		return "pcap", nil
	}
}

func openPacketSource(f *os.File) (packetSource, error) {
	format, err := detectFormat(f)
	if err != nil {
		return nil, err
	}
	if format == "pcapng" {
		return pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(f)
}

// Read decodes every matching UDP payload of a pcap or pcapng file.
func Read(path string, filter Filter) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	source, err := openPacketSource(f)
	if err != nil {
		return nil, err
	}

	packets := gopacket.NewPacketSource(source, source.LinkType())

	var (
		records  []Record
		prevTime time.Time
		index    int
	)
	for packet := range packets.Packets() {
		index++
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp := udpLayer.(*layers.UDP)
		if !filter.match(udp) {
			continue
		}

		var srcIP, dstIP string
		if nl := packet.NetworkLayer(); nl != nil {
			srcIP = nl.NetworkFlow().Src().String()
			dstIP = nl.NetworkFlow().Dst().String()
		}

		ts := packet.Metadata().Timestamp
		delta := 0
		if !prevTime.IsZero() {
			delta = int(ts.Sub(prevTime).Milliseconds())
		}
		prevTime = ts

		raw := make([]byte, len(udp.Payload))
		copy(raw, udp.Payload)
		rec := Record{
			Index:     index,
			Timestamp: ts,
			TDelta:    delta,
			Src:       net.JoinHostPort(srcIP, strconv.Itoa(int(udp.SrcPort))),
			Dst:       net.JoinHostPort(dstIP, strconv.Itoa(int(udp.DstPort))),
			DstPort:   int(udp.DstPort),
			Raw:       raw,
		}
		rec.Packet, rec.Err = protocol.Decode(raw)
		records = append(records, rec)
	}

	return records, nil
}
