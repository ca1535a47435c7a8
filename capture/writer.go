package capture

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/samaelod/paesim/types"
)

const snapLen = 65536

var (
	// Locally administered MACs; the link layer only exists so Wireshark can dissect the file.
	paeMAC    = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x14, 0x01}
	affcarMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x04, 0x4c}
)

// Writer records emitted datagrams as Ethernet/IPv4/UDP frames in a pcap file.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	w    *pcapgo.Writer
	n    int
}

// Create truncates path and writes the pcap file header.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{file: f, w: w}, nil
}

// WriteDatagram appends one datagram sent by session s.
func (w *Writer) WriteDatagram(ts time.Time, s types.Session, payload []byte) error {
	frame, err := buildFrame(s, payload)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return os.ErrClosed
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := w.w.WritePacket(ci, frame); err != nil {
		return err
	}
	w.n++
	return nil
}

// Count is the number of datagrams written so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	w.w = nil
	return w.file.Close()
}

func buildFrame(s types.Session, payload []byte) ([]byte, error) {
	src := net.ParseIP(s.SourceHost).To4()
	if src == nil {
		src = net.IPv4zero.To4()
	}
	dst := net.ParseIP(s.Host).To4()
	if dst == nil {
		// hostnames are not resolved for captures
		dst = net.IPv4bcast.To4()
	}

	eth := &layers.Ethernet{
		SrcMAC:       paeMAC,
		DstMAC:       affcarMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    src,
		DstIP:    dst,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(s.SourcePort),
		DstPort: layers.UDPPort(s.Port),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("capture: serialize: %w", err)
	}
	return buf.Bytes(), nil
}
