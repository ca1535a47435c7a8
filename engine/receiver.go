package engine

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/samaelod/paesim/protocol"
)

// maxDatagram holds the largest UDP payload, so reads never truncate.
const maxDatagram = 64 << 10

// Inbound is one datagram received from an AFFCAR.
type Inbound struct {
	At     time.Time
	From   string
	Raw    []byte
	Packet protocol.Packet
	Err    error
}

// Receiver listens for AFFCAR status and acknowledgement datagrams.
type Receiver struct {
	conn   net.PacketConn
	log    zerolog.Logger
	handle func(Inbound)

	wg sync.WaitGroup
}

// Listen binds addr and starts decoding datagrams, calling handle for each one.
func Listen(ctx context.Context, addr string, log zerolog.Logger, handle func(Inbound)) (*Receiver, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	r := &Receiver{conn: conn, log: log, handle: handle}
	r.wg.Add(1)
	go r.loop(ctx)
	return r, nil
}

func (r *Receiver) Addr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *Receiver) loop(ctx context.Context) {
	defer r.wg.Done()
	buf := make([]byte, maxDatagram)
	for {
		if err := r.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
			return
		}
		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			r.log.Error().Err(err).Msg("receive failed")
			return
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		in := Inbound{At: time.Now(), From: from.String(), Raw: raw}
		in.Packet, in.Err = protocol.Decode(raw)
		if in.Err != nil {
			r.log.Warn().Err(in.Err).Str("from", in.From).Str("raw", protocol.Hex(raw)).Msg("dropped malformed packet")
		} else {
			r.log.Info().Str("from", in.From).Msg("received " + in.Packet.String())
		}
		if r.handle != nil {
			r.handle(in)
		}
	}
}

// Close stops the receive loop and waits for it to exit.
func (r *Receiver) Close() error {
	err := r.conn.Close()
	r.wg.Wait()
	return err
}
