package engine

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/samaelod/paesim/protocol"
)

func TestUDPLoopback(t *testing.T) {
	got := make(chan Inbound, 4)
	r, err := Listen(context.Background(), "127.0.0.1:0", zerolog.Nop(), func(in Inbound) { got <- in })
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer r.Close()
	port := r.Addr().(*net.UDPAddr).Port

	tr, err := NewUDPTransport(time.Second)
	if err != nil {
		t.Fatalf("NewUDPTransport: %v", err)
	}
	defer tr.Close()

	payload, err := protocol.Encode(protocol.Frame{
		Header: protocol.Header{Sequence: 42, Source: protocol.PAEAddress, Destination: protocol.AFFCARAddress},
		Body:   protocol.NewCountdown(true, false, 7, protocol.ColorNotBlocked),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, b := range [][]byte{payload, {1, 2, 3}} {
		if err := tr.Send(context.Background(), b, "127.0.0.1", port); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	wait := func() Inbound {
		select {
		case in := <-got:
			return in
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for datagram")
		}
		return Inbound{}
	}

	in := wait()
	if in.Err != nil || in.Packet.Header.Sequence != 42 {
		t.Fatalf("inbound=%+v", in)
	}
	if c, ok := in.Packet.Body.(protocol.Countdown); !ok || c.Value != 7 {
		t.Fatalf("body=%+v", in.Packet.Body)
	}

	in = wait()
	if !errors.Is(in.Err, protocol.ErrMalformedPacket) {
		t.Fatalf("short datagram err=%v", in.Err)
	}
}

func TestUDPTransportErrors(t *testing.T) {
	tr, err := NewUDPTransport(0)
	if err != nil {
		t.Fatalf("NewUDPTransport: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Send(ctx, []byte{1}, "127.0.0.1", 9); !errors.Is(err, ErrTransport) {
		t.Fatalf("cancelled send err=%v", err)
	}
	if err := tr.Send(context.Background(), []byte{1}, "bad host name", 9); !errors.Is(err, ErrTransport) {
		t.Fatalf("resolve err=%v", err)
	}
}

func TestUDPLoopbackLargeDatagram(t *testing.T) {
	got := make(chan Inbound, 1)
	r, err := Listen(context.Background(), "127.0.0.1:0", zerolog.Nop(), func(in Inbound) { got <- in })
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer r.Close()

	tr, err := NewUDPTransport(time.Second)
	if err != nil {
		t.Fatalf("NewUDPTransport: %v", err)
	}
	defer tr.Close()

	payload, err := protocol.Encode(protocol.Frame{
		Header: protocol.Header{Sequence: 9, Source: protocol.PAEAddress, Destination: protocol.AFFCARAddress},
		Body:   protocol.NewCountdown(true, false, 7, protocol.ColorNotBlocked),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	large := append(payload, make([]byte, 6000)...)
	if err := tr.Send(context.Background(), large, "127.0.0.1", r.Addr().(*net.UDPAddr).Port); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case in := <-got:
		if len(in.Raw) != len(large) {
			t.Fatalf("raw=%d bytes want %d", len(in.Raw), len(large))
		}
		if in.Err != nil || in.Packet.Header.Sequence != 9 {
			t.Fatalf("inbound=%+v", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for datagram")
	}
}

func TestUDPTransportConcurrentSends(t *testing.T) {
	const senders, perSender = 4, 25

	var (
		mu    sync.Mutex
		count int
	)
	r, err := Listen(context.Background(), "127.0.0.1:0", zerolog.Nop(), func(Inbound) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer r.Close()
	port := r.Addr().(*net.UDPAddr).Port

	tr, err := NewUDPTransport(time.Second)
	if err != nil {
		t.Fatalf("NewUDPTransport: %v", err)
	}
	defer tr.Close()

	errs := make(chan error, senders*perSender)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// each sender carries its own deadline
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(i+1)*time.Second)
			defer cancel()
			for j := 0; j < perSender; j++ {
				if err := tr.Send(ctx, []byte{byte(i), byte(j)}, "127.0.0.1", port); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("send: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := count
		mu.Unlock()
		if n == senders*perSender {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("received %d of %d datagrams", n, senders*perSender)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
