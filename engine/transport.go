package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// ErrTransport wraps every datagram send failure.
var ErrTransport = errors.New("engine: transport send failed")

// Transport delivers one datagram, fire-and-forget.
type Transport interface {
	Send(ctx context.Context, payload []byte, host string, port int) error
}

// UDPTransport sends from one unconnected UDP socket shared by all sessions.
// Writes are serialized because the write deadline belongs to the socket.
type UDPTransport struct {
	conn    net.PacketConn
	timeout time.Duration

	wmu sync.Mutex

	mu    sync.Mutex
	addrs map[string]*net.UDPAddr
}

func NewUDPTransport(timeout time.Duration) (*UDPTransport, error) {
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("%w: open socket: %w", ErrTransport, err)
	}
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	return &UDPTransport{
		conn:    conn,
		timeout: timeout,
		addrs:   make(map[string]*net.UDPAddr),
	}, nil
}

func (t *UDPTransport) Send(ctx context.Context, payload []byte, host string, port int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	addr, err := t.resolve(host, port)
	if err != nil {
		return err
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()
	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if _, err := t.conn.WriteTo(payload, addr); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, addr, err)
	}
	return nil
}

func (t *UDPTransport) resolve(host string, port int) (*net.UDPAddr, error) {
	key := net.JoinHostPort(host, strconv.Itoa(port))
	t.mu.Lock()
	defer t.mu.Unlock()
	if addr, ok := t.addrs[key]; ok {
		return addr, nil
	}
	addr, err := net.ResolveUDPAddr("udp", key)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrTransport, key, err)
	}
	t.addrs[key] = addr
	return addr, nil
}

// LocalAddr is the socket the datagrams leave from.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
