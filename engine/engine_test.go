package engine

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/samaelod/paesim/capture"
	"github.com/samaelod/paesim/protocol"
	"github.com/samaelod/paesim/types"
)

func newTestEngine(t *testing.T, cfg *types.Config, opts ...Option) (*Engine, *recordingTransport) {
	t.Helper()
	tr := &recordingTransport{}
	opts = append([]Option{WithTransport(tr), WithClock(instantClocks)}, opts...)
	e, err := NewEngine(cfg, "", opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e, tr
}

func TestEngineRunsSession(t *testing.T) {
	e, tr := newTestEngine(t, types.DefaultConfig())

	if err := e.StartSession(2); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	e.Wait()

	st := e.State(2)
	if st.Status != types.StatusCompleted || st.Phase != PhaseTerminated.String() {
		t.Fatalf("state=%+v", st)
	}
	if st.Sent != 150 || st.Failed != 0 || st.LastSeq != 149 || st.Countdown != 6 {
		t.Fatalf("state=%+v", st)
	}
	checkPattern(t, tr.payloads(), 100)

	if e.Running() || e.IsRunning(2) {
		t.Fatalf("engine still running")
	}
	if e.State(1).Status != types.StatusIdle {
		t.Fatalf("session 1 touched: %+v", e.State(1))
	}
	if !strings.Contains(e.Log.ReadAll(), "session finished") {
		t.Fatalf("log missing completion:\n%s", e.Log.ReadAll())
	}
}

func TestEngineRestartKeepsSequence(t *testing.T) {
	e, tr := newTestEngine(t, types.DefaultConfig())

	for i := 0; i < 2; i++ {
		if err := e.StartSession(1); err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		e.Wait()
	}
	if got := e.Sequence(1); got != 120 {
		t.Fatalf("sequence=%d", got)
	}
	payloads := tr.payloads()
	p, err := protocol.Decode(payloads[60])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Header.Sequence != 60 {
		t.Fatalf("second run started at seq %d", p.Header.Sequence)
	}
}

func TestEngineUnknownSession(t *testing.T) {
	e, _ := newTestEngine(t, types.DefaultConfig())
	if err := e.StartSession(9); err == nil {
		t.Fatalf("expected error for unknown session")
	}
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.Config)
		want   error
	}{
		{"tick", func(c *types.Config) { c.Globals.TickMs = -1 }, types.ErrInvalidTick},
		{"host", func(c *types.Config) { c.Sessions[0].Host = "not a host" }, types.ErrInvalidHost},
		{"port", func(c *types.Config) { c.Sessions[1].Port = 0 }, types.ErrInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.DefaultConfig()
			tt.mutate(cfg)
			tr := &recordingTransport{}
			_, err := NewEngine(cfg, "", WithTransport(tr), WithClock(instantClocks))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v want %v", err, tt.want)
			}
			if len(tr.payloads()) != 0 {
				t.Fatalf("packets sent before validation")
			}
		})
	}

	if _, err := NewEngine(nil, ""); err == nil {
		t.Fatalf("nil config accepted")
	}
}

func TestEngineStopSession(t *testing.T) {
	e, _ := newTestEngine(t, types.DefaultConfig(), WithClock(func(time.Duration) Clock { return blockingClock{} }))

	if err := e.StartSession(1); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if !e.IsRunning(1) || !e.Running() {
		t.Fatalf("session not running")
	}
	// starting twice is a no-op
	if err := e.StartSession(1); err != nil {
		t.Fatalf("second StartSession: %v", err)
	}

	e.StopSession(1)
	e.Wait()

	st := e.State(1)
	if st.Status != types.StatusIdle || st.Sent != 0 {
		t.Fatalf("state=%+v", st)
	}
	if e.IsRunning(1) {
		t.Fatalf("session still running")
	}
}

func TestEngineStopThenStart(t *testing.T) {
	e, _ := newTestEngine(t, types.DefaultConfig(), WithClock(func(time.Duration) Clock { return blockingClock{} }))

	for i := 0; i < 3; i++ {
		if err := e.StartSession(1); err != nil {
			t.Fatalf("run %d: StartSession: %v", i, err)
		}
		if !e.IsRunning(1) || e.State(1).Status != types.StatusRunning {
			t.Fatalf("run %d: not running after start: %+v", i, e.State(1))
		}

		e.StopSession(1)
		if e.IsRunning(1) || e.Running() {
			t.Fatalf("run %d: still running after stop", i)
		}
		if st := e.State(1); st.Status != types.StatusIdle || st.FinishedAt.IsZero() {
			t.Fatalf("run %d: state=%+v", i, st)
		}
	}
	// stopping an idle session returns at once
	e.StopSession(1)
}

func TestEngineCountsFailures(t *testing.T) {
	tr := &recordingTransport{fail: func(n int) bool { return n < 5 }}
	e, err := NewEngine(types.DefaultConfig(), "", WithTransport(tr), WithClock(instantClocks))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	if err := e.StartSession(1); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	e.Wait()

	st := e.State(1)
	if st.Status != types.StatusCompleted || st.Sent != 60 || st.Failed != 5 {
		t.Fatalf("state=%+v", st)
	}
	if !strings.Contains(e.Log.ReadAll(), "send failed") {
		t.Fatalf("failures not logged")
	}
}

func TestEngineRecordsAcks(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Sessions[1].DestinationAddress = 1200
	e, _ := newTestEngine(t, cfg)

	e.onInbound(Inbound{Packet: protocol.Packet{
		Header: protocol.Header{Type: protocol.TypeAcknowledgement, Source: protocol.AFFCARAddress},
		Body:   protocol.Acknowledgement{Code: 3},
	}})

	if st := e.State(1); !st.AckReceived || st.LastAckCode != 3 {
		t.Fatalf("session 1 state=%+v", st)
	}
	if st := e.State(2); st.AckReceived {
		t.Fatalf("ack applied to session 2: %+v", st)
	}

	// status responses and malformed datagrams are kept but change nothing
	e.onInbound(Inbound{Packet: protocol.Packet{Body: protocol.StatusResponse{AFFCARID: 1}}})
	e.onInbound(Inbound{Err: protocol.ErrMalformedPacket})
	if got := len(e.Inbound()); got != 3 {
		t.Fatalf("inbound=%d", got)
	}
}

func TestEngineWritesCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.pcap")
	cfg := types.DefaultConfig()
	cfg.Globals.Capture = path

	e, _ := newTestEngine(t, cfg)
	if err := e.StartSession(1); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	e.Wait()
	e.Close()

	records, err := capture.Read(path, capture.Filter{})
	if err != nil {
		t.Fatalf("capture.Read: %v", err)
	}
	if len(records) != 60 {
		t.Fatalf("records=%d", len(records))
	}
	for i, r := range records {
		if r.Err != nil || r.Packet.Header.Sequence != uint16(i) {
			t.Fatalf("record %d: seq=%d err=%v", i, r.Packet.Header.Sequence, r.Err)
		}
	}
}

func TestEngineListens(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Globals.Listen = "127.0.0.1:0"
	e, _ := newTestEngine(t, cfg)

	tr, err := NewUDPTransport(time.Second)
	if err != nil {
		t.Fatalf("NewUDPTransport: %v", err)
	}
	defer tr.Close()

	// acknowledgement from AFFCAR 1100 to PAE 5121, code 1
	ack := []byte{0x00, 0x01, 0x00, 0x00, byte(protocol.TypeAcknowledgement), 0x04, 0x4c, 0x14, 0x01, 0x01}
	port := e.receiver.Addr().(*net.UDPAddr).Port
	if err := tr.Send(context.Background(), ack, "127.0.0.1", port); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !e.State(1).AckReceived {
		if time.Now().After(deadline) {
			t.Fatalf("ack not received")
		}
		time.Sleep(10 * time.Millisecond)
	}
	in := e.Inbound()
	if len(in) != 1 || in[0].Packet.Header.Sequence != 1 {
		t.Fatalf("inbound=%+v", in)
	}
}
