package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/samaelod/paesim/capture"
	"github.com/samaelod/paesim/logging"
	"github.com/samaelod/paesim/protocol"
	"github.com/samaelod/paesim/types"
)

const maxInbound = 500

// Engine runs the sessions of a scenario and tracks their state.
type Engine struct {
	Config *types.Config
	Log    *Logger
	Logger zerolog.Logger

	mu      sync.Mutex
	states  map[int]types.SessionState
	senders map[int]*SenderSession
	runs    map[int]*sessionRun
	inbound []Inbound
	running int
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	transport Transport
	recorder  Recorder
	clock     ClockFactory
	receiver  *Receiver
	closers   []io.Closer
	logOut    []io.Writer
}

// sessionRun is one live execution of a session's schedule.
// done is closed after the final state has been recorded.
type sessionRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Engine)

// WithTransport replaces the UDP transport.
func WithTransport(t Transport) Option {
	return func(e *Engine) { e.transport = t }
}

// WithRecorder replaces the capture file named in the scenario globals.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock replaces the wall-clock ticker.
func WithClock(f ClockFactory) Option {
	return func(e *Engine) { e.clock = f }
}

// WithLogOutput mirrors engine logs to w in addition to the ring buffer.
func WithLogOutput(w io.Writer) Option {
	return func(e *Engine) { e.logOut = append(e.logOut, w) }
}

// NewEngine validates cfg and prepares transport, capture and receiver.
// Configuration errors are returned before anything touches the network.
func NewEngine(cfg *types.Config, logPath string, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		Config:  cfg,
		Log:     NewLogger(logPath, cfg.Globals.LogLines),
		states:  make(map[int]types.SessionState),
		senders: make(map[int]*SenderSession),
		runs:    make(map[int]*sessionRun),
		ctx:     ctx,
		cancel:  cancel,
		clock:   wallClock,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Logger = logging.New("engine", append([]io.Writer{e.Log}, e.logOut...)...)

	if e.transport == nil {
		t, err := NewUDPTransport(time.Duration(cfg.Globals.SendTimeoutMs) * time.Millisecond)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.transport = t
		e.closers = append(e.closers, t)
	}

	if e.recorder == nil && cfg.Globals.Capture != "" {
		w, err := capture.Create(cfg.Globals.Capture)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("engine: open capture: %w", err)
		}
		e.recorder = w
		e.closers = append(e.closers, w)
		e.Logger.Info().Str("path", cfg.Globals.Capture).Msg("recording emitted packets")
	}

	if cfg.Globals.Listen != "" {
		r, err := Listen(ctx, cfg.Globals.Listen, e.Logger.With().Str("component", "receiver").Logger(), e.onInbound)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("engine: listen %s: %w", cfg.Globals.Listen, err)
		}
		e.receiver = r
		e.Logger.Info().Str("addr", r.Addr().String()).Msg("listening for AFFCAR packets")
	}

	for _, s := range cfg.Sessions {
		e.states[s.ID] = types.SessionState{Status: types.StatusIdle, Countdown: uint16(s.InitialCountdown())}
	}
	return e, nil
}

// StartSession launches the schedule of one session in the background.
// Starting a session that is already running is a no-op.
func (e *Engine) StartSession(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.runs[id]; ok {
		return nil
	}
	s := e.Config.FindSession(id)
	if s == nil {
		return fmt.Errorf("engine: session %d not found", id)
	}
	pattern, err := PatternFor(*s)
	if err != nil {
		return err
	}

	sender, ok := e.senders[id]
	if !ok {
		sender = NewSenderSession(*s, e.transport)
		sender.SetRecorder(e.recorder)
		e.senders[id] = sender
	}

	ctx, cancel := context.WithCancel(e.ctx)
	run := &sessionRun{cancel: cancel, done: make(chan struct{})}
	e.runs[id] = run
	e.running++

	st := e.states[id]
	st.Status = types.StatusRunning
	st.Phase = PhaseHolding.String()
	st.StartedAt = time.Now()
	st.FinishedAt = time.Time{}
	st.LastError = ""
	e.states[id] = st

	e.wg.Add(1)
	go e.runSession(ctx, run, *s, sender, pattern)
	return nil
}

func (e *Engine) runSession(ctx context.Context, run *sessionRun, s types.Session, sender *SenderSession, pattern Pattern) {
	defer e.wg.Done()
	defer run.cancel()

	log := e.Logger.With().Int("session", s.ID).Logger()
	log.Info().
		Str("name", s.Label()).
		Str("dest", s.Addr()).
		Str("pattern", pattern.Name).
		Int("packets", pattern.Total()).
		Msg("session started")

	clock := e.clock(e.Config.Globals.Tick())
	defer clock.Stop()

	sched := &Scheduler{
		Session: sender,
		Pattern: pattern,
		Clock:   clock,
		OnEmit:  func(em Emission) { e.onEmit(log, em) },
	}
	stats, err := sched.Run(ctx)

	e.mu.Lock()
	if e.runs[s.ID] == run {
		delete(e.runs, s.ID)
	}
	e.running--
	st := e.states[s.ID]
	st.FinishedAt = time.Now()
	switch {
	case errors.Is(err, ErrCancelled):
		st.Status = types.StatusIdle
	case err != nil:
		st.Status = types.StatusError
		st.LastError = err.Error()
	default:
		st.Status = types.StatusCompleted
		st.Phase = PhaseTerminated.String()
	}
	e.states[s.ID] = st
	e.mu.Unlock()
	close(run.done)

	if errors.Is(err, ErrCancelled) {
		log.Warn().Int("sent", stats.Sent).Msg("session stopped")
		return
	}
	log.Info().Int("sent", stats.Sent).Int("failed", stats.Failed).Uint16("last_seq", stats.LastSeq).Msg("session finished")
}

func (e *Engine) onEmit(log zerolog.Logger, em Emission) {
	e.mu.Lock()
	st := e.states[em.SessionID]
	st.Sent++
	st.LastSeq = em.Sequence
	st.Countdown = uint16(em.Countdown)
	st.Phase = em.Phase.String()
	if em.Err != nil {
		st.Failed++
		st.LastError = em.Err.Error()
	}
	e.states[em.SessionID] = st
	e.mu.Unlock()

	if em.Err != nil {
		log.Error().Err(em.Err).Uint16("seq", em.Sequence).Msg("send failed")
	} else {
		log.Info().
			Uint16("seq", em.Sequence).
			Uint32("countdown", em.Countdown).
			Stringer("color", em.Color).
			Str("bytes", protocol.Hex(em.Payload)).
			Msg("sent")
	}
	if em.CaptureErr != nil {
		log.Warn().Err(em.CaptureErr).Msg("capture write failed")
	}
}

func (e *Engine) onInbound(in Inbound) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.inbound = append(e.inbound, in)
	if len(e.inbound) > maxInbound {
		e.inbound = e.inbound[len(e.inbound)-maxInbound:]
	}
	ack, ok := in.Packet.Body.(protocol.Acknowledgement)
	if in.Err != nil || !ok {
		return
	}
	for _, s := range e.Config.Sessions {
		if uint16(s.DestinationAddress) != in.Packet.Header.Source {
			continue
		}
		st := e.states[s.ID]
		st.AckReceived = true
		st.LastAckCode = ack.Code
		e.states[s.ID] = st
	}
}

// State returns a snapshot of one session.
func (e *Engine) State(id int) types.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[id]
}

// Sequence returns the next sequence number of a session.
func (e *Engine) Sequence(id int) uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.senders[id]; ok {
		return s.Sequence()
	}
	return 0
}

func (e *Engine) IsRunning(id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runs[id]
	return ok
}

// Running reports whether any session is still emitting.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running > 0
}

// Inbound returns the received datagrams, oldest first.
func (e *Engine) Inbound() []Inbound {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Inbound, len(e.inbound))
	copy(out, e.inbound)
	return out
}

// StopSession cancels a running session and waits until it has returned,
// so a following StartSession begins a fresh run.
func (e *Engine) StopSession(id int) {
	e.mu.Lock()
	run, ok := e.runs[id]
	e.mu.Unlock()
	if !ok {
		return
	}
	run.cancel()
	<-run.done
}

// StopAll cancels every running session and waits for them to return.
func (e *Engine) StopAll() {
	e.mu.Lock()
	for _, run := range e.runs {
		run.cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// Wait blocks until every started session has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close stops all sessions and releases sockets, capture file and log file.
func (e *Engine) Close() {
	e.StopAll()
	e.cancel()
	if e.receiver != nil {
		e.receiver.Close()
	}
	for _, c := range e.closers {
		c.Close()
	}
	e.Log.Close()
}
