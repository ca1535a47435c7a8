package engine

import (
	"context"
	"fmt"

	"github.com/samaelod/paesim/protocol"
	"github.com/samaelod/paesim/types"
)

// Phase is the scheduler state.
type Phase int

const (
	PhaseHolding Phase = iota
	PhaseBursting
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseHolding:
		return "holding"
	case PhaseBursting:
		return "bursting"
	default:
		return "terminated"
	}
}

// Pattern parameterizes one reproduced traffic behavior.
type Pattern struct {
	Name        string
	Start       uint16 // first countdown value
	Threshold   uint16 // burst starts once the next value would be <= Threshold
	HoldTicks   int    // packets per held value
	BurstLength int    // blocked packets emitted in the burst
}

var (
	ShortBurst = Pattern{Name: types.PatternShort, Start: 10, Threshold: 5, HoldTicks: protocol.TicksPerSecond, BurstLength: 10}
	LongBurst  = Pattern{Name: types.PatternLong, Start: 10, Threshold: 5, HoldTicks: protocol.TicksPerSecond, BurstLength: 100}
)

// PatternFor resolves the pattern of a session, applying its overrides.
func PatternFor(s types.Session) (Pattern, error) {
	var p Pattern
	switch s.Pattern {
	case types.PatternShort:
		p = ShortBurst
	case types.PatternLong:
		p = LongBurst
	default:
		return Pattern{}, fmt.Errorf("%w: %q", types.ErrInvalidPattern, s.Pattern)
	}
	if s.Burst > 0 {
		p.BurstLength = s.Burst
	}
	if s.Start != nil {
		p.Start = uint16(*s.Start)
	}
	return p, nil
}

// Total is the number of packets one run of p emits.
func (p Pattern) Total() int {
	n := 0
	if p.Start > p.Threshold {
		n = int(p.Start-p.Threshold) * p.HoldTicks
	}
	return n + p.BurstLength
}

// Step is one packet the schedule wants sent.
type Step struct {
	Countdown uint16
	Color     protocol.DisplayColor
	Phase     Phase
}

// Schedule walks Holding(start) -> ... -> Holding(threshold+1) -> Bursting -> Terminated.
// The burst repeats the value of the last held state.
type Schedule struct {
	pattern Pattern
	phase   Phase
	value   uint16
	ticks   int
}

func NewSchedule(p Pattern) *Schedule {
	s := &Schedule{pattern: p, value: p.Start}
	if p.Start <= p.Threshold || p.HoldTicks <= 0 {
		s.phase = PhaseBursting
	}
	return s
}

func (s *Schedule) Phase() Phase {
	return s.phase
}

func (s *Schedule) Value() uint16 {
	return s.value
}

// Next returns the next step, or false once the burst is complete.
func (s *Schedule) Next() (Step, bool) {
	for {
		switch s.phase {
		case PhaseHolding:
			if s.ticks < s.pattern.HoldTicks {
				s.ticks++
				return Step{Countdown: s.value, Color: protocol.ColorNotBlocked, Phase: PhaseHolding}, true
			}
			s.ticks = 0
			next := s.value - 1
			if next <= s.pattern.Threshold {
				s.phase = PhaseBursting
				continue
			}
			s.value = next
		case PhaseBursting:
			if s.ticks < s.pattern.BurstLength {
				s.ticks++
				return Step{Countdown: s.value, Color: protocol.ColorBlocked, Phase: PhaseBursting}, true
			}
			s.phase = PhaseTerminated
		default:
			return Step{}, false
		}
	}
}

// RunStats summarizes one scheduler run.
type RunStats struct {
	Sent    int
	Failed  int
	LastSeq uint16
}

// Scheduler drives one SenderSession through a Pattern, one packet per tick.
type Scheduler struct {
	Session *SenderSession
	Pattern Pattern
	Clock   Clock
	// OnEmit is called after every send, including failed ones.
	OnEmit func(Emission)
}

// Run blocks until the pattern terminates or ctx is cancelled. Send failures are
// reported through OnEmit and never end the run.
func (r *Scheduler) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats
	sched := NewSchedule(r.Pattern)
	for {
		step, ok := sched.Next()
		if !ok {
			return stats, nil
		}
		if err := r.Clock.Wait(ctx); err != nil {
			return stats, err
		}
		em := r.Session.Send(ctx, uint32(step.Countdown), step.Color)
		em.Phase = step.Phase
		stats.Sent++
		stats.LastSeq = em.Sequence
		if em.Err != nil {
			stats.Failed++
		}
		if r.OnEmit != nil {
			r.OnEmit(em)
		}
	}
}
