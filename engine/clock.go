package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCancelled is returned when a run is interrupted while waiting for a tick.
var ErrCancelled = errors.New("engine: run cancelled")

// Clock paces the scheduler. Wait blocks for about one tick period or until ctx ends.
type Clock interface {
	Wait(ctx context.Context) error
	Stop()
}

// Ticker is the wall-clock Clock backed by time.Ticker.
type Ticker struct {
	t *time.Ticker
}

func NewTicker(period time.Duration) *Ticker {
	return &Ticker{t: time.NewTicker(period)}
}

func (k *Ticker) Wait(ctx context.Context) error {
	select {
	case <-k.t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

func (k *Ticker) Stop() {
	k.t.Stop()
}

// ClockFactory builds one Clock per run.
type ClockFactory func(period time.Duration) Clock

func wallClock(period time.Duration) Clock {
	return NewTicker(period)
}
