package fincert

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum gap between two sends. One Pacer is shared by
// every call of a process.
//
// Concurrency: Safe for concurrent use. Concurrent callers are admitted one
// at a time, each at least Interval after the previous send.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	clock    Clock
	next     time.Time
}

// NewPacer returns a pacer that lets the first send through at once.
func NewPacer(interval time.Duration, clock Clock) *Pacer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Pacer{interval: interval, clock: clock}
}

// Interval returns the configured gap.
func (p *Pacer) Interval() time.Duration { return p.interval }

// Wait blocks until the next send is allowed and reserves the slot until
// MarkSent moves it past the send. The lock is held while sleeping so
// waiters queue in order.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d := p.next.Sub(p.clock.Now()); d > 0 {
		if err := p.clock.Sleep(ctx, d); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.next = p.clock.Now().Add(p.interval)
	return nil
}

// MarkSent records a send that just completed.
func (p *Pacer) MarkSent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = p.clock.Now().Add(p.interval)
}

// NextAllowed returns the earliest time the next send may start.
func (p *Pacer) NextAllowed() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}
