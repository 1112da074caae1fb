// Package ratelimit paces interactions with the storefront so clicks do not
// arrive at machine speed.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// ClickPacer enforces a random gap in [minDelay, maxDelay) between actions.
// The first action is never delayed.
type ClickPacer struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
	rng        *rand.Rand
}

func NewClickPacer(minDelay, maxDelay time.Duration) *ClickPacer {
	return &ClickPacer{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *ClickPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastAction.IsZero() {
		elapsed := time.Since(p.lastAction)
		if delay := p.nextDelay(); elapsed < delay {
			timer := time.NewTimer(delay - elapsed)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	p.lastAction = time.Now()
	return nil
}

func (p *ClickPacer) SetDelay(min, max time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.minDelay = min
	p.maxDelay = max
}

func (p *ClickPacer) nextDelay() time.Duration {
	if p.maxDelay <= p.minDelay {
		return p.minDelay
	}
	return p.minDelay + time.Duration(p.rng.Int63n(int64(p.maxDelay-p.minDelay)))
}

// Nop never waits. It is used when pacing is disabled and in tests.
type Nop struct{}

func (Nop) Wait(ctx context.Context) error { return ctx.Err() }

func (Nop) SetDelay(time.Duration, time.Duration) {}
