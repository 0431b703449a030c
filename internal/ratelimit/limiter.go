// Package ratelimit bounds calls to the external grading service with
// a fixed-window limiter: at most N permits outstanding per window,
// excess callers queue up to a bound and are served oldest-first.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the wait queue bound is exceeded.
	// Callers should fail fast and retry later.
	ErrQueueFull = errors.New("rate limiter queue is full")

	// ErrClosed is returned when the limiter has been shut down.
	ErrClosed = errors.New("rate limiter is closed")
)

// Permit is a token for one call to the external service. It must be
// released exactly once regardless of how the call turns out; a leaked
// permit permanently shrinks capacity until the next window refill.
type Permit struct {
	limiter *Limiter
	once    sync.Once
}

// Release returns the permit. Safe to call more than once; only the
// first call has effect.
func (p *Permit) Release() {
	p.once.Do(func() {
		select {
		case p.limiter.permits <- struct{}{}:
		default:
			// Window refill already restored capacity.
		}
	})
}

// Limiter is a fixed-window rate limiter with a bounded FIFO wait
// queue. Capacity is restored both by Release and by the window refill,
// never exceeding the configured limit.
type Limiter struct {
	permits chan struct{}
	queue   chan struct{}
	window  time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a limiter allowing limit permits per window, queueing up
// to queueLimit waiting callers.
func New(limit int, window time.Duration, queueLimit int) *Limiter {
	l := &Limiter{
		permits: make(chan struct{}, limit),
		queue:   make(chan struct{}, queueLimit),
		window:  window,
		done:    make(chan struct{}),
	}
	for i := 0; i < limit; i++ {
		l.permits <- struct{}{}
	}
	go l.refill()
	return l
}

// Acquire returns a permit, waiting in the queue if none is available.
// It fails with ErrQueueFull when the queue bound is exceeded, or with
// the context's error if cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) (*Permit, error) {
	select {
	case <-l.done:
		return nil, ErrClosed
	default:
	}

	// Fast path
	select {
	case <-l.permits:
		return &Permit{limiter: l}, nil
	default:
	}

	select {
	case l.queue <- struct{}{}:
	default:
		return nil, ErrQueueFull
	}
	defer func() { <-l.queue }()

	select {
	case <-l.permits:
		return &Permit{limiter: l}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, ErrClosed
	}
}

// Close shuts the limiter down. Waiting callers fail with ErrClosed.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

func (l *Limiter) refill() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.topUp()
		case <-l.done:
			return
		}
	}
}

func (l *Limiter) topUp() {
	for {
		select {
		case l.permits <- struct{}{}:
		default:
			return
		}
	}
}
