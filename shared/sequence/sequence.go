// Package sequence allocates human-readable ticket identifiers
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
)

const (
	// TicketCounter is the counter document backing ticket ids
	TicketCounter = "ticketId"

	defaultAttempts = 5
	defaultBackoff  = 50 * time.Millisecond
)

// ErrExhausted is returned when the counter could not be advanced within the retry budget
var ErrExhausted = errors.New("ticket sequence unavailable")

// Allocator formats counter values as TK-0001, TK-0002, ...
// A failed increment is retried with exponential backoff. It never falls
// back to a made-up value, so ids stay unique and ordered.
type Allocator struct {
	counters    store.Counters
	name        string
	maxAttempts int
	baseBackoff time.Duration
}

// Option customizes an Allocator
type Option func(*Allocator)

// WithRetry overrides the attempt count and the first backoff delay
func WithRetry(attempts int, base time.Duration) Option {
	return func(a *Allocator) {
		if attempts > 0 {
			a.maxAttempts = attempts
		}
		if base >= 0 {
			a.baseBackoff = base
		}
	}
}

// NewAllocator creates an allocator over the ticket counter
func NewAllocator(counters store.Counters, opts ...Option) *Allocator {
	a := &Allocator{
		counters:    counters,
		name:        TicketCounter,
		maxAttempts: defaultAttempts,
		baseBackoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Format renders a counter value as a ticket id
func Format(n int64) string {
	return fmt.Sprintf("TK-%04d", n)
}

// Next returns the next ticket id
func (a *Allocator) Next(ctx context.Context) (string, error) {
	var lastErr error
	delay := a.baseBackoff

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		n, err := a.counters.Next(ctx, a.name)
		if err == nil {
			return Format(n), nil
		}
		lastErr = err

		logrus.WithFields(logrus.Fields{
			"counter": a.name,
			"attempt": attempt,
			"error":   err,
		}).Warn("Ticket sequence increment failed")

		if attempt == a.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrExhausted, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrExhausted, a.maxAttempts, lastErr)
}
