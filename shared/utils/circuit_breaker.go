package utils

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CircuitState represents the state of the circuit breaker
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

var (
	// ErrCircuitOpen is returned when circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when a trial call is already running in half-open state
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// CircuitBreaker stops calling a failing dependency for resetTimeout after
// maxFailures consecutive errors, then lets a single trial call through
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mutex       sync.Mutex
	state       CircuitState
	failures    int
	openedAt    time.Time
	trialActive bool
}

// NewCircuitBreaker creates a new circuit breaker guarding the named dependency
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        StateClosed,
	}
}

// Call executes fn unless the circuit is open
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.trialActive {
			return ErrTooManyRequests
		}
		cb.trialActive = true
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateHalfOpen {
		cb.trialActive = false
		if err != nil {
			cb.trip()
		} else {
			cb.failures = 0
			cb.transition(StateClosed)
		}
		return
	}

	if err == nil {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	if cb.state == to {
		return
	}
	logrus.WithFields(logrus.Fields{
		"breaker": cb.name,
		"from":    cb.state,
		"to":      to,
	}).Warn("Circuit breaker state change")
	cb.state = to
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Reset resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
	cb.trialActive = false
}
