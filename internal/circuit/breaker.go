// Package circuit implements a circuit breaker guarding calls to remote
// storage. When the remote keeps failing, the breaker opens and callers fail
// fast instead of stacking up timed-out range reads.
package circuit

import (
	"context"
	"sync"
	"time"

	"github.com/stratumdb/stratumdb/pkg/errors"
	"github.com/stratumdb/stratumdb/pkg/utils"
)

var logger = utils.GetLogger("stratumdb")

// State is the breaker's position.
type State int

const (
	// StateClosed passes requests through.
	StateClosed State = iota
	// StateOpen rejects requests outright.
	StateOpen
	// StateHalfOpen lets a bounded number of probes through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Counts tracks request outcomes within the current state.
type Counts struct {
	Requests            uint32
	Successes           uint32
	Failures            uint32
	ConsecutiveFailures uint32
}

// Config tunes breaker behavior. Zero values select the defaults.
type Config struct {
	// MaxProbes bounds concurrent requests in the half-open state.
	MaxProbes uint32 `yaml:"max_probes"`

	// Interval resets the closed-state counts, so old failures age out.
	Interval time.Duration `yaml:"interval"`

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration `yaml:"timeout"`

	// TripAfter is the consecutive-failure count that opens the breaker.
	TripAfter uint32 `yaml:"trip_after"`
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name string
	cfg  Config

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

// NewBreaker creates a closed breaker named for its protected dependency.
func NewBreaker(name string, cfg Config) *Breaker {
	if cfg.MaxProbes == 0 {
		cfg.MaxProbes = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TripAfter == 0 {
		cfg.TripAfter = 5
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		state:  StateClosed,
		expiry: time.Now().Add(cfg.Interval),
	}
}

// Do runs fn unless the breaker is open. A rejection is a non-retryable
// error carrying ErrCodeCircuitOpen; fn's own error passes through.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.advance(now)

	switch b.state {
	case StateOpen:
		return errors.Newf(errors.ErrCodeCircuitOpen, "%s breaker is open", b.name).
			WithComponent("circuit")
	case StateHalfOpen:
		if b.counts.Requests >= b.cfg.MaxProbes {
			return errors.Newf(errors.ErrCodeCircuitOpen, "%s breaker probe budget exhausted", b.name).
				WithComponent("circuit")
		}
	}
	b.counts.Requests++
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.advance(now)

	if success {
		b.counts.Successes++
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	switch b.state {
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.cfg.TripAfter {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.transition(StateOpen, now)
	}
}

// advance applies time-driven transitions; callers hold b.mu.
func (b *Breaker) advance(now time.Time) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.counts = Counts{}
			b.expiry = now.Add(b.cfg.Interval)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.transition(StateHalfOpen, now)
		}
	}
}

func (b *Breaker) transition(state State, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.counts = Counts{}

	switch state {
	case StateClosed:
		b.expiry = now.Add(b.cfg.Interval)
	case StateOpen:
		b.expiry = now.Add(b.cfg.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}
	logger.Warnf("%s breaker %s -> %s", b.name, prev, state)
}

// State reports the breaker's current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(time.Now())
	return b.state
}

// Counts returns a snapshot of the current window's outcomes.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Reset force-closes the breaker and clears its counts.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed, time.Now())
	b.counts = Counts{}
}
