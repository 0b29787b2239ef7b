// Package breaker implements the per-endpoint circuit breaker registry
// (C4): a three-state (Closed/Open/HalfOpen) state machine gating
// upstream calls, matching the transition table in the component design.
package breaker

import (
	"sync"
	"time"

	"usdfcterminal/domain"
)

// Config parametrizes every breaker instance in a Registry.
type Config struct {
	FailureThreshold  int
	FailureWindow     time.Duration
	OpenTimeout       time.Duration
	HalfOpenTimeout   time.Duration
}

// DefaultConfig mirrors typical production tuning: trip after 3
// failures within a 30s window, stay open for 30s before probing.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		FailureWindow:    30 * time.Second,
		OpenTimeout:      30 * time.Second,
		HalfOpenTimeout:  10 * time.Second,
	}
}

type breakerState struct {
	mu               sync.Mutex
	state            domain.CircuitStateName
	failureCount     int
	lastFailureAt    time.Time
	hasLastFailure   bool
	lastTransitionAt time.Time
}

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Registry owns one breakerState per endpoint name, created lazily on
// first use.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*breakerState
	cfg      Config
	now      Clock
}

// NewRegistry constructs a Registry with the given config. now defaults
// to time.Now when nil.
func NewRegistry(cfg Config, now Clock) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		breakers: make(map[string]*breakerState),
		cfg:      cfg,
		now:      now,
	}
}

func (r *Registry) get(endpoint string) *breakerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[endpoint]
	if !ok {
		b = &breakerState{state: domain.StateClosed, lastTransitionAt: r.now()}
		r.breakers[endpoint] = b
	}
	return b
}

// ShouldAllow reports whether a call to endpoint may proceed, advancing
// the state machine (Open -> HalfOpen) if the open timeout has elapsed.
func (r *Registry) ShouldAllow(endpoint string) bool {
	b := r.get(endpoint)
	now := r.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.StateClosed:
		if b.hasLastFailure && now.Sub(b.lastFailureAt) >= r.cfg.FailureWindow {
			b.failureCount = 0
			b.hasLastFailure = false
		}
		return true
	case domain.StateOpen:
		if now.Sub(b.lastTransitionAt) >= r.cfg.OpenTimeout {
			b.state = domain.StateHalfOpen
			b.lastTransitionAt = now
			return true
		}
		return false
	case domain.StateHalfOpen:
		return true
	default:
		return true
	}
}

// RecordSuccess reports a completed successful call against endpoint.
func (r *Registry) RecordSuccess(endpoint string) {
	b := r.get(endpoint)
	now := r.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.StateClosed:
		b.failureCount = 0
		b.hasLastFailure = false
	case domain.StateHalfOpen:
		b.state = domain.StateClosed
		b.failureCount = 0
		b.hasLastFailure = false
		b.lastTransitionAt = now
	}
}

// RecordFailure reports a completed failed call against endpoint.
func (r *Registry) RecordFailure(endpoint string) {
	b := r.get(endpoint)
	now := r.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = now
	b.hasLastFailure = true

	switch b.state {
	case domain.StateClosed:
		b.failureCount++
		if b.failureCount >= r.cfg.FailureThreshold {
			b.state = domain.StateOpen
			b.lastTransitionAt = now
		}
	case domain.StateHalfOpen:
		b.state = domain.StateOpen
		b.lastTransitionAt = now
		b.failureCount = r.cfg.FailureThreshold
	}
}

// Reset is an operator affordance: it forces endpoint's breaker back to
// Closed with a zeroed failure count, regardless of current state.
func (r *Registry) Reset(endpoint string) {
	b := r.get(endpoint)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = domain.StateClosed
	b.failureCount = 0
	b.hasLastFailure = false
	b.lastTransitionAt = r.now()
}

// Snapshot returns a read-only view of endpoint's current state, for the
// health endpoint and tests.
func (r *Registry) Snapshot(endpoint string) domain.CircuitState {
	b := r.get(endpoint)
	b.mu.Lock()
	defer b.mu.Unlock()

	out := domain.CircuitState{
		State:            b.state,
		FailureCount:     b.failureCount,
		LastTransitionAt: b.lastTransitionAt.Unix(),
	}
	if b.hasLastFailure {
		ts := b.lastFailureAt.Unix()
		out.LastFailureAt = &ts
	}
	return out
}
