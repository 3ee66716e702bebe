// Package breaker implements a per-provider circuit breaker: after enough
// consecutive upstream failures, calls trip the breaker open and are
// short-circuited locally until a cool-down elapses, instead of continuing
// to hammer a provider that's already down.
package breaker

import (
	"sync"
	"time"

	"github.com/aristath/marketcore/internal/clock"
)

// State is the breaker's current posture toward a provider.
type State int

const (
	// Closed: calls pass through normally.
	Closed State = iota
	// Open: calls are short-circuited without reaching the provider.
	Open
	// HalfOpen: the cool-down elapsed; exactly one trial call is allowed
	// through to test whether the provider has recovered.
	HalfOpen
)

// Config tunes one breaker instance.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker from Closed to Open.
	FailureThreshold int
	// CoolDown is how long the breaker stays Open before allowing a
	// HalfOpen trial call.
	CoolDown time.Duration
}

// DefaultConfig trips after 5 consecutive failures and cools down for 2 minutes.
var DefaultConfig = Config{FailureThreshold: 5, CoolDown: 2 * time.Minute}

type providerState struct {
	consecutiveFailures int
	state               State
	openedAt            time.Time
	halfOpenInFlight    bool
}

// Registry holds one breaker per provider name.
type Registry struct {
	mu      sync.Mutex
	states  map[string]*providerState
	configs map[string]Config
	clk     clock.Clock
}

// NewRegistry creates a breaker Registry. configs maps provider name to its
// Config; a provider absent from configs uses DefaultConfig.
func NewRegistry(configs map[string]Config, clk clock.Clock) *Registry {
	return &Registry{
		states:  make(map[string]*providerState),
		configs: configs,
		clk:     clk,
	}
}

func (r *Registry) configFor(provider string) Config {
	if cfg, ok := r.configs[provider]; ok {
		return cfg
	}
	return DefaultConfig
}

func (r *Registry) stateFor(provider string) *providerState {
	s, ok := r.states[provider]
	if !ok {
		s = &providerState{state: Closed}
		r.states[provider] = s
	}
	return s
}

// Allow reports whether a call to provider may proceed right now. It also
// performs the Open -> HalfOpen transition once the cool-down has elapsed.
// When it returns true for a breaker in HalfOpen, the caller is the single
// trial call and MUST report the outcome via RecordSuccess/RecordFailure.
func (r *Registry) Allow(provider string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := r.configFor(provider)
	s := r.stateFor(provider)

	switch s.state {
	case Closed:
		return true
	case Open:
		if r.clk.Now().Sub(s.openedAt) < cfg.CoolDown {
			return false
		}
		s.state = HalfOpen
		s.halfOpenInFlight = true
		return true
	case HalfOpen:
		return false // a trial call is already in flight
	default:
		return true
	}
}

// RecordSuccess resets the breaker to Closed with a clean failure count.
func (r *Registry) RecordSuccess(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stateFor(provider)
	s.consecutiveFailures = 0
	s.state = Closed
	s.halfOpenInFlight = false
}

// RecordFailure increments the consecutive failure count and trips the
// breaker open if it crosses the configured threshold, or re-opens it
// immediately if the failing call was the HalfOpen trial.
func (r *Registry) RecordFailure(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := r.configFor(provider)
	s := r.stateFor(provider)

	if s.halfOpenInFlight {
		s.halfOpenInFlight = false
		s.state = Open
		s.openedAt = r.clk.Now()
		return
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= cfg.FailureThreshold {
		s.state = Open
		s.openedAt = r.clk.Now()
	}
}

// StateOf reports the current breaker state for provider, for admin/metrics
// surfacing.
func (r *Registry) StateOf(provider string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateFor(provider).state
}
