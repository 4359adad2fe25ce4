// Package breaker gates per-source scraping behind circuit breakers.
// Each source owns one breaker; the orchestrator consults it before every
// list-page fetch and reports the outcome afterwards. State handling is
// delegated to sony/gobreaker; this package adds the pairing between a
// check and its later verdict, double-counting for anti-bot blocks, and
// the retry executor in retry.go.
package breaker

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"oppradar/internal/source"
)

// Breaker states as reported by State and the health check.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// Settings tunes one breaker. Zero values fall back to the defaults.
type Settings struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit.
	FailureThreshold uint32
	// ResetTimeout is how long an open circuit refuses calls before the
	// next check moves it to half-open.
	ResetTimeout time.Duration
	// HalfOpenMaxCalls is both the probe budget in half-open and the
	// consecutive successes needed to close again.
	HalfOpenMaxCalls uint32
}

// DefaultSettings returns the standard tuning.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		ResetTimeout:     300 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.FailureThreshold == 0 {
		s.FailureThreshold = d.FailureThreshold
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = d.ResetTimeout
	}
	if s.HalfOpenMaxCalls == 0 {
		s.HalfOpenMaxCalls = d.HalfOpenMaxCalls
	}
	return s
}

// Breaker is the health gate for one source. Calls for a single source are
// serialized by the orchestrator, so one pending verdict slot suffices;
// a stray unmatched CanExecute is settled by the next verdict.
type Breaker struct {
	name string
	cb   *gobreaker.TwoStepCircuitBreaker
	log  *zap.Logger

	mu      sync.Mutex
	pending func(success bool)
}

// New builds a breaker for sourceName.
func New(sourceName string, s Settings, log *zap.Logger) *Breaker {
	s = s.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	b := &Breaker{name: sourceName, log: log}
	b.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        sourceName,
		MaxRequests: s.HalfOpenMaxCalls,
		Timeout:     s.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("breaker state change",
				zap.String("source", name),
				zap.String("from", stateName(from)),
				zap.String("to", stateName(to)))
		},
	})
	return b
}

// Name returns the source this breaker guards.
func (b *Breaker) Name() string { return b.name }

// State reports closed, open, or half_open.
func (b *Breaker) State() string {
	return stateName(b.cb.State())
}

// CanExecute reports whether a call may proceed. A true result reserves a
// verdict slot that RecordSuccess or RecordFailure settles.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		b.log.Warn("breaker check without verdict for previous call",
			zap.String("source", b.name))
		b.pending = nil
	}
	done, err := b.cb.Allow()
	if err != nil {
		return false
	}
	b.pending = done
	return true
}

// RecordSuccess reports a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settle(true)
}

// RecordFailure reports a failed call. Anti-bot blocks count double so a
// wall that keeps serving challenges opens the circuit sooner.
func (b *Breaker) RecordFailure(kind source.Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settle(false)
	if kind == source.KindBlockedByAntiBot {
		b.settle(false)
	}
}

// settle delivers one verdict, preferring the slot reserved by CanExecute
// and otherwise opening a fresh one. An open circuit swallows the verdict.
func (b *Breaker) settle(success bool) {
	if b.pending != nil {
		done := b.pending
		b.pending = nil
		done(success)
		return
	}
	if done, err := b.cb.Allow(); err == nil {
		done(success)
	}
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateOpen
	}
}

// Group hands out one breaker per source, created lazily with shared
// settings.
type Group struct {
	settings Settings
	log      *zap.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGroup builds an empty group.
func NewGroup(s Settings, log *zap.Logger) *Group {
	if log == nil {
		log = zap.NewNop()
	}
	return &Group{
		settings: s.withDefaults(),
		log:      log,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the breaker for sourceName, creating it on first use.
func (g *Group) For(sourceName string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.breakers[sourceName]; ok {
		return b
	}
	b := New(sourceName, g.settings, g.log)
	g.breakers[sourceName] = b
	return b
}

// States snapshots every known breaker's state, keyed by source name.
func (g *Group) States() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]string, len(g.breakers))
	for name, b := range g.breakers {
		out[name] = b.State()
	}
	return out
}
