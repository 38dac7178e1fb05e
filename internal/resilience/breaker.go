// Package resilience keeps failing optional collaborators out of the match
// path.
//
// A [Breaker] counts consecutive failures of one dependency. Once it opens,
// calls are rejected with [ErrOpen] until the cooldown has passed, after
// which a single probe call decides whether it closes again. [GuardTagger]
// and [GuardSimilarity] put a breaker in front of the matcher's entity
// tagger and similarity model, so an unreachable LLM or embeddings API costs
// one timeout per cooldown instead of one per statement.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned instead of calling the dependency while a breaker is
// open.
var ErrOpen = errors.New("resilience: breaker open")

// Defaults used when a [Config] field is zero.
const (
	DefaultMaxFailures = 3
	DefaultCooldown    = 30 * time.Second
)

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects calls until the cooldown has passed.
	Open

	// Probing lets exactly one call through to test the dependency.
	Probing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Probing:
		return "probing"
	}
	return "unknown"
}

// Config tunes a [Breaker].
type Config struct {
	// Name labels log lines, e.g. "tagger".
	Name string

	// MaxFailures is the number of consecutive failures that open the
	// breaker.
	MaxFailures int

	// Cooldown is how long the breaker stays open before a probe.
	Cooldown time.Duration
}

// Breaker is a consecutive-failure circuit breaker. Safe for concurrent use.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// NewBreaker returns a closed breaker.
func NewBreaker(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// Do calls fn unless the breaker is open. While probing, concurrent callers
// other than the probe are rejected.
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = Probing
		slog.Info("breaker probing", "name", b.name)
		return true
	case Probing:
		return false
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A caller giving up says nothing about the dependency.
	if errors.Is(err, context.Canceled) {
		if b.state == Probing {
			b.state = Open
		}
		return
	}

	if err == nil {
		if b.state == Probing {
			slog.Info("breaker closed", "name", b.name)
		}
		b.state = Closed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == Probing || b.failures >= b.maxFailures {
		if b.state != Open {
			slog.Warn("breaker opened", "name", b.name, "consecutive_failures", b.failures, "cooldown", b.cooldown)
		}
		b.state = Open
		b.openedAt = b.now()
	}
}

// State returns the current state. An open breaker whose cooldown has passed
// still reports Open until the next call turns it into a probe.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
