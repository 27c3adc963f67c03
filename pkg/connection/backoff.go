package connection

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// Default reconnect delays for control sessions.
const (
	// InitialBackoff is the first reconnection delay.
	InitialBackoff = 1 * time.Second

	// MaxBackoff caps the reconnection delay.
	MaxBackoff = 60 * time.Second

	// BackoffMultiplier is the factor by which the delay grows.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of the base delay.
	JitterFactor = 0.25
)

// ErrInvalidBackoff is returned by BackoffConfig.Validate.
var ErrInvalidBackoff = errors.New("invalid backoff config")

// BackoffConfig configures a Backoff.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	// Jitter adds up to Jitter*delay on top of each delay. Zero disables it.
	Jitter float64
}

// DefaultBackoffConfig returns 1s doubling up to 60s with 25% jitter.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    InitialBackoff,
		Max:        MaxBackoff,
		Multiplier: BackoffMultiplier,
		Jitter:     JitterFactor,
	}
}

// Validate checks the configuration.
func (c BackoffConfig) Validate() error {
	switch {
	case c.Initial <= 0:
		return errors.Join(ErrInvalidBackoff, errors.New("initial delay must be positive"))
	case c.Max < c.Initial:
		return errors.Join(ErrInvalidBackoff, errors.New("max delay below initial delay"))
	case c.Multiplier < 1:
		return errors.Join(ErrInvalidBackoff, errors.New("multiplier below 1"))
	case c.Jitter < 0 || c.Jitter > 1:
		return errors.Join(ErrInvalidBackoff, errors.New("jitter outside [0,1]"))
	}
	return nil
}

// Backoff calculates exponential backoff delays with jitter.
// It is safe for concurrent use.
type Backoff struct {
	mu sync.Mutex

	cfg      BackoffConfig
	current  time.Duration
	attempts int
}

// NewBackoff creates a backoff with DefaultBackoffConfig.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(DefaultBackoffConfig())
}

// NewBackoffWithConfig creates a backoff. Invalid fields fall back to
// their defaults.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	def := DefaultBackoffConfig()
	if cfg.Initial <= 0 {
		cfg.Initial = def.Initial
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = max(def.Max, cfg.Initial)
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Backoff{cfg: cfg, current: cfg.Initial}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.jittered(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * b.cfg.Multiplier)
	if next > b.cfg.Max {
		next = b.cfg.Max
	}
	b.current = next

	return delay
}

// Reset returns to the initial delay. Call it after a successful connect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.current = b.cfg.Initial
	b.attempts = 0
	b.mu.Unlock()
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the current base delay (without jitter).
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Backoff) jittered(d time.Duration) time.Duration {
	if b.cfg.Jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.cfg.Jitter*rand.Float64())
}
