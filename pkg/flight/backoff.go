package flight

import (
	"math/rand"
	"sync"
	"time"
)

// Retransmit timer defaults (RFC 6347 section 4.2.4.1).
const (
	// InitialTimeout is the wait before the first retransmission.
	InitialTimeout = 1 * time.Second

	// MaxTimeout caps the doubled wait.
	MaxTimeout = 60 * time.Second

	// TimeoutMultiplier is applied after every retransmission.
	TimeoutMultiplier = 2.0
)

// BackoffConfig customizes the retransmit timer. Zero fields take the
// defaults; Jitter is a fraction of the base wait added at random and
// defaults to none.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Backoff is the doubling retransmit timer of a flight.
type Backoff struct {
	mu sync.Mutex

	// base wait before jitter
	current time.Duration

	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64

	// retransmissions since the last Reset
	attempts int

	rng *rand.Rand
}

// NewBackoff returns a timer with the RFC defaults and no jitter.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{})
}

// NewBackoffWithConfig returns a timer with custom settings.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialTimeout
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxTimeout
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = TimeoutMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		current:    cfg.Initial,
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the current wait (with jitter), then doubles the base wait
// and counts one retransmission.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)

	b.attempts++
	b.current = min(time.Duration(float64(b.current)*b.multiplier), b.max)

	return delay
}

// Peek returns the current wait (with jitter) without advancing.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addJitter(b.current)
}

// Reset restores the initial wait. Called whenever a new flight is awaited.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the retransmissions since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the base wait without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.jitter*b.rng.Float64())
}

// Schedule returns the base waits from the initial value up to and including
// the first capped one.
func (b *Backoff) Schedule() []time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []time.Duration
	for d := b.initial; ; d = min(time.Duration(float64(d)*b.multiplier), b.max) {
		out = append(out, d)
		if d >= b.max {
			return out
		}
	}
}
