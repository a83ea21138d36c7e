// Package dsa implements Dynamic Sleep Adjustment (spec.md §4.4, C4): a
// per-display sleep multiplier that learns the smallest inter-transaction
// delay a monitor tolerates, persisted across runs and keyed by EDID
// identity.
package dsa

import (
	"sync"
	"time"
)

const (
	MinMultiplier = 0.1
	MaxMultiplier = 10.0

	// Base delays derived from DDC/CI timing requirements (spec.md §4.4).
	BaseWriteToRead       = 40 * time.Millisecond
	BaseNextWrite         = 50 * time.Millisecond
	BaseCapabilitiesReply = 50 * time.Millisecond

	increaseFactor = 2.0
	decreaseFactor = 0.9
	// decreaseDwell is the number of consecutive first-attempt successes
	// required before a decrease step — the chosen resolution of spec.md
	// §9 open question (a): slow decrease, fast increase.
	decreaseDwell = 10
)

// Kind names a base delay this sleeper knows how to scale.
type Kind int

const (
	KindWriteToRead Kind = iota
	KindNextWrite
	KindCapabilitiesReply
)

func baseFor(k Kind) time.Duration {
	switch k {
	case KindWriteToRead:
		return BaseWriteToRead
	case KindCapabilitiesReply:
		return BaseCapabilitiesReply
	default:
		return BaseNextWrite
	}
}

// Sleeper is the per-display tuning state (spec.md §3 "Per-Display
// Tuning Data"). Mutated only under mu, which stands in for "the
// display's lock" (C5) from the DSA state's point of view.
type Sleeper struct {
	mu             sync.Mutex
	multiplier     float64
	userOverride   bool
	successStreak  int
	attemptCounter uint64
	retryCounter   uint64
}

// New creates a Sleeper seeded at multiplier 1.0 (no persisted state
// found yet, or first time seeing this display).
func New() *Sleeper {
	return &Sleeper{multiplier: 1.0}
}

// NewSeeded creates a Sleeper pre-loaded with a persisted multiplier.
func NewSeeded(multiplier float64) *Sleeper {
	return &Sleeper{multiplier: clamp(multiplier)}
}

func clamp(m float64) float64 {
	if m < MinMultiplier {
		return MinMultiplier
	}
	if m > MaxMultiplier {
		return MaxMultiplier
	}
	return m
}

// Multiplier returns the current multiplier.
func (s *Sleeper) Multiplier() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multiplier
}

// SetUserOverride pins the multiplier exactly and disables automatic
// motion (spec.md §4.4, §9 open question (c): "user pin overrides
// adaptation entirely").
func (s *Sleeper) SetUserOverride(m float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multiplier = clamp(m)
	s.userOverride = true
}

// ClearUserOverride re-enables automatic adjustment.
func (s *Sleeper) ClearUserOverride() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userOverride = false
	s.successStreak = 0
}

// Delay returns the sleep duration to apply for kind given the current
// multiplier.
func (s *Sleeper) Delay(kind Kind) time.Duration {
	m := s.Multiplier()
	return time.Duration(float64(baseFor(kind)) * m)
}

// Sleep blocks for Delay(kind). Split out from Delay so tests can
// observe the computed duration without actually sleeping.
func (s *Sleeper) Sleep(kind Kind) {
	time.Sleep(s.Delay(kind))
}

// Observe feeds back the outcome of one logical operation: tries is the
// number of attempts it took (1 == succeeded on the first try). The
// rolling-window rule of spec.md §4.4: any attempt beyond the first
// increases the multiplier immediately; a long run of first-try
// successes eventually decreases it.
func (s *Sleeper) Observe(tries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptCounter += uint64(tries)
	if s.userOverride {
		return
	}
	if tries > 1 {
		s.retryCounter += uint64(tries - 1)
		s.multiplier = clamp(s.multiplier * increaseFactor)
		s.successStreak = 0
		return
	}
	s.successStreak++
	if s.successStreak >= decreaseDwell {
		s.multiplier = clamp(s.multiplier * decreaseFactor)
		s.successStreak = 0
	}
}

// Counters returns the lifetime attempt/retry totals, for persistence
// and for stats reporting.
func (s *Sleeper) Counters() (attempts, retries uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptCounter, s.retryCounter
}
