// Package lockout holds the progressive account lockout state machine.
//
// Policy is a pure transition function over (failed attempts, lock expiry).
// It performs no I/O; callers apply the resulting State through one atomic
// store mutation together with any revocation an escalation demands.
package lockout

import (
	"errors"
	"time"
)

// Config holds thresholds and durations for the two lockout tiers.
type Config struct {
	SoftThreshold int
	SoftDuration  time.Duration
	HardThreshold int
	HardDuration  time.Duration
}

// DefaultConfig locks for 10 minutes from the 3rd consecutive failure and
// for 30 minutes at the 6th.
func DefaultConfig() Config {
	return Config{
		SoftThreshold: 3,
		SoftDuration:  10 * time.Minute,
		HardThreshold: 6,
		HardDuration:  30 * time.Minute,
	}
}

// Validate checks threshold ordering and durations.
func (c Config) Validate() error {
	if c.SoftThreshold < 1 {
		return errors.New("lockout soft threshold must be >= 1")
	}
	if c.HardThreshold <= c.SoftThreshold {
		return errors.New("lockout hard threshold must exceed soft threshold")
	}
	if c.SoftDuration <= 0 || c.HardDuration <= 0 {
		return errors.New("lockout durations must be > 0")
	}
	return nil
}

// State is the lockout projection of an account. A zero LockUntil means no lock.
type State struct {
	FailedAttempts int
	LockUntil      time.Time
}

// Outcome reports what a failure transition did.
type Outcome struct {
	// Locked is true when the transition set a new LockUntil.
	Locked bool
	// Escalated is true at the hard tier. The caller must revoke the
	// session token presented with the failing attempt.
	Escalated bool
}

// Policy applies Config to lockout states.
type Policy struct {
	config Config
}

// New returns a Policy for cfg.
func New(cfg Config) Policy {
	return Policy{config: cfg}
}

// Locked reports whether s blocks credential checks at now.
func (p Policy) Locked(s State, now time.Time) bool {
	return !s.LockUntil.IsZero() && s.LockUntil.After(now)
}

// OnSuccess clears the counter and any lock.
func (p Policy) OnSuccess(State) State {
	return State{}
}

// OnFailure counts one failed credential check. At the hard tier the
// counter restarts from zero; at the soft tier it keeps counting.
func (p Policy) OnFailure(s State, now time.Time) (State, Outcome) {
	next := State{
		FailedAttempts: s.FailedAttempts + 1,
		LockUntil:      s.LockUntil,
	}

	switch {
	case next.FailedAttempts >= p.config.HardThreshold:
		next.FailedAttempts = 0
		next.LockUntil = now.Add(p.config.HardDuration)
		return next, Outcome{Locked: true, Escalated: true}
	case next.FailedAttempts >= p.config.SoftThreshold:
		next.LockUntil = now.Add(p.config.SoftDuration)
		return next, Outcome{Locked: true}
	default:
		return next, Outcome{}
	}
}
