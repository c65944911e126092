package snipe

import (
	"time"

	"remark-bot/pkg/remark"
)

// ExpiryPolicy decides when a recorded state falls out of the snipe window.
type ExpiryPolicy struct {
	maxAge time.Duration
	clock  func() time.Time
}

// NewExpiryPolicy creates a policy with the given retention window.
func NewExpiryPolicy(maxAge time.Duration, clock func() time.Time) ExpiryPolicy {
	if clock == nil {
		clock = time.Now
	}

	return ExpiryPolicy{maxAge: maxAge, clock: clock}
}

// Expired reports whether state has aged past the window. lenience extends
// the window for this one check; zero lenience is the strict policy.
func (p ExpiryPolicy) Expired(state remark.MessageState, lenience time.Duration) bool {
	return state.ChangedAt.Add(p.maxAge + lenience).Before(p.clock())
}

// MaxAge returns the configured retention window.
func (p ExpiryPolicy) MaxAge() time.Duration {
	return p.maxAge
}
