// Package throttle counts failed login attempts per identifier and blocks
// the identifier for a fixed window once the threshold is reached.
//
// Counter updates are read-modify-write and not atomic across concurrent
// requests for the same key, so the effective threshold may be exceeded
// by a small margin. The throttle raises attacker cost; it is not a hard limit.
package throttle

import (
	"context"
	"math"
	"strings"
	"time"
)

const (
	MaxAttempts = 4
	BlockWindow = 5 * time.Minute
)

// Status describes an identifier after a check or a recorded failure.
type Status struct {
	Blocked   bool
	Remaining time.Duration
	Failures  int
}

// RetryAfterSeconds rounds Remaining up to whole seconds.
func (s Status) RetryAfterSeconds() int {
	if s.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(s.Remaining.Seconds()))
}

type Throttle interface {
	// Check reports whether key is currently blocked without mutating state.
	Check(ctx context.Context, key string) (Status, error)
	// RecordFailure increments the failure count and blocks key at MaxAttempts.
	RecordFailure(ctx context.Context, key string) (Status, error)
	// RecordSuccess drops every record for key.
	RecordSuccess(ctx context.Context, key string) error
}

// Key normalizes a login identifier.
func Key(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

type record struct {
	count        int
	lastTry      time.Time
	blockedUntil time.Time
}

func (r record) status(now time.Time) Status {
	st := Status{Failures: r.count}
	if now.Before(r.blockedUntil) {
		st.Blocked = true
		st.Remaining = r.blockedUntil.Sub(now)
	}
	return st
}

// fail applies one failure. The count survives a lapsed block, so the next
// failure after it re-blocks straight away.
func (r record) fail(now time.Time) record {
	r.count++
	r.lastTry = now
	if r.count >= MaxAttempts {
		r.blockedUntil = now.Add(BlockWindow)
	}
	return r
}
