package ratelimit

import (
	"context"
	"time"
)

// Action identifies the verification channel a failure counter belongs to.
//
// Each action has its own budget so abuse of one channel cannot lock a user
// out of another.
type Action string

const (
	// ActionTOTP covers authenticator-app code verification.
	ActionTOTP Action = "totp"
	// ActionSMS covers SMS one-time-password verification.
	ActionSMS Action = "sms"
	// ActionBackup covers backup-code verification.
	ActionBackup Action = "backup"
)

func (a Action) String() string {
	return string(a)
}

// Policy configures the attempt budget for a single action.
type Policy struct {
	// MaxAttempts is the number of failures tolerated within Window before
	// the action is locked.
	MaxAttempts int
	// Window is how long failures accumulate before the counter expires.
	Window time.Duration
	// Lockout is how long the action stays refused once MaxAttempts is hit.
	Lockout time.Duration
}

// Status reports the outcome of a limiter consultation.
type Status struct {
	// Allowed is false while the action is locked out.
	Allowed bool
	// Remaining is the attempts left before the next lockout.
	Remaining int
	// ResetAt is when the active lockout ends; zero when not locked.
	ResetAt time.Time
}

// Store persists failure counters and lockout markers.
//
// Counters must survive process restarts in multi-instance deployments, so
// the production implementation is Redis; the memory implementation exists
// for tests and single-instance setups.
type Store interface {
	// Incr atomically increments the failure counter, starting the window on
	// the first failure, and returns the new count.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Count returns the current failure count (zero when the window expired).
	Count(ctx context.Context, key string) (int64, error)
	// Lock marks the key locked for ttl.
	Lock(ctx context.Context, key string, ttl time.Duration) error
	// LockTTL returns the remaining lockout duration, or zero when unlocked.
	LockTTL(ctx context.Context, key string) (time.Duration, error)
	// Reset removes the given keys.
	Reset(ctx context.Context, keys ...string) error
}
