package ratelimit

import (
	"context"
	"fmt"

	"github.com/gatekeyhq/gatekey/internal/pkg/clock"
)

// Limiter enforces per-user, per-action attempt budgets with lockouts.
//
// All methods fail closed: a store error is returned to the caller, which
// must treat it as a denial rather than waving the attempt through.
type Limiter struct {
	store    Store
	policies map[Action]Policy
	clock    clock.Clocker
}

// NewLimiter builds a limiter over store with the given per-action policies.
func NewLimiter(store Store, policies map[Action]Policy, clk clock.Clocker) *Limiter {
	return &Limiter{store: store, policies: policies, clock: clk}
}

// Check reports whether an attempt for the action is currently allowed.
// It does not consume budget.
func (l *Limiter) Check(ctx context.Context, userID int64, action Action) (Status, error) {
	pol, ok := l.policies[action]
	if !ok {
		return Status{}, fmt.Errorf("ratelimit: no policy for action %q", action)
	}

	counterKey, lockKey := l.keys(userID, action)

	ttl, err := l.store.LockTTL(ctx, lockKey)
	if err != nil {
		return Status{}, fmt.Errorf("ratelimit: read lock: %w", err)
	}
	if ttl > 0 {
		return Status{Allowed: false, Remaining: 0, ResetAt: l.clock.Now().Add(ttl)}, nil
	}

	count, err := l.store.Count(ctx, counterKey)
	if err != nil {
		return Status{}, fmt.Errorf("ratelimit: read counter: %w", err)
	}

	remaining := pol.MaxAttempts - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Status{Allowed: true, Remaining: remaining}, nil
}

// Fail records a failed attempt and transitions to lockout when the budget
// is exhausted.
func (l *Limiter) Fail(ctx context.Context, userID int64, action Action) (Status, error) {
	pol, ok := l.policies[action]
	if !ok {
		return Status{}, fmt.Errorf("ratelimit: no policy for action %q", action)
	}

	counterKey, lockKey := l.keys(userID, action)

	count, err := l.store.Incr(ctx, counterKey, pol.Window)
	if err != nil {
		return Status{}, fmt.Errorf("ratelimit: increment counter: %w", err)
	}

	if int(count) >= pol.MaxAttempts {
		if err := l.store.Lock(ctx, lockKey, pol.Lockout); err != nil {
			return Status{}, fmt.Errorf("ratelimit: set lock: %w", err)
		}

		return Status{Allowed: false, Remaining: 0, ResetAt: l.clock.Now().Add(pol.Lockout)}, nil
	}

	return Status{Allowed: true, Remaining: pol.MaxAttempts - int(count)}, nil
}

// Reset clears the failure counter and any lockout after a successful
// verification.
func (l *Limiter) Reset(ctx context.Context, userID int64, action Action) error {
	counterKey, lockKey := l.keys(userID, action)

	if err := l.store.Reset(ctx, counterKey, lockKey); err != nil {
		return fmt.Errorf("ratelimit: reset: %w", err)
	}

	return nil
}

func (l *Limiter) keys(userID int64, action Action) (counter, lock string) {
	counter = fmt.Sprintf("ratelimit:%s:%d", action, userID)

	return counter, counter + ":lock"
}
