package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeyhq/gatekey/internal/pkg/ratelimit"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter(pol ratelimit.Policy) (*ratelimit.Limiter, *fakeClock) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := ratelimit.NewMemoryStore(clk)
	policies := map[ratelimit.Action]ratelimit.Policy{ratelimit.ActionBackup: pol}

	return ratelimit.NewLimiter(store, policies, clk), clk
}

func TestLimiter_LockoutAfterMaxFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	lim, clk := newTestLimiter(ratelimit.Policy{
		MaxAttempts: 3,
		Window:      15 * time.Minute,
		Lockout:     30 * time.Minute,
	})

	for i := 0; i < 2; i++ {
		st, err := lim.Fail(ctx, 7, ratelimit.ActionBackup)
		require.NoError(t, err)
		assert.True(t, st.Allowed)
	}

	st, err := lim.Fail(ctx, 7, ratelimit.ActionBackup)
	require.NoError(t, err)
	assert.False(t, st.Allowed)
	assert.Equal(t, 0, st.Remaining)
	assert.Equal(t, clk.Now().Add(30*time.Minute), st.ResetAt)

	st, err = lim.Check(ctx, 7, ratelimit.ActionBackup)
	require.NoError(t, err)
	assert.False(t, st.Allowed)
	assert.Equal(t, clk.Now().Add(30*time.Minute), st.ResetAt)
}

func TestLimiter_LockoutExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	lim, clk := newTestLimiter(ratelimit.Policy{
		MaxAttempts: 1,
		Window:      10 * time.Minute,
		Lockout:     15 * time.Minute,
	})

	st, err := lim.Fail(ctx, 9, ratelimit.ActionBackup)
	require.NoError(t, err)
	require.False(t, st.Allowed)

	clk.Advance(15*time.Minute + time.Second)

	st, err = lim.Check(ctx, 9, ratelimit.ActionBackup)
	require.NoError(t, err)
	assert.True(t, st.Allowed)
}

func TestLimiter_ResetRestoresBudget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	lim, _ := newTestLimiter(ratelimit.Policy{
		MaxAttempts: 3,
		Window:      15 * time.Minute,
		Lockout:     30 * time.Minute,
	})

	_, err := lim.Fail(ctx, 3, ratelimit.ActionBackup)
	require.NoError(t, err)
	_, err = lim.Fail(ctx, 3, ratelimit.ActionBackup)
	require.NoError(t, err)

	require.NoError(t, lim.Reset(ctx, 3, ratelimit.ActionBackup))

	st, err := lim.Check(ctx, 3, ratelimit.ActionBackup)
	require.NoError(t, err)
	assert.True(t, st.Allowed)
	assert.Equal(t, 3, st.Remaining)
}

func TestLimiter_WindowExpiryClearsCounter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	lim, clk := newTestLimiter(ratelimit.Policy{
		MaxAttempts: 3,
		Window:      5 * time.Minute,
		Lockout:     5 * time.Minute,
	})

	_, err := lim.Fail(ctx, 11, ratelimit.ActionBackup)
	require.NoError(t, err)
	_, err = lim.Fail(ctx, 11, ratelimit.ActionBackup)
	require.NoError(t, err)

	clk.Advance(5*time.Minute + time.Second)

	st, err := lim.Fail(ctx, 11, ratelimit.ActionBackup)
	require.NoError(t, err)
	assert.True(t, st.Allowed)
	assert.Equal(t, 2, st.Remaining)
}

func TestLimiter_UsersAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	lim, _ := newTestLimiter(ratelimit.Policy{
		MaxAttempts: 1,
		Window:      time.Minute,
		Lockout:     time.Minute,
	})

	st, err := lim.Fail(ctx, 1, ratelimit.ActionBackup)
	require.NoError(t, err)
	require.False(t, st.Allowed)

	st, err = lim.Check(ctx, 2, ratelimit.ActionBackup)
	require.NoError(t, err)
	assert.True(t, st.Allowed)
}

func TestLimiter_UnknownActionFails(t *testing.T) {
	t.Parallel()

	lim, _ := newTestLimiter(ratelimit.Policy{MaxAttempts: 1, Window: time.Minute, Lockout: time.Minute})

	_, err := lim.Check(context.Background(), 1, ratelimit.Action("email"))
	assert.Error(t, err)
}
