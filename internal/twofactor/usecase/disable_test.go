package usecase_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
	"github.com/gatekeyhq/gatekey/internal/twofactor/usecase"
)

func TestDisable(t *testing.T) {
	t.Parallel()

	t.Run("destroys all two-factor state", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, codes := e.enroll(t)
		ctx := authCtx()

		err := e.uc.Disable(ctx, usecase.DisableInput{CurrentPassword: testPassword})
		require.NoError(t, err)

		assert.False(t, e.repo.profile.Enabled)
		assert.Nil(t, e.repo.profile.Secret)
		assert.Empty(t, e.repo.codes)

		awaitEvents(t, 1, func() int { return len(e.msg.disabledEvents()) })
		assert.Equal(t, testUserID, e.msg.disabledEvents()[0].UserID)

		// Old backup codes stop working because verification now reports
		// the feature as off.
		_, err = e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodBackup, Code: codes[0]})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusConflict, gerr.StatusCode())
	})

	t.Run("allows a clean re-enrollment", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		firstSecret, _ := e.enroll(t)

		err := e.uc.Disable(authCtx(), usecase.DisableInput{CurrentPassword: testPassword})
		require.NoError(t, err)

		e.clock.Advance(time.Minute)

		secondSecret, _ := e.enroll(t)
		assert.NotEqual(t, firstSecret, secondSecret)
		assert.True(t, e.repo.profile.Enabled)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.enroll(t)

		err := e.uc.Disable(authCtx(), usecase.DisableInput{CurrentPassword: "nope"})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
		assert.True(t, e.repo.profile.Enabled, "profile must stay enabled")
	})

	t.Run("conflict when not enabled", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)

		err := e.uc.Disable(authCtx(), usecase.DisableInput{CurrentPassword: testPassword})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusConflict, gerr.StatusCode())
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	t.Run("fresh user", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)

		out, err := e.uc.Status(authCtx())
		require.NoError(t, err)

		assert.False(t, out.Enabled)
		assert.False(t, out.PhoneVerified)
		assert.False(t, out.PendingEnrollment)
		assert.Zero(t, out.BackupCodesRemaining)
	})

	t.Run("pending enrollment is reported until it expires", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		_, err := e.uc.EnrollStart(ctx, usecase.EnrollStartInput{})
		require.NoError(t, err)

		out, err := e.uc.Status(ctx)
		require.NoError(t, err)
		assert.True(t, out.PendingEnrollment)
		assert.False(t, out.Enabled)

		e.clock.Advance(11 * time.Minute)

		out, err = e.uc.Status(ctx)
		require.NoError(t, err)
		assert.False(t, out.PendingEnrollment)
	})

	t.Run("enabled user with consumed codes", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, codes := e.enroll(t)
		ctx := authCtx()

		_, err := e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodBackup, Code: codes[0]})
		require.NoError(t, err)

		out, err := e.uc.Status(ctx)
		require.NoError(t, err)

		assert.True(t, out.Enabled)
		assert.Equal(t, e.clock.Now(), out.EnabledAt)
		assert.Equal(t, int64(9), out.BackupCodesRemaining)
		assert.False(t, out.PendingEnrollment)
	})
}
