package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeyhq/gatekey/internal/pkg/goerror"
	"github.com/gatekeyhq/gatekey/internal/twofactor/usecase"
)

func TestEnrollStart(t *testing.T) {
	t.Parallel()

	t.Run("mints a pending secret with provisioning material", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)

		out, err := e.uc.EnrollStart(authCtx(), usecase.EnrollStartInput{})
		require.NoError(t, err)

		assert.NotEmpty(t, out.Secret)
		assert.Contains(t, out.URI, "otpauth://totp/")
		assert.Contains(t, out.QRImage, "data:image/png;base64,")
		assert.Equal(t, e.clock.Now().Add(10*time.Minute), out.ExpiresAt)

		require.NotNil(t, e.repo.pending)
		assert.NotEqual(t, []byte(out.Secret), e.repo.pending.Secret, "stored secret must be ciphertext")
	})

	t.Run("starting again supersedes the previous pending secret", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		first, err := e.uc.EnrollStart(ctx, usecase.EnrollStartInput{})
		require.NoError(t, err)

		second, err := e.uc.EnrollStart(ctx, usecase.EnrollStartInput{})
		require.NoError(t, err)
		require.NotEqual(t, first.Secret, second.Secret)

		// Only a code for the newest secret confirms.
		staleCode, err := e.totp.GenerateCode(first.Secret, e.clock.Now())
		require.NoError(t, err)

		_, err = e.uc.EnrollConfirm(ctx, usecase.EnrollConfirmInput{CurrentPassword: testPassword, Code: staleCode})
		require.Error(t, err)

		freshCode, err := e.totp.GenerateCode(second.Secret, e.clock.Now())
		require.NoError(t, err)

		_, err = e.uc.EnrollConfirm(ctx, usecase.EnrollConfirmInput{CurrentPassword: testPassword, Code: freshCode})
		require.NoError(t, err)
	})

	t.Run("conflict when already enabled", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.enroll(t)

		_, err := e.uc.EnrollStart(authCtx(), usecase.EnrollStartInput{})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusConflict, gerr.StatusCode())
	})

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)

		_, err := e.uc.EnrollStart(context.Background(), usecase.EnrollStartInput{})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
	})
}

func TestEnrollConfirm(t *testing.T) {
	t.Parallel()

	t.Run("enables the profile and returns backup codes once", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, codes := e.enroll(t)

		assert.Len(t, codes, 10)
		for _, code := range codes {
			assert.Regexp(t, `^[0-9A-Za-z]{4}-[0-9A-Za-z]{4}-[0-9A-Za-z]{4}$`, code)
		}

		require.NotNil(t, e.repo.profile)
		assert.True(t, e.repo.profile.Enabled)
		assert.Nil(t, e.repo.pending, "pending enrollment must be consumed")

		awaitEvents(t, 1, func() int { return len(e.msg.enabledEvents()) })
		assert.Equal(t, testUserID, e.msg.enabledEvents()[0].UserID)
	})

	t.Run("rejects a wrong password before touching the code", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		_, err := e.uc.EnrollStart(ctx, usecase.EnrollStartInput{})
		require.NoError(t, err)

		_, err = e.uc.EnrollConfirm(ctx, usecase.EnrollConfirmInput{CurrentPassword: "nope", Code: "123456"})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
		assert.Equal(t, "invalid password", gerr.Msg())
	})

	t.Run("conflict when no enrollment in progress", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)

		_, err := e.uc.EnrollConfirm(authCtx(), usecase.EnrollConfirmInput{CurrentPassword: testPassword, Code: "123456"})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusConflict, gerr.StatusCode())
	})

	t.Run("conflict when the pending enrollment expired", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		start, err := e.uc.EnrollStart(ctx, usecase.EnrollStartInput{})
		require.NoError(t, err)

		e.clock.Advance(11 * time.Minute)

		code, err := e.totp.GenerateCode(start.Secret, e.clock.Now())
		require.NoError(t, err)

		_, err = e.uc.EnrollConfirm(ctx, usecase.EnrollConfirmInput{CurrentPassword: testPassword, Code: code})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusConflict, gerr.StatusCode())
	})

	t.Run("wrong code answers invalid code and charges the budget", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		start, err := e.uc.EnrollStart(ctx, usecase.EnrollStartInput{})
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			_, err = e.uc.EnrollConfirm(ctx, usecase.EnrollConfirmInput{CurrentPassword: testPassword, Code: "000000"})
			gerr := asGoerror(t, err)
			assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
			assert.Equal(t, "invalid code", gerr.Msg())
		}

		// Budget exhausted: even a correct code is refused until the
		// lockout expires.
		code, err := e.totp.GenerateCode(start.Secret, e.clock.Now())
		require.NoError(t, err)

		_, err = e.uc.EnrollConfirm(ctx, usecase.EnrollConfirmInput{CurrentPassword: testPassword, Code: code})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusTooManyRequests, gerr.StatusCode())
		assert.False(t, gerr.ResetAt().IsZero())

		e.clock.Advance(6 * time.Minute)

		code, err = e.totp.GenerateCode(start.Secret, e.clock.Now())
		require.NoError(t, err)

		_, err = e.uc.EnrollConfirm(ctx, usecase.EnrollConfirmInput{CurrentPassword: testPassword, Code: code})
		require.NoError(t, err)
	})

	t.Run("validates the payload", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)

		_, err := e.uc.EnrollConfirm(authCtx(), usecase.EnrollConfirmInput{CurrentPassword: testPassword, Code: "12ab"})
		gerr := asGoerror(t, err)
		assert.Equal(t, goerror.CodeInvalidInput, gerr.Code())
	})
}
