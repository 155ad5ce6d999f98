package usecase_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeyhq/gatekey/internal/pkg/goerror"
	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
	"github.com/gatekeyhq/gatekey/internal/twofactor/usecase"
)

func TestVerify_TOTP(t *testing.T) {
	t.Parallel()

	t.Run("accepts a fresh code", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		secret, _ := e.enroll(t)

		// Move past the enrollment window so the code is minted for an
		// unused time step.
		e.clock.Advance(30 * time.Second)

		code, err := e.totp.GenerateCode(secret, e.clock.Now())
		require.NoError(t, err)

		out, err := e.uc.Verify(authCtx(), usecase.VerifyInput{Method: entity.MethodTOTP, Code: code})
		require.NoError(t, err)

		assert.Equal(t, entity.MethodTOTP, out.Method)
		assert.Equal(t, int64(-1), out.BackupCodesRemaining)
		assert.False(t, out.LowBackupCodes)
	})

	t.Run("rejects a replayed code", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		secret, _ := e.enroll(t)
		ctx := authCtx()

		e.clock.Advance(30 * time.Second)

		code, err := e.totp.GenerateCode(secret, e.clock.Now())
		require.NoError(t, err)

		_, err = e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodTOTP, Code: code})
		require.NoError(t, err)

		_, err = e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodTOTP, Code: code})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
		assert.Equal(t, "invalid code", gerr.Msg())
	})

	t.Run("conflict when not enabled", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)

		_, err := e.uc.Verify(authCtx(), usecase.VerifyInput{Method: entity.MethodTOTP, Code: "123456"})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusConflict, gerr.StatusCode())
	})

	t.Run("rejects an unknown method", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.enroll(t)

		_, err := e.uc.Verify(authCtx(), usecase.VerifyInput{Method: entity.MethodUnknown, Code: "123456"})
		gerr := asGoerror(t, err)
		assert.Equal(t, goerror.CodeInvalidInput, gerr.Code())
	})

	t.Run("success clears accumulated failures", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		secret, _ := e.enroll(t)
		ctx := authCtx()

		for i := 0; i < 4; i++ {
			_, err := e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodTOTP, Code: "000000"})
			require.Error(t, err)
		}

		e.clock.Advance(30 * time.Second)

		code, err := e.totp.GenerateCode(secret, e.clock.Now())
		require.NoError(t, err)

		_, err = e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodTOTP, Code: code})
		require.NoError(t, err)

		// The budget is whole again: another run of failures is needed
		// before a lockout.
		for i := 0; i < 4; i++ {
			_, err := e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodTOTP, Code: "000000"})
			gerr := asGoerror(t, err)
			assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
		}
	})
}

func TestVerify_BackupCode(t *testing.T) {
	t.Parallel()

	t.Run("consumes a code exactly once", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, codes := e.enroll(t)
		ctx := authCtx()

		out, err := e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodBackup, Code: codes[0]})
		require.NoError(t, err)

		assert.Equal(t, entity.MethodBackup, out.Method)
		assert.Equal(t, int64(9), out.BackupCodesRemaining)
		assert.False(t, out.LowBackupCodes)

		// Second submission of the same code is just another wrong guess.
		_, err = e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodBackup, Code: codes[0]})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
		assert.Equal(t, "invalid code", gerr.Msg())
	})

	t.Run("warns when the pool runs low", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, codes := e.enroll(t)
		ctx := authCtx()

		var out *usecase.VerifyOutput
		var err error
		for i := 0; i < 7; i++ {
			out, err = e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodBackup, Code: codes[i]})
			require.NoError(t, err)
		}

		assert.Equal(t, int64(3), out.BackupCodesRemaining)
		assert.True(t, out.LowBackupCodes)
	})

	t.Run("locks out after repeated failures", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, codes := e.enroll(t)
		ctx := authCtx()

		for i := 0; i < 3; i++ {
			_, err := e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodBackup, Code: "XXXX-XXXX-XXXX"})
			gerr := asGoerror(t, err)
			assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
		}

		_, err := e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodBackup, Code: codes[0]})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusTooManyRequests, gerr.StatusCode())
		assert.Equal(t, 0, gerr.RemainingAttempts())

		// The TOTP budget is independent of the backup budget.
		_, err = e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodTOTP, Code: "000000"})
		gerr = asGoerror(t, err)
		assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())

		e.clock.Advance(31 * time.Minute)

		_, err = e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodBackup, Code: codes[0]})
		require.NoError(t, err)
	})
}

func TestBackupRegenerate(t *testing.T) {
	t.Parallel()

	t.Run("issues a fresh batch and retires the old one", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, oldCodes := e.enroll(t)
		ctx := authCtx()

		out, err := e.uc.BackupRegenerate(ctx, usecase.BackupRegenerateInput{CurrentPassword: testPassword})
		require.NoError(t, err)
		assert.Len(t, out.BackupCodes, 10)
		assert.NotEqual(t, oldCodes, out.BackupCodes)

		_, err = e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodBackup, Code: oldCodes[0]})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())

		_, err = e.uc.Verify(ctx, usecase.VerifyInput{Method: entity.MethodBackup, Code: out.BackupCodes[0]})
		require.NoError(t, err)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.enroll(t)

		_, err := e.uc.BackupRegenerate(authCtx(), usecase.BackupRegenerateInput{CurrentPassword: "nope"})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
	})

	t.Run("conflict when not enabled", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)

		_, err := e.uc.BackupRegenerate(authCtx(), usecase.BackupRegenerateInput{CurrentPassword: testPassword})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusConflict, gerr.StatusCode())
	})
}
