package usecase_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
	"github.com/gatekeyhq/gatekey/internal/twofactor/usecase"
)

const testPhone = "+15005550006"

// sentCode extracts the one-time code out of the delivered message body.
func sentCode(t *testing.T, e *env) string {
	t.Helper()

	require.NotEmpty(t, e.sms.sent)
	body := e.sms.sent[len(e.sms.sent)-1].Body
	require.Greater(t, len(body), 6)

	return body[len(body)-6:]
}

func TestSmsSend(t *testing.T) {
	t.Parallel()

	t.Run("stores a hashed challenge and delivers the code", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)

		out, err := e.uc.SmsSend(authCtx(), usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)
		assert.Equal(t, e.clock.Now().Add(5*time.Minute), out.ExpiresAt)

		require.Len(t, e.sms.sent, 1)
		assert.Equal(t, testPhone, e.sms.sent[0].To)

		code := sentCode(t, e)
		require.NotNil(t, e.repo.challenge)
		assert.NotContains(t, e.repo.challenge.CodeHash, code, "challenge must store a hash, not the code")
		assert.True(t, e.hmac.Verify(e.repo.challenge.CodeHash, code))

		require.NotNil(t, e.repo.profile)
		assert.Equal(t, testPhone, e.repo.profile.PhoneNumber)
		assert.False(t, e.repo.profile.PhoneVerified)
	})

	t.Run("enforces the resend cooldown", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		_, err := e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)

		_, err = e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusTooManyRequests, gerr.StatusCode())

		e.clock.Advance(61 * time.Second)

		_, err = e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)
	})

	t.Run("delivery failure leaves the challenge verifiable", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()
		e.sms.failWith = errors.New("provider down")

		_, err := e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, gerr.StatusCode())

		// The challenge was stored before the gateway call; if the message
		// arrives late the user can still verify it.
		require.NotNil(t, e.repo.challenge)
		assert.False(t, e.repo.challenge.Consumed)
	})

	t.Run("delivery failure releases the resend cooldown", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()
		e.sms.failWith = errors.New("provider down")

		_, err := e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, gerr.StatusCode())

		// The gateway recovers; the caller may retry immediately instead of
		// sitting out the cooldown.
		e.sms.failWith = nil

		_, err = e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)

		_, err = e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: sentCode(t, e)})
		require.NoError(t, err)
	})

	t.Run("rejects a malformed phone number", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)

		_, err := e.uc.SmsSend(authCtx(), usecase.SmsSendInput{PhoneNumber: "555-0006"})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, gerr.StatusCode())
	})
}

func TestSmsVerify(t *testing.T) {
	t.Parallel()

	t.Run("first success marks the phone verified and emits the event once", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		_, err := e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)

		out, err := e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: sentCode(t, e)})
		require.NoError(t, err)
		assert.True(t, out.PhoneVerified)

		require.NotNil(t, e.repo.profile)
		assert.True(t, e.repo.profile.PhoneVerified)
		awaitEvents(t, 1, func() int { return len(e.msg.phoneVerifiedEvents()) })
		assert.Equal(t, testUserID, e.msg.phoneVerifiedEvents()[0].UserID)

		// A later round against the same number does not re-announce it.
		e.clock.Advance(2 * time.Minute)

		_, err = e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)

		_, err = e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: sentCode(t, e)})
		require.NoError(t, err)
		assert.Len(t, e.msg.phoneVerifiedEvents(), 1)
	})

	t.Run("a code verifies only once", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		_, err := e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)

		code := sentCode(t, e)

		_, err = e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: code})
		require.NoError(t, err)

		_, err = e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: code})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
		assert.Equal(t, "invalid code", gerr.Msg())
	})

	t.Run("rejects an expired code", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		_, err := e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)

		code := sentCode(t, e)
		e.clock.Advance(6 * time.Minute)

		_, err = e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: code})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
	})

	t.Run("a new send supersedes the previous challenge", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		_, err := e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)
		first := sentCode(t, e)

		e.clock.Advance(2 * time.Minute)

		_, err = e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)
		second := sentCode(t, e)

		if first != second {
			_, err = e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: first})
			require.Error(t, err)
		}

		_, err = e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: second})
		require.NoError(t, err)
	})

	t.Run("locks out after repeated failures", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		_, err := e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)

		code := sentCode(t, e)
		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}

		for i := 0; i < 5; i++ {
			_, err = e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: wrong})
			gerr := asGoerror(t, err)
			assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode())
		}

		_, err = e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: code})
		gerr := asGoerror(t, err)
		assert.Equal(t, http.StatusTooManyRequests, gerr.StatusCode())
	})

	t.Run("changing the number resets verification", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := authCtx()

		_, err := e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: testPhone})
		require.NoError(t, err)

		_, err = e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: sentCode(t, e)})
		require.NoError(t, err)
		assert.True(t, e.repo.profile.PhoneVerified)

		e.clock.Advance(2 * time.Minute)

		_, err = e.uc.SmsSend(ctx, usecase.SmsSendInput{PhoneNumber: "+15005550007"})
		require.NoError(t, err)
		assert.False(t, e.repo.profile.PhoneVerified)

		_, err = e.uc.SmsVerify(ctx, usecase.SmsVerifyInput{Code: sentCode(t, e)})
		require.NoError(t, err)
		assert.True(t, e.repo.profile.PhoneVerified)
		assert.Equal(t, entity.ChannelSMS, e.repo.challenge.Channel)
		awaitEvents(t, 2, func() int { return len(e.msg.phoneVerifiedEvents()) })
	})
}
