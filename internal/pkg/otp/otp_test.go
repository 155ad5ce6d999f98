package otp_test

import (
	"testing"
	"time"

	pquerna "github.com/pquerna/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeyhq/gatekey/internal/pkg/otp"
)

func TestTOTP_SkewWindow(t *testing.T) {
	t.Parallel()

	o := otp.NewTOTP("GateKey", 30, 1, pquerna.DigitsSix)

	secret, uri, err := o.Generate("user@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	require.Contains(t, uri, "otpauth://totp/")

	now := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)

	for _, offset := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		code, err := o.GenerateCode(secret, now.Add(offset))
		require.NoError(t, err)
		assert.True(t, o.Validate(code, secret, now), "code at offset %s should validate", offset)
	}

	for _, offset := range []time.Duration{-60 * time.Second, 60 * time.Second} {
		code, err := o.GenerateCode(secret, now.Add(offset))
		require.NoError(t, err)
		assert.False(t, o.Validate(code, secret, now), "code at offset %s should be rejected", offset)
	}
}

func TestTOTP_MatchReturnsStep(t *testing.T) {
	t.Parallel()

	o := otp.NewTOTP("GateKey", 30, 1, pquerna.DigitsSix)

	secret, _, err := o.Generate("user@example.com")
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)

	code, err := o.GenerateCode(secret, now)
	require.NoError(t, err)

	step, ok := o.Match(code, secret, now)
	require.True(t, ok)
	assert.Equal(t, now.Unix()/30, step)

	prev, err := o.GenerateCode(secret, now.Add(-30*time.Second))
	require.NoError(t, err)

	prevStep, ok := o.Match(prev, secret, now)
	require.True(t, ok)
	assert.Equal(t, step-1, prevStep)

	_, ok = o.Match("000000", secret, now)
	assert.False(t, ok)
}

func TestNumericCode(t *testing.T) {
	t.Parallel()

	code, err := otp.NumericCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}
