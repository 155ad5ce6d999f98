package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// OTP defines the contract for TOTP operations.
type OTP interface {
	// Generate creates a secret and provisioning URI for an account name.
	Generate(accountName string) (secret string, uri string, err error)
	// Validate checks whether a code is valid at the given time.
	Validate(code, secret string, at time.Time) bool
	// Match reports whether a code is valid at the given time and returns
	// the time step it matched, for replay detection.
	Match(code, secret string, at time.Time) (step int64, ok bool)
	// GenerateCode creates a TOTP code for the given secret and time.
	GenerateCode(secret string, at time.Time) (string, error)
}

// TOTP implements OTP using the Time-based One-Time Password algorithm.
type TOTP struct {
	issuer string
	period uint
	skew   uint
	digits otp.Digits
}

// NewTOTP constructs a TOTP instance with sensible defaults.
//
// If digits is not 6 or 8, it falls back to 6 digits. If period is 0, it uses
// the common 30-second period.
func NewTOTP(issuer string, period, skew uint, digits otp.Digits) *TOTP {
	if digits != otp.DigitsSix && digits != otp.DigitsEight {
		digits = otp.DigitsSix
	}

	if period == 0 {
		period = 30
	}

	if skew == 0 {
		skew = 1
	}

	return &TOTP{
		issuer: issuer,
		period: period,
		skew:   skew,
		digits: digits,
	}
}

// Generate creates a secret and provisioning URI for an account name.
func (o *TOTP) Generate(accountName string) (secret string, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      o.issuer,
		AccountName: accountName,
		Period:      o.period,
		SecretSize:  20, // RFC 4226/6238 recommendation
		Digits:      o.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}

	return key.Secret(), key.URL(), nil
}

// Validate checks whether a code is valid at the given time.
func (o *TOTP) Validate(code, secret string, at time.Time) bool {
	rv, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    o.period,
		Skew:      o.skew,
		Digits:    o.digits,
		Algorithm: otp.AlgorithmSHA1,
	})

	return rv && err == nil
}

// Match reports whether a code is valid at the given time and returns the
// matched time step.
//
// Unlike Validate it identifies which window within the skew produced the
// match, so callers can refuse a second use of the same step.
func (o *TOTP) Match(code, secret string, at time.Time) (int64, bool) {
	base := at.Unix() / int64(o.period)

	for offset := -int64(o.skew); offset <= int64(o.skew); offset++ {
		step := base + offset

		expected, err := totp.GenerateCodeCustom(secret, time.Unix(step*int64(o.period), 0), totp.ValidateOpts{
			Period:    o.period,
			Skew:      0,
			Digits:    o.digits,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return 0, false
		}

		if subtle.ConstantTimeCompare([]byte(code), []byte(expected)) == 1 {
			return step, true
		}
	}

	return 0, false
}

// GenerateCode creates a TOTP code for the given secret and time.
func (o *TOTP) GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    o.period,
		Skew:      o.skew,
		Digits:    o.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// NumericCode returns a random numeric code of n digits for out-of-band
// delivery channels such as SMS.
func NumericCode(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)

	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + d.Int64()))
	}

	return sb.String(), nil
}
