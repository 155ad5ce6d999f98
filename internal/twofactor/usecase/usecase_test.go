package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	libOTP "github.com/pquerna/otp"
	"github.com/stretchr/testify/require"

	"github.com/gatekeyhq/gatekey/internal/pkg/clock"
	"github.com/gatekeyhq/gatekey/internal/pkg/config"
	"github.com/gatekeyhq/gatekey/internal/pkg/goerror"
	"github.com/gatekeyhq/gatekey/internal/pkg/goroutine"
	"github.com/gatekeyhq/gatekey/internal/pkg/hash"
	"github.com/gatekeyhq/gatekey/internal/pkg/idempotency"
	"github.com/gatekeyhq/gatekey/internal/pkg/instrument"
	"github.com/gatekeyhq/gatekey/internal/pkg/jwt"
	"github.com/gatekeyhq/gatekey/internal/pkg/mfa"
	"github.com/gatekeyhq/gatekey/internal/pkg/otp"
	"github.com/gatekeyhq/gatekey/internal/pkg/qr"
	"github.com/gatekeyhq/gatekey/internal/pkg/ratelimit"
	"github.com/gatekeyhq/gatekey/internal/pkg/sms"
	"github.com/gatekeyhq/gatekey/internal/pkg/validator"
	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
	"github.com/gatekeyhq/gatekey/internal/twofactor/usecase"
)

const (
	testUserID   = int64(42)
	testPassword = "hunter2"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// stubConfig serves only the keys the usecases read; anything else panics
// via the embedded nil interface.
type stubConfig struct {
	config.Config
	ints    map[string]int
	minutes map[string]time.Duration
	seconds map[string]time.Duration
}

func (c stubConfig) GetInt(key string) int              { return c.ints[key] }
func (c stubConfig) GetMinute(key string) time.Duration { return c.minutes[key] }
func (c stubConfig) GetSecond(key string) time.Duration { return c.seconds[key] }

type fakeUID struct {
	mu   sync.Mutex
	next int64
}

func (u *fakeUID) Generate() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.next++

	return u.next
}

type fakeReauth struct {
	password string
	err      error
}

func (r *fakeReauth) VerifyPassword(_ context.Context, _ int64, password string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}

	return password == r.password, nil
}

// fakeMessaging records published events. Publishing happens on detached
// goroutines, so every access is mutex guarded and reads return copies.
type fakeMessaging struct {
	mu            sync.Mutex
	enabled       []usecase.EnabledEvent
	disabled      []usecase.DisabledEvent
	phoneVerified []usecase.PhoneVerifiedEvent
}

func (m *fakeMessaging) PublishEnabled(_ context.Context, msg usecase.EnabledEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = append(m.enabled, msg)

	return nil
}

func (m *fakeMessaging) PublishDisabled(_ context.Context, msg usecase.DisabledEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = append(m.disabled, msg)

	return nil
}

func (m *fakeMessaging) PublishPhoneVerified(_ context.Context, msg usecase.PhoneVerifiedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phoneVerified = append(m.phoneVerified, msg)

	return nil
}

func (m *fakeMessaging) enabledEvents() []usecase.EnabledEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]usecase.EnabledEvent(nil), m.enabled...)
}

func (m *fakeMessaging) disabledEvents() []usecase.DisabledEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]usecase.DisabledEvent(nil), m.disabled...)
}

func (m *fakeMessaging) phoneVerifiedEvents() []usecase.PhoneVerifiedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]usecase.PhoneVerifiedEvent(nil), m.phoneVerified...)
}

type fakeSMS struct {
	sent     []sms.Message
	failWith error
}

func (s *fakeSMS) Send(_ context.Context, msg sms.Message) error {
	if s.failWith != nil {
		return s.failWith
	}

	s.sent = append(s.sent, msg)

	return nil
}

func (s *fakeSMS) Close() error { return nil }

type fakeIdemp struct {
	clock clock.Clocker
	held  map[string]time.Time
}

func (f *fakeIdemp) Acquire(_ context.Context, key string, lockDuration time.Duration) (idempotency.State, error) {
	if exp, ok := f.held[key]; ok && exp.After(f.clock.Now()) {
		return idempotency.StateInProgress, nil
	}

	f.held[key] = f.clock.Now().Add(lockDuration)

	return idempotency.StateNone, nil
}

func (f *fakeIdemp) MarkCompleted(context.Context, string, time.Duration) error { return nil }
func (f *fakeIdemp) MarkFailed(context.Context, string, time.Duration) error    { return nil }

func (f *fakeIdemp) Release(_ context.Context, key string) error {
	delete(f.held, key)

	return nil
}

func (f *fakeIdemp) Exec(ctx context.Context, _ string, fn func(context.Context) error, _ ...idempotency.Option) error {
	return fn(ctx)
}

// fakeRepo is an in-memory stand-in for the postgres repository that honors
// the same conditional-write semantics.
type fakeRepo struct {
	profile   *entity.Profile
	pending   *entity.PendingEnrollment
	challenge *entity.OtpChallenge
	codes     []entity.BackupCode
}

func (r *fakeRepo) GetProfile(_ context.Context, userID int64) (*entity.Profile, error) {
	if r.profile == nil || r.profile.UserID != userID {
		return nil, goerror.ErrNotFound
	}

	cp := *r.profile

	return &cp, nil
}

func (r *fakeRepo) GetPendingEnrollment(_ context.Context, userID int64) (*entity.PendingEnrollment, error) {
	if r.pending == nil || r.pending.UserID != userID {
		return nil, goerror.ErrNotFound
	}

	cp := *r.pending

	return &cp, nil
}

func (r *fakeRepo) GetOtpChallenge(_ context.Context, userID int64, channel entity.Channel) (*entity.OtpChallenge, error) {
	if r.challenge == nil || r.challenge.UserID != userID || r.challenge.Channel != channel {
		return nil, goerror.ErrNotFound
	}

	cp := *r.challenge

	return &cp, nil
}

func (r *fakeRepo) GetUnusedBackupCodes(_ context.Context, userID int64) ([]entity.BackupCode, error) {
	out := make([]entity.BackupCode, 0, len(r.codes))
	for _, c := range r.codes {
		if c.UserID == userID && !c.Used {
			out = append(out, c)
		}
	}

	return out, nil
}

func (r *fakeRepo) CountUnusedBackupCodes(ctx context.Context, userID int64) (int64, error) {
	unused, err := r.GetUnusedBackupCodes(ctx, userID)
	if err != nil {
		return 0, err
	}

	return int64(len(unused)), nil
}

func (r *fakeRepo) UpsertPendingEnrollment(_ context.Context, in entity.PendingEnrollment) error {
	r.pending = &in

	return nil
}

func (r *fakeRepo) UpsertOtpChallenge(_ context.Context, in entity.OtpChallenge) error {
	in.Consumed = false
	r.challenge = &in

	return nil
}

func (r *fakeRepo) SavePhoneNumber(_ context.Context, userID int64, phone string) error {
	if r.profile == nil {
		r.profile = &entity.Profile{UserID: userID}
	}

	if r.profile.PhoneNumber != phone {
		r.profile.PhoneVerified = false
	}
	r.profile.PhoneNumber = phone

	return nil
}

func (r *fakeRepo) EnableProfile(_ context.Context, profile entity.Profile, codes []entity.BackupCode) error {
	if r.profile != nil {
		profile.PhoneNumber = r.profile.PhoneNumber
		profile.PhoneVerified = r.profile.PhoneVerified
	}

	r.profile = &profile
	r.pending = nil
	r.codes = append([]entity.BackupCode(nil), codes...)

	return nil
}

func (r *fakeRepo) DisableProfile(_ context.Context, userID int64) error {
	if r.profile != nil && r.profile.UserID == userID {
		r.profile.Secret = nil
		r.profile.Enabled = false
		r.profile.LastUsedStep = 0
	}

	r.pending = nil
	r.challenge = nil
	r.codes = nil

	return nil
}

func (r *fakeRepo) ReplaceBackupCodes(_ context.Context, _ int64, codes []entity.BackupCode) error {
	r.codes = append([]entity.BackupCode(nil), codes...)

	return nil
}

func (r *fakeRepo) ConsumeBackupCode(_ context.Context, id, userID int64) (bool, error) {
	for i := range r.codes {
		if r.codes[i].ID == id && r.codes[i].UserID == userID && !r.codes[i].Used {
			r.codes[i].Used = true

			return true, nil
		}
	}

	return false, nil
}

func (r *fakeRepo) ConsumeOtpChallenge(_ context.Context, userID int64, channel entity.Channel) (bool, error) {
	if r.challenge == nil || r.challenge.UserID != userID || r.challenge.Channel != channel || r.challenge.Consumed {
		return false, nil
	}

	r.challenge.Consumed = true

	return true, nil
}

func (r *fakeRepo) RecordUsedStep(_ context.Context, userID, step int64) (bool, error) {
	if r.profile == nil || r.profile.UserID != userID || !r.profile.Enabled {
		return false, nil
	}

	if r.profile.LastUsedStep >= step {
		return false, nil
	}

	r.profile.LastUsedStep = step

	return true, nil
}

func (r *fakeRepo) MarkPhoneVerified(_ context.Context, userID int64) (bool, error) {
	if r.profile == nil || r.profile.UserID != userID || r.profile.PhoneVerified {
		return false, nil
	}

	r.profile.PhoneVerified = true

	return true, nil
}

type env struct {
	uc     *usecase.Usecase
	repo   *fakeRepo
	msg    *fakeMessaging
	sms    *fakeSMS
	reauth *fakeReauth
	clock  *fakeClock
	totp   otp.OTP
	hmac   hash.Hash
}

func newEnv(t *testing.T) *env {
	t.Helper()

	clk := &fakeClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}

	v10, err := validator.NewV10Validator()
	require.NoError(t, err)

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	e := &env{
		repo:   &fakeRepo{},
		msg:    &fakeMessaging{},
		sms:    &fakeSMS{},
		reauth: &fakeReauth{password: testPassword},
		clock:  clk,
		totp:   otp.NewTOTP("GateKey", 30, 1, libOTP.DigitsSix),
		hmac:   hash.NewHMACSHA256("test-hmac-secret"),
	}

	limiter := ratelimit.NewLimiter(
		ratelimit.NewMemoryStore(clk),
		map[ratelimit.Action]ratelimit.Policy{
			ratelimit.ActionTOTP:   {MaxAttempts: 5, Window: 5 * time.Minute, Lockout: 5 * time.Minute},
			ratelimit.ActionSMS:    {MaxAttempts: 5, Window: 10 * time.Minute, Lockout: 15 * time.Minute},
			ratelimit.ActionBackup: {MaxAttempts: 3, Window: 15 * time.Minute, Lockout: 30 * time.Minute},
		},
		clk,
	)

	e.uc = usecase.New(usecase.Dependency{
		RepoDB:        e.repo,
		RepoMessaging: e.msg,
		Reauth:        e.reauth,
		Idempotency:   &fakeIdemp{clock: clk, held: map[string]time.Time{}},
		Validator:     v10,
		Config: stubConfig{
			ints: map[string]int{
				"modules.twofactor.sms_code_digits":           6,
				"modules.twofactor.low_backup_code_threshold": 3,
			},
			minutes: map[string]time.Duration{
				"modules.twofactor.pending_ttl_minutes":  10 * time.Minute,
				"modules.twofactor.sms_code_ttl_minutes": 5 * time.Minute,
			},
			seconds: map[string]time.Duration{
				"modules.twofactor.sms_resend_cooldown_seconds": 60 * time.Second,
			},
		},
		HMAC:         e.hmac,
		Argon2ID:     hash.NewArgon2id("test-pepper"),
		MFAEncryptor: mfa.NewAESGCMEncryptor(mfa.StaticKeyProvider{KeyBytes: key}),
		BackupCodes:  mfa.NewBackupCode(10),
		UID:          &fakeUID{},
		Totp:         e.totp,
		QR:           qr.New(),
		SMS:          e.sms,
		Limiter:      limiter,
		Clock:        clk,
		Instrument:   instrument.NewNoop(),
		Goroutine:    goroutine.NewManager(4),
	})

	return e
}

func authCtx() context.Context {
	return jwt.SetAuth(context.Background(), jwt.Claims{
		UserID:    testUserID,
		UserEmail: "user@example.com",
	})
}

// enroll walks the full enrollment flow and returns the shared secret and
// the plaintext backup codes.
func (e *env) enroll(t *testing.T) (secret string, backupCodes []string) {
	t.Helper()

	ctx := authCtx()

	start, err := e.uc.EnrollStart(ctx, usecase.EnrollStartInput{})
	require.NoError(t, err)

	code, err := e.totp.GenerateCode(start.Secret, e.clock.Now())
	require.NoError(t, err)

	confirm, err := e.uc.EnrollConfirm(ctx, usecase.EnrollConfirmInput{
		CurrentPassword: testPassword,
		Code:            code,
	})
	require.NoError(t, err)

	return start.Secret, confirm.BackupCodes
}

// awaitEvents blocks until the detached publisher goroutines have delivered
// the expected number of events.
func awaitEvents(t *testing.T, want int, count func() int) {
	t.Helper()

	require.Eventually(t, func() bool { return count() == want }, time.Second, 5*time.Millisecond)
}

func asGoerror(t *testing.T, err error) *goerror.Error {
	t.Helper()

	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)

	return gerr
}
