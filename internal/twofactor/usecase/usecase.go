package usecase

import (
	"context"
	"log/slog"

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
	"github.com/gatekeyhq/gatekey/internal/pkg/uid"
	"github.com/gatekeyhq/gatekey/internal/pkg/validator"
	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
	"go.opentelemetry.io/otel/trace"
)

type EnabledEvent struct {
	UserID int64
}

type DisabledEvent struct {
	UserID int64
}

type PhoneVerifiedEvent struct {
	UserID int64
}

type repoMessaging interface {
	PublishEnabled(ctx context.Context, msg EnabledEvent) error
	PublishDisabled(ctx context.Context, msg DisabledEvent) error
	PublishPhoneVerified(ctx context.Context, msg PhoneVerifiedEvent) error
}

type repoDB interface {
	GetProfile(ctx context.Context, userID int64) (*entity.Profile, error)
	GetPendingEnrollment(ctx context.Context, userID int64) (*entity.PendingEnrollment, error)
	GetOtpChallenge(ctx context.Context, userID int64, channel entity.Channel) (*entity.OtpChallenge, error)
	GetUnusedBackupCodes(ctx context.Context, userID int64) ([]entity.BackupCode, error)
	CountUnusedBackupCodes(ctx context.Context, userID int64) (int64, error)

	UpsertPendingEnrollment(ctx context.Context, in entity.PendingEnrollment) error
	UpsertOtpChallenge(ctx context.Context, in entity.OtpChallenge) error
	SavePhoneNumber(ctx context.Context, userID int64, phone string) error

	EnableProfile(ctx context.Context, profile entity.Profile, codes []entity.BackupCode) error
	DisableProfile(ctx context.Context, userID int64) error
	ReplaceBackupCodes(ctx context.Context, userID int64, codes []entity.BackupCode) error

	ConsumeBackupCode(ctx context.Context, id, userID int64) (bool, error)
	ConsumeOtpChallenge(ctx context.Context, userID int64, channel entity.Channel) (bool, error)
	RecordUsedStep(ctx context.Context, userID, step int64) (bool, error)
	MarkPhoneVerified(ctx context.Context, userID int64) (bool, error)
}

// repoReauth re-checks the user's primary password with the authentication
// service that owns credentials.
type repoReauth interface {
	VerifyPassword(ctx context.Context, userID int64, password string) (bool, error)
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	reauth        repoReauth
	idemp         idempotency.Idempotency
	validator     validator.Validator
	cfg           config.Config
	hmac          hash.Hash
	argon2id      hash.Hash
	mfaEncryptor  mfa.Encryptor
	backupCodes   mfa.BackupCodeGenerator
	uid           uid.NumberID
	totp          otp.OTP
	qr            qr.Encoder
	sms           sms.SMS
	limiter       *ratelimit.Limiter
	clock         clock.Clocker
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Reauth        repoReauth
	Idempotency   idempotency.Idempotency
	Validator     validator.Validator
	Config        config.Config
	HMAC          hash.Hash
	Argon2ID      hash.Hash
	MFAEncryptor  mfa.Encryptor
	BackupCodes   mfa.BackupCodeGenerator
	UID           uid.NumberID
	Totp          otp.OTP
	QR            qr.Encoder
	SMS           sms.SMS
	Limiter       *ratelimit.Limiter
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		reauth:        dep.Reauth,
		idemp:         dep.Idempotency,
		validator:     dep.Validator,
		cfg:           dep.Config,
		hmac:          dep.HMAC,
		argon2id:      dep.Argon2ID,
		mfaEncryptor:  dep.MFAEncryptor,
		backupCodes:   dep.BackupCodes,
		uid:           dep.UID,
		totp:          dep.Totp,
		qr:            dep.QR,
		sms:           dep.SMS,
		limiter:       dep.Limiter,
		clock:         dep.Clock,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("twofactor.usecase").Start(ctx, name)
}

func (s *Usecase) authenticated(ctx context.Context) (*jwt.Claims, error) {
	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return nil, goerror.NewBusiness("authentication required", goerror.CodeUnauthorized)
	}

	return clm, nil
}

// errInvalidCode is deliberately undifferentiated: wrong, expired, and
// already-used codes all produce the same answer so callers learn nothing
// about which guess was close.
func errInvalidCode() error {
	return goerror.NewBusiness("invalid code", goerror.CodeUnauthorized)
}

// checkLimit consults the attempt budget before a verification. It fails
// closed: a store error denies the attempt.
func (s *Usecase) checkLimit(ctx context.Context, userID int64, action ratelimit.Action) error {
	st, err := s.limiter.Check(ctx, userID, action)
	if err != nil {
		slog.ErrorContext(ctx, "failed to consult rate limiter", "user_id", userID, "action", action.String(), "error", err)
		return goerror.NewServer(err)
	}

	if !st.Allowed {
		slog.WarnContext(ctx, "verification locked out", "user_id", userID, "action", action.String(), "reset_at", st.ResetAt)
		return goerror.NewRateLimited(st.ResetAt, st.Remaining)
	}

	return nil
}

// recordFailure charges a failed verification against the budget. The
// failing attempt itself still answers with the undifferentiated invalid
// code error; the lockout applies from the next attempt on.
func (s *Usecase) recordFailure(ctx context.Context, userID int64, action ratelimit.Action) {
	if _, err := s.limiter.Fail(ctx, userID, action); err != nil {
		slog.ErrorContext(ctx, "failed to record verification failure", "user_id", userID, "action", action.String(), "error", err)
	}
}

func (s *Usecase) resetLimit(ctx context.Context, userID int64, action ratelimit.Action) {
	if err := s.limiter.Reset(ctx, userID, action); err != nil {
		slog.ErrorContext(ctx, "failed to reset rate limiter", "user_id", userID, "action", action.String(), "error", err)
	}
}

// verifyPassword re-authenticates the user before sensitive transitions.
func (s *Usecase) verifyPassword(ctx context.Context, userID int64, password string) error {
	ok, err := s.reauth.VerifyPassword(ctx, userID, password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to re-check password", "user_id", userID, "error", err)
		return goerror.NewServer(err)
	}

	if !ok {
		slog.WarnContext(ctx, "password re-check mismatch", "user_id", userID)
		return goerror.NewBusiness("invalid password", goerror.CodeUnauthorized)
	}

	return nil
}
