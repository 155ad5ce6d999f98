package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gatekeyhq/gatekey/internal/pkg/goerror"
	"github.com/gatekeyhq/gatekey/internal/pkg/mfa"
	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
)

type EnrollStartInput struct{}

type EnrollStartOutput struct {
	Secret    string
	URI       string
	QRImage   string
	ExpiresAt time.Time
}

// EnrollStart mints a fresh TOTP secret and stages it as a pending
// enrollment. Starting again before confirming supersedes the previous
// pending secret; at no later point is the secret ever returned again.
func (s *Usecase) EnrollStart(ctx context.Context, _ EnrollStartInput) (*EnrollStartOutput, error) {
	ctx, span := s.startSpan(ctx, "EnrollStart")
	defer span.End()

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.repoDB.GetProfile(ctx, clm.UserID)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get twofactor profile", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if profile != nil && profile.Enabled {
		return nil, goerror.NewBusiness("two-factor authentication is already enabled", goerror.CodeConflict)
	}

	secret, uri, err := s.totp.Generate(clm.UserEmail)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate totp secret", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	ciphertext, err := s.mfaEncryptor.Encrypt([]byte(secret), mfa.Scope{
		UserID:  clm.UserID,
		Purpose: mfa.PurposeOTPSeed,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to encrypt totp secret", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	pending := entity.PendingEnrollment{
		UserID:    clm.UserID,
		Secret:    ciphertext,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.GetMinute("modules.twofactor.pending_ttl_minutes")),
	}

	if err := s.repoDB.UpsertPendingEnrollment(ctx, pending); err != nil {
		slog.ErrorContext(ctx, "failed to repo upsert pending enrollment", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	qrImage, err := s.qr.DataURI(uri, 0)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render provisioning qr", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &EnrollStartOutput{
		Secret:    secret,
		URI:       uri,
		QRImage:   qrImage,
		ExpiresAt: pending.ExpiresAt,
	}, nil
}
