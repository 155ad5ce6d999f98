package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gatekeyhq/gatekey/internal/pkg/goerror"
	"github.com/gatekeyhq/gatekey/internal/pkg/mfa"
	"github.com/gatekeyhq/gatekey/internal/pkg/ratelimit"
	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
)

type EnrollConfirmInput struct {
	CurrentPassword string `validate:"required"`
	Code            string `validate:"required,len=6,numeric"`
}

type EnrollConfirmOutput struct {
	BackupCodes []string
}

// EnrollConfirm proves possession of the pending secret and atomically
// flips the profile to enabled, issuing the first batch of backup codes.
// The plaintext codes are returned exactly once.
func (s *Usecase) EnrollConfirm(ctx context.Context, in EnrollConfirmInput) (*EnrollConfirmOutput, error) {
	ctx, span := s.startSpan(ctx, "EnrollConfirm")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.verifyPassword(ctx, clm.UserID, in.CurrentPassword); err != nil {
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

	if err := s.checkLimit(ctx, clm.UserID, ratelimit.ActionTOTP); err != nil {
		return nil, err
	}

	pending, err := s.repoDB.GetPendingEnrollment(ctx, clm.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "no pending enrollment", "user_id", clm.UserID)
		return nil, goerror.NewBusiness("no enrollment in progress", goerror.CodeConflict)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get pending enrollment", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	if !pending.ExpiresAt.After(now) {
		slog.WarnContext(ctx, "pending enrollment expired", "user_id", clm.UserID, "expired_at", pending.ExpiresAt)
		return nil, goerror.NewBusiness("no enrollment in progress", goerror.CodeConflict)
	}

	secret, err := s.mfaEncryptor.Decrypt(pending.Secret, mfa.Scope{
		UserID:  clm.UserID,
		Purpose: mfa.PurposeOTPSeed,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to decrypt pending totp secret", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	step, ok := s.totp.Match(in.Code, string(secret), now)
	if !ok {
		slog.WarnContext(ctx, "enrollment confirm code rejected", "user_id", clm.UserID)
		s.recordFailure(ctx, clm.UserID, ratelimit.ActionTOTP)
		return nil, errInvalidCode()
	}

	plainCodes, codes, err := s.mintBackupCodes(ctx, clm.UserID)
	if err != nil {
		return nil, err
	}

	newProfile := entity.Profile{
		UserID:        clm.UserID,
		Secret:        pending.Secret,
		Enabled:       true,
		EnabledAt:     now,
		LastUsedStep:  step,
		PhoneNumber:   "",
		PhoneVerified: false,
	}

	if err := s.repoDB.EnableProfile(ctx, newProfile, codes); err != nil {
		slog.ErrorContext(ctx, "failed to repo enable twofactor profile", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.resetLimit(ctx, clm.UserID, ratelimit.ActionTOTP)

	s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if err := s.repoMessaging.PublishEnabled(ctx, EnabledEvent{UserID: clm.UserID}); err != nil {
			slog.ErrorContext(ctx, "failed to publish twofactor enabled", "user_id", clm.UserID, "error", err)
			return err
		}

		return nil
	})

	return &EnrollConfirmOutput{BackupCodes: plainCodes}, nil
}

// mintBackupCodes generates a fresh batch and hashes each code for storage.
func (s *Usecase) mintBackupCodes(ctx context.Context, userID int64) ([]string, []entity.BackupCode, error) {
	plainCodes, err := s.backupCodes.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate backup codes", "user_id", userID, "error", err)
		return nil, nil, goerror.NewServer(err)
	}

	batchID := s.uid.Generate()

	codes := make([]entity.BackupCode, 0, len(plainCodes))
	for _, code := range plainCodes {
		hashed, err := s.argon2id.Hash(code)
		if err != nil {
			slog.ErrorContext(ctx, "failed to hash backup code", "user_id", userID, "error", err)
			return nil, nil, goerror.NewServer(err)
		}

		codes = append(codes, entity.BackupCode{
			ID:       s.uid.Generate(),
			UserID:   userID,
			BatchID:  batchID,
			CodeHash: string(hashed),
		})
	}

	return plainCodes, codes, nil
}
