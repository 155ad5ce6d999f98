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

type VerifyInput struct {
	Method entity.Method `validate:"required,oneof=totp backup"`
	Code   string        `validate:"required,min=6,max=14"`
}

type VerifyOutput struct {
	Method entity.Method
	// BackupCodesRemaining counts unused codes after a backup-code
	// verification; -1 for other methods.
	BackupCodesRemaining int64
	// LowBackupCodes warns the caller to prompt for regeneration.
	LowBackupCodes bool
}

// Verify is the second-factor orchestrator: it gates the attempt on the
// per-action budget, dispatches to the requested method, and settles the
// budget with the result.
func (s *Usecase) Verify(ctx context.Context, in VerifyInput) (*VerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.repoDB.GetProfile(ctx, clm.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("two-factor authentication is not enabled", goerror.CodeConflict)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get twofactor profile", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !profile.Enabled {
		return nil, goerror.NewBusiness("two-factor authentication is not enabled", goerror.CodeConflict)
	}

	action := ratelimit.ActionTOTP
	if in.Method == entity.MethodBackup {
		action = ratelimit.ActionBackup
	}

	if err := s.checkLimit(ctx, clm.UserID, action); err != nil {
		return nil, err
	}

	switch in.Method {
	case entity.MethodTOTP:
		return s.verifyTOTP(ctx, profile, in.Code)
	case entity.MethodBackup:
		return s.verifyBackupCode(ctx, profile, in.Code)
	default:
		return nil, goerror.NewInvalidInput(nil, "method", "unsupported verification method")
	}
}

func (s *Usecase) verifyTOTP(ctx context.Context, profile *entity.Profile, code string) (*VerifyOutput, error) {
	secret, err := s.mfaEncryptor.Decrypt(profile.Secret, mfa.Scope{
		UserID:  profile.UserID,
		Purpose: mfa.PurposeOTPSeed,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to decrypt totp secret", "user_id", profile.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	step, ok := s.totp.Match(code, string(secret), s.clock.Now())
	if !ok {
		s.recordFailure(ctx, profile.UserID, ratelimit.ActionTOTP)
		return nil, errInvalidCode()
	}

	// A valid code is only accepted once per time step.
	fresh, err := s.repoDB.RecordUsedStep(ctx, profile.UserID, step)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo record totp step", "user_id", profile.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !fresh {
		slog.WarnContext(ctx, "totp code replayed", "user_id", profile.UserID, "step", step)
		s.recordFailure(ctx, profile.UserID, ratelimit.ActionTOTP)
		return nil, errInvalidCode()
	}

	s.resetLimit(ctx, profile.UserID, ratelimit.ActionTOTP)

	return &VerifyOutput{Method: entity.MethodTOTP, BackupCodesRemaining: -1}, nil
}

func (s *Usecase) verifyBackupCode(ctx context.Context, profile *entity.Profile, code string) (*VerifyOutput, error) {
	candidates, err := s.repoDB.GetUnusedBackupCodes(ctx, profile.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get unused backup codes", "user_id", profile.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	var matched *entity.BackupCode
	for i := range candidates {
		if s.argon2id.Verify(candidates[i].CodeHash, code) {
			matched = &candidates[i]
			break
		}
	}

	if matched == nil {
		s.recordFailure(ctx, profile.UserID, ratelimit.ActionBackup)
		return nil, errInvalidCode()
	}

	consumed, err := s.repoDB.ConsumeBackupCode(ctx, matched.ID, profile.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo consume backup code", "user_id", profile.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	// Lost the race against a concurrent submission of the same code.
	if !consumed {
		slog.WarnContext(ctx, "backup code already consumed", "user_id", profile.UserID)
		s.recordFailure(ctx, profile.UserID, ratelimit.ActionBackup)
		return nil, errInvalidCode()
	}

	s.resetLimit(ctx, profile.UserID, ratelimit.ActionBackup)

	remaining := int64(len(candidates) - 1)
	threshold := int64(s.cfg.GetInt("modules.twofactor.low_backup_code_threshold"))

	return &VerifyOutput{
		Method:               entity.MethodBackup,
		BackupCodesRemaining: remaining,
		LowBackupCodes:       remaining <= threshold,
	}, nil
}
