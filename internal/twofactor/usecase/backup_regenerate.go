package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gatekeyhq/gatekey/internal/pkg/goerror"
)

type BackupRegenerateInput struct {
	CurrentPassword string `validate:"required"`
}

type BackupRegenerateOutput struct {
	BackupCodes []string
}

// BackupRegenerate replaces the entire backup-code set with a fresh batch.
// Every prior code, used or not, stops working. The plaintext codes are
// returned exactly once.
func (s *Usecase) BackupRegenerate(ctx context.Context, in BackupRegenerateInput) (*BackupRegenerateOutput, error) {
	ctx, span := s.startSpan(ctx, "BackupRegenerate")
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

	if err := s.verifyPassword(ctx, clm.UserID, in.CurrentPassword); err != nil {
		return nil, err
	}

	plainCodes, codes, err := s.mintBackupCodes(ctx, clm.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.repoDB.ReplaceBackupCodes(ctx, clm.UserID, codes); err != nil {
		slog.ErrorContext(ctx, "failed to repo replace backup codes", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &BackupRegenerateOutput{BackupCodes: plainCodes}, nil
}
