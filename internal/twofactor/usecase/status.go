package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gatekeyhq/gatekey/internal/pkg/goerror"
)

type StatusOutput struct {
	Enabled              bool
	EnabledAt            time.Time
	PhoneVerified        bool
	BackupCodesRemaining int64
	PendingEnrollment    bool
}

// Status reports the user's two-factor state for settings screens.
func (s *Usecase) Status(ctx context.Context) (*StatusOutput, error) {
	ctx, span := s.startSpan(ctx, "Status")
	defer span.End()

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	out := &StatusOutput{}

	profile, err := s.repoDB.GetProfile(ctx, clm.UserID)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get twofactor profile", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if profile != nil {
		out.Enabled = profile.Enabled
		out.EnabledAt = profile.EnabledAt
		out.PhoneVerified = profile.PhoneVerified
	}

	if out.Enabled {
		count, err := s.repoDB.CountUnusedBackupCodes(ctx, clm.UserID)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo count unused backup codes", "user_id", clm.UserID, "error", err)
			return nil, goerror.NewServer(err)
		}
		out.BackupCodesRemaining = count
	}

	pending, err := s.repoDB.GetPendingEnrollment(ctx, clm.UserID)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get pending enrollment", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if pending != nil && pending.ExpiresAt.After(s.clock.Now()) {
		out.PendingEnrollment = true
	}

	return out, nil
}
