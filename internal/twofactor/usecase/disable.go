package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gatekeyhq/gatekey/internal/pkg/goerror"
	"github.com/gatekeyhq/gatekey/internal/pkg/ratelimit"
)

type DisableInput struct {
	CurrentPassword string `validate:"required"`
}

// Disable tears down the user's two-factor state: the secret, every backup
// code, any pending enrollment, and outstanding OTP challenges are
// destroyed in one transaction.
func (s *Usecase) Disable(ctx context.Context, in DisableInput) error {
	ctx, span := s.startSpan(ctx, "Disable")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return err
	}

	profile, err := s.repoDB.GetProfile(ctx, clm.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusiness("two-factor authentication is not enabled", goerror.CodeConflict)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get twofactor profile", "user_id", clm.UserID, "error", err)
		return goerror.NewServer(err)
	}

	if !profile.Enabled {
		return goerror.NewBusiness("two-factor authentication is not enabled", goerror.CodeConflict)
	}

	if err := s.verifyPassword(ctx, clm.UserID, in.CurrentPassword); err != nil {
		return err
	}

	if err := s.repoDB.DisableProfile(ctx, clm.UserID); err != nil {
		slog.ErrorContext(ctx, "failed to repo disable twofactor profile", "user_id", clm.UserID, "error", err)
		return goerror.NewServer(err)
	}

	for _, action := range []ratelimit.Action{ratelimit.ActionTOTP, ratelimit.ActionBackup, ratelimit.ActionSMS} {
		s.resetLimit(ctx, clm.UserID, action)
	}

	s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if err := s.repoMessaging.PublishDisabled(ctx, DisabledEvent{UserID: clm.UserID}); err != nil {
			slog.ErrorContext(ctx, "failed to publish twofactor disabled", "user_id", clm.UserID, "error", err)
			return err
		}

		return nil
	})

	return nil
}
