package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gatekeyhq/gatekey/internal/pkg/goerror"
	"github.com/gatekeyhq/gatekey/internal/pkg/ratelimit"
	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
)

type SmsVerifyInput struct {
	Code string `validate:"required,numeric,min=4,max=8"`
}

type SmsVerifyOutput struct {
	PhoneVerified bool
}

// SmsVerify checks a candidate code against the newest unexpired,
// unconsumed SMS challenge. The first success also marks the profile's
// phone number as verified; later successes leave it untouched.
func (s *Usecase) SmsVerify(ctx context.Context, in SmsVerifyInput) (*SmsVerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "SmsVerify")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.checkLimit(ctx, clm.UserID, ratelimit.ActionSMS); err != nil {
		return nil, err
	}

	challenge, err := s.repoDB.GetOtpChallenge(ctx, clm.UserID, entity.ChannelSMS)
	if errors.Is(err, goerror.ErrNotFound) {
		s.recordFailure(ctx, clm.UserID, ratelimit.ActionSMS)
		return nil, errInvalidCode()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get otp challenge", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if challenge.Consumed || !challenge.ExpiresAt.After(s.clock.Now()) {
		s.recordFailure(ctx, clm.UserID, ratelimit.ActionSMS)
		return nil, errInvalidCode()
	}

	if !s.hmac.Verify(challenge.CodeHash, in.Code) {
		s.recordFailure(ctx, clm.UserID, ratelimit.ActionSMS)
		return nil, errInvalidCode()
	}

	consumed, err := s.repoDB.ConsumeOtpChallenge(ctx, clm.UserID, entity.ChannelSMS)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo consume otp challenge", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	// Lost the race against a concurrent submission of the same code.
	if !consumed {
		slog.WarnContext(ctx, "otp challenge already consumed", "user_id", clm.UserID)
		s.recordFailure(ctx, clm.UserID, ratelimit.ActionSMS)
		return nil, errInvalidCode()
	}

	firstTime, err := s.repoDB.MarkPhoneVerified(ctx, clm.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo mark phone verified", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.resetLimit(ctx, clm.UserID, ratelimit.ActionSMS)

	if firstTime {
		s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
			if err := s.repoMessaging.PublishPhoneVerified(ctx, PhoneVerifiedEvent{UserID: clm.UserID}); err != nil {
				slog.ErrorContext(ctx, "failed to publish phone verified", "user_id", clm.UserID, "error", err)
				return err
			}

			return nil
		})
	}

	return &SmsVerifyOutput{PhoneVerified: true}, nil
}
