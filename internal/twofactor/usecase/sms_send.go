package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatekeyhq/gatekey/internal/pkg/goerror"
	"github.com/gatekeyhq/gatekey/internal/pkg/idempotency"
	"github.com/gatekeyhq/gatekey/internal/pkg/otp"
	"github.com/gatekeyhq/gatekey/internal/pkg/sms"
	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
)

type SmsSendInput struct {
	PhoneNumber string `validate:"required,e164"`
}

type SmsSendOutput struct {
	ExpiresAt time.Time
}

// SmsSend issues a numeric one-time code over SMS. The hashed challenge is
// persisted before the gateway call: a delivery failure is reported to the
// caller, but the stored challenge stays valid so a late-arriving message
// can still be verified. A failed delivery also releases the resend
// cooldown so the caller does not have to wait it out.
func (s *Usecase) SmsSend(ctx context.Context, in SmsSendInput) (*SmsSendOutput, error) {
	ctx, span := s.startSpan(ctx, "SmsSend")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	cooldownKey := fmt.Sprintf("twofactor:sms_send:%d", clm.UserID)
	cooldown := s.cfg.GetSecond("modules.twofactor.sms_resend_cooldown_seconds")
	state, err := s.idemp.Acquire(ctx, cooldownKey, cooldown)
	if err != nil {
		slog.ErrorContext(ctx, "failed to acquire sms send cooldown", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if state != idempotency.StateNone {
		slog.WarnContext(ctx, "sms send within cooldown", "user_id", clm.UserID)
		return nil, goerror.NewBusiness("please wait before requesting another code", goerror.CodeTooManyRequest)
	}

	code, err := otp.NumericCode(s.cfg.GetInt("modules.twofactor.sms_code_digits"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate sms code", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	codeHash, err := s.hmac.Hash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash sms code", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	expiresAt := s.clock.Now().Add(s.cfg.GetMinute("modules.twofactor.sms_code_ttl_minutes"))

	// Store before delivering: the challenge lifecycle never depends on the
	// gateway's answer.
	if err := s.repoDB.UpsertOtpChallenge(ctx, entity.OtpChallenge{
		UserID:    clm.UserID,
		Channel:   entity.ChannelSMS,
		CodeHash:  string(codeHash),
		ExpiresAt: expiresAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to repo upsert otp challenge", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoDB.SavePhoneNumber(ctx, clm.UserID, in.PhoneNumber); err != nil {
		slog.ErrorContext(ctx, "failed to repo save phone number", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.sms.Send(ctx, sms.Message{
		To:   in.PhoneNumber,
		Body: fmt.Sprintf("Your verification code is %s", code),
	}); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.WarnContext(ctx, "sms delivery failed", "user_id", clm.UserID, "error", err)
		}

		// Give the cooldown slot back so the caller can retry right away.
		if relErr := s.idemp.Release(ctx, cooldownKey); relErr != nil {
			slog.ErrorContext(ctx, "failed to release sms send cooldown", "user_id", clm.UserID, "error", relErr)
		}

		return nil, goerror.NewBusiness("failed to deliver verification code", goerror.CodeUnavailable)
	}

	return &SmsSendOutput{ExpiresAt: expiresAt}, nil
}
