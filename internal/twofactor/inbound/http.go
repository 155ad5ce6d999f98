package inbound

import (
	"context"

	"github.com/gatekeyhq/gatekey/internal/pkg/router"
	"github.com/gatekeyhq/gatekey/internal/twofactor/usecase"
)

type uc interface {
	EnrollStart(ctx context.Context, in usecase.EnrollStartInput) (*usecase.EnrollStartOutput, error)
	EnrollConfirm(ctx context.Context, in usecase.EnrollConfirmInput) (*usecase.EnrollConfirmOutput, error)
	Disable(ctx context.Context, in usecase.DisableInput) error

	Verify(ctx context.Context, in usecase.VerifyInput) (*usecase.VerifyOutput, error)
	Status(ctx context.Context) (*usecase.StatusOutput, error)
	BackupRegenerate(ctx context.Context, in usecase.BackupRegenerateInput) (*usecase.BackupRegenerateOutput, error)

	SmsSend(ctx context.Context, in usecase.SmsSendInput) (*usecase.SmsSendOutput, error)
	SmsVerify(ctx context.Context, in usecase.SmsVerifyInput) (*usecase.SmsVerifyOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// Enrollment (need authenticated)
	r.POST("/api/v1/twofactor/enroll", end.EnrollStart)
	r.POST("/api/v1/twofactor/enroll/confirm", end.EnrollConfirm)
	r.POST("/api/v1/twofactor/disable", end.Disable)

	// Verification & status (need authenticated)
	r.POST("/api/v1/twofactor/verify", end.Verify)
	r.GET("/api/v1/twofactor/status", end.Status)
	r.POST("/api/v1/twofactor/backup-codes", end.BackupRegenerate)

	// SMS channel (need authenticated)
	r.POST("/api/v1/twofactor/sms/send", end.SmsSend)
	r.POST("/api/v1/twofactor/sms/verify", end.SmsVerify)
}
