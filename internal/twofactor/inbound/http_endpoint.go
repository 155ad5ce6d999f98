package inbound

import (
	"github.com/gatekeyhq/gatekey/internal/pkg/router"
	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
	"github.com/gatekeyhq/gatekey/internal/twofactor/usecase"
)

// HTTPEndpoint exposes HTTP handlers for two-factor enrollment and
// verification workflows.
type HTTPEndpoint struct {
	uc uc
}

// EnrollStart begins two-factor enrollment for the current user.
// @Summary Start two-factor enrollment
// @Description Mints a TOTP secret and returns the provisioning URI and QR image. A repeated call supersedes the previous pending secret.
// @Tags TwoFactor, Enrollment
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=EnrollStartResponse} "Enrollment started"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 409 {object} router.errorResponse "Already enabled"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor/enroll [post]
func (h *HTTPEndpoint) EnrollStart(r *router.Request) (any, error) {
	resp, err := h.uc.EnrollStart(r.Context(), usecase.EnrollStartInput{})
	if err != nil {
		return nil, err
	}

	return EnrollStartResponse{
		Secret:    resp.Secret,
		URI:       resp.URI,
		QRImage:   resp.QRImage,
		ExpiresAt: resp.ExpiresAt,
	}, nil
}

// EnrollConfirm verifies a TOTP code to activate two-factor authentication.
// @Summary Confirm two-factor enrollment
// @Description Verifies the current password and a TOTP code against the pending secret, enables two-factor, and returns the one-time backup codes.
// @Tags TwoFactor, Enrollment
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body EnrollConfirmRequest true "Enrollment confirmation payload"
// @Success 200 {object} router.successResponse{data=EnrollConfirmResponse} "Two-factor enabled"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Invalid password or code"
// @Failure 409 {object} router.errorResponse "Already enabled or no enrollment in progress"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Too many failed attempts"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor/enroll/confirm [post]
func (h *HTTPEndpoint) EnrollConfirm(r *router.Request) (any, error) {
	var req EnrollConfirmRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.EnrollConfirm(r.Context(), usecase.EnrollConfirmInput{
		CurrentPassword: req.CurrentPassword,
		Code:            req.Code,
	})
	if err != nil {
		return nil, err
	}

	return &EnrollConfirmResponse{BackupCodes: resp.BackupCodes}, nil
}

// Disable turns off two-factor authentication for the current user.
// @Summary Disable two-factor
// @Description Verifies the current password and destroys all two-factor state: secret, backup codes, and pending challenges.
// @Tags TwoFactor, Enrollment
// @Security BearerAuth
// @Accept json
// @Param request body DisableRequest true "Disable payload"
// @Success 204 "No Content"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Invalid password"
// @Failure 409 {object} router.errorResponse "Not enabled"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor/disable [post]
func (h *HTTPEndpoint) Disable(r *router.Request) (any, error) {
	var req DisableRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	return nil, h.uc.Disable(r.Context(), usecase.DisableInput{CurrentPassword: req.CurrentPassword})
}

// Verify checks a second-factor code (TOTP or backup).
// @Summary Verify second factor
// @Description Verifies a TOTP or backup code for the authenticated user, subject to per-action rate limits.
// @Tags TwoFactor, Verification
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Verification payload"
// @Success 200 {object} router.successResponse{data=VerifyResponse} "Verification result"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Invalid code"
// @Failure 409 {object} router.errorResponse "Not enabled"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Too many failed attempts"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor/verify [post]
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Method: entity.MethodFromString(req.Method),
		Code:   req.Code,
	})
	if err != nil {
		return nil, err
	}

	out := VerifyResponse{
		Method:         resp.Method.String(),
		LowBackupCodes: resp.LowBackupCodes,
	}
	if resp.BackupCodesRemaining >= 0 {
		out.BackupCodesRemaining = &resp.BackupCodesRemaining
	}

	return out, nil
}

// Status reports the current user's two-factor state.
// @Summary Two-factor status
// @Description Returns whether two-factor is enabled, phone verification state, and remaining backup codes.
// @Tags TwoFactor, Verification
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=StatusResponse} "Status result"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor/status [get]
func (h *HTTPEndpoint) Status(r *router.Request) (any, error) {
	resp, err := h.uc.Status(r.Context())
	if err != nil {
		return nil, err
	}

	out := StatusResponse{
		Enabled:              resp.Enabled,
		PhoneVerified:        resp.PhoneVerified,
		BackupCodesRemaining: resp.BackupCodesRemaining,
		PendingEnrollment:    resp.PendingEnrollment,
	}
	if !resp.EnabledAt.IsZero() {
		out.EnabledAt = &resp.EnabledAt
	}

	return out, nil
}

// BackupRegenerate replaces the user's backup codes with a fresh batch.
// @Summary Regenerate backup codes
// @Description Verifies the current password and issues a new backup-code batch, invalidating all prior codes.
// @Tags TwoFactor, Verification
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body BackupRegenerateRequest true "Regeneration payload"
// @Success 200 {object} router.successResponse{data=BackupRegenerateResponse} "New backup codes"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Invalid password"
// @Failure 409 {object} router.errorResponse "Not enabled"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor/backup-codes [post]
func (h *HTTPEndpoint) BackupRegenerate(r *router.Request) (any, error) {
	var req BackupRegenerateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.BackupRegenerate(r.Context(), usecase.BackupRegenerateInput{
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		return nil, err
	}

	return &BackupRegenerateResponse{BackupCodes: resp.BackupCodes}, nil
}

// SmsSend delivers a one-time code to the given phone number.
// @Summary Send SMS code
// @Description Generates a one-time code, stores its hash, and delivers it by SMS. The challenge stays valid even when delivery fails.
// @Tags TwoFactor, SMS
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SmsSendRequest true "Send payload"
// @Success 200 {object} router.successResponse{data=SmsSendResponse} "Code sent"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 422 {object} router.errorResponse "Invalid phone number"
// @Failure 429 {object} router.errorResponse "Resend cooldown"
// @Failure 503 {object} router.errorResponse "Delivery failed"
// @Router /api/v1/twofactor/sms/send [post]
func (h *HTTPEndpoint) SmsSend(r *router.Request) (any, error) {
	var req SmsSendRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.SmsSend(r.Context(), usecase.SmsSendInput{PhoneNumber: req.PhoneNumber})
	if err != nil {
		return nil, err
	}

	return &SmsSendResponse{ExpiresAt: resp.ExpiresAt}, nil
}

// SmsVerify checks a code delivered by SMS.
// @Summary Verify SMS code
// @Description Verifies the one-time code against the newest challenge; the first success marks the phone number verified.
// @Tags TwoFactor, SMS
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SmsVerifyRequest true "Verification payload"
// @Success 200 {object} router.successResponse{data=SmsVerifyResponse} "Verification result"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Invalid code"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Too many failed attempts"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor/sms/verify [post]
func (h *HTTPEndpoint) SmsVerify(r *router.Request) (any, error) {
	var req SmsVerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.SmsVerify(r.Context(), usecase.SmsVerifyInput{Code: req.Code})
	if err != nil {
		return nil, err
	}

	return SmsVerifyResponse{PhoneVerified: resp.PhoneVerified}, nil
}
