package inbound

import "time"

type EnrollStartResponse struct {
	Secret    string    `json:"secret"`
	URI       string    `json:"uri"`
	QRImage   string    `json:"qr_image"`
	ExpiresAt time.Time `json:"expires_at"`
}

type EnrollConfirmRequest struct {
	CurrentPassword string `json:"current_password"`
	Code            string `json:"code"`
}

type EnrollConfirmResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

func (EnrollConfirmResponse) Message() string {
	return "Two-factor authentication enabled. Store these backup codes somewhere safe; they will not be shown again."
}

type DisableRequest struct {
	CurrentPassword string `json:"current_password"`
}

type VerifyRequest struct {
	Method string `json:"method"`
	Code   string `json:"code"`
}

type VerifyResponse struct {
	Method               string `json:"method"`
	BackupCodesRemaining *int64 `json:"backup_codes_remaining,omitempty"`
	LowBackupCodes       bool   `json:"low_backup_codes,omitempty"`
}

type StatusResponse struct {
	Enabled              bool       `json:"enabled"`
	EnabledAt            *time.Time `json:"enabled_at,omitempty"`
	PhoneVerified        bool       `json:"phone_verified"`
	BackupCodesRemaining int64      `json:"backup_codes_remaining"`
	PendingEnrollment    bool       `json:"pending_enrollment"`
}

type BackupRegenerateRequest struct {
	CurrentPassword string `json:"current_password"`
}

type BackupRegenerateResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

func (BackupRegenerateResponse) Message() string {
	return "Backup codes regenerated. All previous codes are no longer valid."
}

type SmsSendRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type SmsSendResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

func (SmsSendResponse) Message() string {
	return "Verification code sent."
}

type SmsVerifyRequest struct {
	Code string `json:"code"`
}

type SmsVerifyResponse struct {
	PhoneVerified bool `json:"phone_verified"`
}
