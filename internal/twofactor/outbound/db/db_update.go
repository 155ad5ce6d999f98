package db

import (
	"context"

	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
)

const upsertPendingEnrollmentQuery = `
INSERT INTO twofactor_pending_enrollments (user_id, secret, issued_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET secret = EXCLUDED.secret,
    issued_at = EXCLUDED.issued_at,
    expires_at = EXCLUDED.expires_at`

func (s *DB) UpsertPendingEnrollment(ctx context.Context, in entity.PendingEnrollment) (err error) {
	ctx, span := s.startSpan(ctx, "UpsertPendingEnrollment")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, upsertPendingEnrollmentQuery, in.UserID, in.Secret, in.IssuedAt, in.ExpiresAt)

	return s.mapError(err)
}

const upsertOtpChallengeQuery = `
INSERT INTO twofactor_otp_challenges (user_id, channel, code_hash, expires_at, consumed, created_at)
VALUES ($1, $2, $3, $4, FALSE, now())
ON CONFLICT (user_id, channel) DO UPDATE
SET code_hash = EXCLUDED.code_hash,
    expires_at = EXCLUDED.expires_at,
    consumed = FALSE,
    created_at = now()`

func (s *DB) UpsertOtpChallenge(ctx context.Context, in entity.OtpChallenge) (err error) {
	ctx, span := s.startSpan(ctx, "UpsertOtpChallenge")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, upsertOtpChallengeQuery, in.UserID, in.Channel.String(), in.CodeHash, in.ExpiresAt)

	return s.mapError(err)
}

// savePhoneNumberQuery keeps phone_verified only while the number is
// unchanged; a new number must be verified again.
const savePhoneNumberQuery = `
INSERT INTO twofactor_profiles (user_id, phone_number, phone_verified, updated_at)
VALUES ($1, $2, FALSE, now())
ON CONFLICT (user_id) DO UPDATE
SET phone_verified = CASE
        WHEN twofactor_profiles.phone_number IS DISTINCT FROM EXCLUDED.phone_number THEN FALSE
        ELSE twofactor_profiles.phone_verified
    END,
    phone_number = EXCLUDED.phone_number,
    updated_at = now()`

func (s *DB) SavePhoneNumber(ctx context.Context, userID int64, phone string) (err error) {
	ctx, span := s.startSpan(ctx, "SavePhoneNumber")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, savePhoneNumberQuery, userID, phone)

	return s.mapError(err)
}

const consumeBackupCodeQuery = `
UPDATE twofactor_backup_codes
SET used = TRUE, used_at = now()
WHERE id = $1 AND user_id = $2 AND used = FALSE`

// ConsumeBackupCode marks a code used; the conditional write makes
// consumption single-shot under concurrent duplicate submissions.
func (s *DB) ConsumeBackupCode(ctx context.Context, id, userID int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "ConsumeBackupCode")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, consumeBackupCodeQuery, id, userID)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

const consumeOtpChallengeQuery = `
UPDATE twofactor_otp_challenges
SET consumed = TRUE
WHERE user_id = $1 AND channel = $2 AND consumed = FALSE AND expires_at > now()`

func (s *DB) ConsumeOtpChallenge(ctx context.Context, userID int64, channel entity.Channel) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "ConsumeOtpChallenge")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, consumeOtpChallengeQuery, userID, channel.String())
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

const recordUsedStepQuery = `
UPDATE twofactor_profiles
SET last_used_step = $2, updated_at = now()
WHERE user_id = $1 AND enabled = TRUE AND last_used_step < $2`

// RecordUsedStep advances the high-water mark of accepted TOTP steps; a
// repeat of an already-used step updates nothing and reports false.
func (s *DB) RecordUsedStep(ctx context.Context, userID, step int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "RecordUsedStep")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, recordUsedStepQuery, userID, step)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}

const markPhoneVerifiedQuery = `
UPDATE twofactor_profiles
SET phone_verified = TRUE, updated_at = now()
WHERE user_id = $1 AND phone_verified = FALSE`

// MarkPhoneVerified reports true only on the first verification.
func (s *DB) MarkPhoneVerified(ctx context.Context, userID int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkPhoneVerified")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, markPhoneVerifiedQuery, userID)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}
