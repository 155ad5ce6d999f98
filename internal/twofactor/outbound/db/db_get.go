package db

import (
	"context"

	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
	"github.com/jackc/pgx/v5/pgtype"
)

const getProfileQuery = `
SELECT user_id, secret, enabled, enabled_at, phone_number, phone_verified, last_used_step, updated_at
FROM twofactor_profiles
WHERE user_id = $1`

func (s *DB) GetProfile(ctx context.Context, userID int64) (_ *entity.Profile, err error) {
	ctx, span := s.startSpan(ctx, "GetProfile")
	defer func() { s.endSpan(span, err) }()

	var (
		p         entity.Profile
		enabledAt pgtype.Timestamptz
		phone     pgtype.Text
		updatedAt pgtype.Timestamptz
	)

	err = s.conn.QueryRow(ctx, getProfileQuery, userID).Scan(
		&p.UserID, &p.Secret, &p.Enabled, &enabledAt, &phone, &p.PhoneVerified, &p.LastUsedStep, &updatedAt,
	)
	if err != nil {
		return nil, s.mapError(err)
	}

	p.EnabledAt = enabledAt.Time
	p.PhoneNumber = phone.String
	p.UpdatedAt = updatedAt.Time

	return &p, nil
}

const getPendingEnrollmentQuery = `
SELECT user_id, secret, issued_at, expires_at
FROM twofactor_pending_enrollments
WHERE user_id = $1`

func (s *DB) GetPendingEnrollment(ctx context.Context, userID int64) (_ *entity.PendingEnrollment, err error) {
	ctx, span := s.startSpan(ctx, "GetPendingEnrollment")
	defer func() { s.endSpan(span, err) }()

	var pe entity.PendingEnrollment

	err = s.conn.QueryRow(ctx, getPendingEnrollmentQuery, userID).Scan(
		&pe.UserID, &pe.Secret, &pe.IssuedAt, &pe.ExpiresAt,
	)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &pe, nil
}

const getOtpChallengeQuery = `
SELECT user_id, channel, code_hash, expires_at, consumed, created_at
FROM twofactor_otp_challenges
WHERE user_id = $1 AND channel = $2`

func (s *DB) GetOtpChallenge(ctx context.Context, userID int64, channel entity.Channel) (_ *entity.OtpChallenge, err error) {
	ctx, span := s.startSpan(ctx, "GetOtpChallenge")
	defer func() { s.endSpan(span, err) }()

	var (
		oc  entity.OtpChallenge
		chn string
	)

	err = s.conn.QueryRow(ctx, getOtpChallengeQuery, userID, channel.String()).Scan(
		&oc.UserID, &chn, &oc.CodeHash, &oc.ExpiresAt, &oc.Consumed, &oc.CreatedAt,
	)
	if err != nil {
		return nil, s.mapError(err)
	}

	oc.Channel = entity.Channel(chn)

	return &oc, nil
}

const getUnusedBackupCodesQuery = `
SELECT id, user_id, batch_id, code_hash, created_at
FROM twofactor_backup_codes
WHERE user_id = $1 AND used = FALSE
ORDER BY id`

func (s *DB) GetUnusedBackupCodes(ctx context.Context, userID int64) (_ []entity.BackupCode, err error) {
	ctx, span := s.startSpan(ctx, "GetUnusedBackupCodes")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, getUnusedBackupCodesQuery, userID)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	codes := make([]entity.BackupCode, 0, 10)
	for rows.Next() {
		var bc entity.BackupCode
		if err = rows.Scan(&bc.ID, &bc.UserID, &bc.BatchID, &bc.CodeHash, &bc.CreatedAt); err != nil {
			return nil, s.mapError(err)
		}
		codes = append(codes, bc)
	}

	if err = rows.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return codes, nil
}

const countUnusedBackupCodesQuery = `
SELECT COUNT(*)
FROM twofactor_backup_codes
WHERE user_id = $1 AND used = FALSE`

func (s *DB) CountUnusedBackupCodes(ctx context.Context, userID int64) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "CountUnusedBackupCodes")
	defer func() { s.endSpan(span, err) }()

	var count int64
	if err = s.conn.QueryRow(ctx, countUnusedBackupCodesQuery, userID).Scan(&count); err != nil {
		return 0, s.mapError(err)
	}

	return count, nil
}
