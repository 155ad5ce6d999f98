package db

import (
	"context"

	"github.com/gatekeyhq/gatekey/internal/twofactor/entity"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
)

const enableProfileQuery = `
INSERT INTO twofactor_profiles (user_id, secret, enabled, enabled_at, phone_verified, last_used_step, updated_at)
VALUES ($1, $2, TRUE, $3, FALSE, $4, now())
ON CONFLICT (user_id) DO UPDATE
SET secret = EXCLUDED.secret,
    enabled = TRUE,
    enabled_at = EXCLUDED.enabled_at,
    last_used_step = EXCLUDED.last_used_step,
    updated_at = now()`

const insertBackupCodeQuery = `
INSERT INTO twofactor_backup_codes (id, user_id, batch_id, code_hash, used, created_at)
VALUES ($1, $2, $3, $4, FALSE, now())`

// insertBackupCodes writes a whole batch in one round trip.
func insertBackupCodes(ctx context.Context, tx pgx.Tx, codes []entity.BackupCode) error {
	if len(codes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	lo.ForEach(codes, func(bc entity.BackupCode, _ int) {
		batch.Queue(insertBackupCodeQuery, bc.ID, bc.UserID, bc.BatchID, bc.CodeHash)
	})

	return tx.SendBatch(ctx, batch).Close()
}

// EnableProfile promotes a confirmed enrollment in one transaction: the
// profile flips to enabled with the pending secret, the pending row is
// removed, and the first backup-code batch replaces anything stale.
func (s *DB) EnableProfile(ctx context.Context, profile entity.Profile, codes []entity.BackupCode) (err error) {
	ctx, span := s.startSpan(ctx, "EnableProfile")
	defer func() { s.endSpan(span, err) }()

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, enableProfileQuery,
			profile.UserID, profile.Secret, profile.EnabledAt, profile.LastUsedStep,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM twofactor_pending_enrollments WHERE user_id = $1`, profile.UserID,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM twofactor_backup_codes WHERE user_id = $1`, profile.UserID,
		); err != nil {
			return err
		}

		return insertBackupCodes(ctx, tx, codes)
	})

	return err
}

// DisableProfile destroys all two-factor state for the user in one
// transaction. The profile row survives so the phone number is kept.
func (s *DB) DisableProfile(ctx context.Context, userID int64) (err error) {
	ctx, span := s.startSpan(ctx, "DisableProfile")
	defer func() { s.endSpan(span, err) }()

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE twofactor_profiles
			 SET secret = NULL, enabled = FALSE, enabled_at = NULL, last_used_step = 0, updated_at = now()
			 WHERE user_id = $1`, userID,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM twofactor_backup_codes WHERE user_id = $1`, userID,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM twofactor_pending_enrollments WHERE user_id = $1`, userID,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM twofactor_otp_challenges WHERE user_id = $1`, userID,
		); err != nil {
			return err
		}

		return nil
	})

	return err
}

// ReplaceBackupCodes swaps the whole code set for a new batch; every prior
// code, used or not, is gone after commit.
func (s *DB) ReplaceBackupCodes(ctx context.Context, userID int64, codes []entity.BackupCode) (err error) {
	ctx, span := s.startSpan(ctx, "ReplaceBackupCodes")
	defer func() { s.endSpan(span, err) }()

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM twofactor_backup_codes WHERE user_id = $1`, userID,
		); err != nil {
			return err
		}

		return insertBackupCodes(ctx, tx, codes)
	})

	return err
}
