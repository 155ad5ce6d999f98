package entity

import "time"

// Profile is a user's two-factor state. The TOTP secret is stored as
// AES-GCM ciphertext and is present only while two-factor is enabled.
type Profile struct {
	UserID        int64
	Secret        []byte
	Enabled       bool
	EnabledAt     time.Time
	PhoneNumber   string
	PhoneVerified bool
	LastUsedStep  int64
	UpdatedAt     time.Time
}

// PendingEnrollment holds the encrypted secret minted by enrollment start
// until the user confirms or the enrollment expires. At most one exists per
// user; a new start supersedes it.
type PendingEnrollment struct {
	UserID    int64
	Secret    []byte
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// BackupCode is a single-use recovery code. Only rows of the newest batch
// are live; a regenerate replaces the whole set.
type BackupCode struct {
	ID        int64
	UserID    int64
	BatchID   int64
	CodeHash  string
	Used      bool
	UsedAt    time.Time
	CreatedAt time.Time
}

// OtpChallenge is a delivered one-time code awaiting verification. The
// newest challenge per (user, channel) wins; older ones are superseded on
// send.
type OtpChallenge struct {
	UserID    int64
	Channel   Channel
	CodeHash  string
	ExpiresAt time.Time
	Consumed  bool
	CreatedAt time.Time
}
