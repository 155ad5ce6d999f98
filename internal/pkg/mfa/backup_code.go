package mfa

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// BackupCodeGenerator defines an interface for generating single-use backup
// codes.
type BackupCodeGenerator interface {
	// Generate returns a batch of unique backup codes or an error if the
	// random source fails.
	Generate() ([]string, error)
}

// alphabet is the character set used for backup code generation.
//
// Ambiguous characters (0/O, 1/I/l) are excluded so codes survive being read
// aloud or copied from paper.
const alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz"

// BackupCode generates cryptographically secure backup codes.
//
// It produces codes formatted as:
//
//	XXXX-XXXX-XXXX
//
// Each X is selected uniformly at random from the alphabet constant.
type BackupCode struct {
	count int
}

// NewBackupCode returns a generator producing count codes per batch.
func NewBackupCode(count int) *BackupCode {
	return &BackupCode{count: count}
}

// Generate produces a batch of unique backup codes using crypto/rand.
func (bc *BackupCode) Generate() ([]string, error) {
	out := make([]string, 0, bc.count)
	seen := make(map[string]struct{}, bc.count)

	for len(out) < bc.count {
		code, err := bc.generateCode()
		if err != nil {
			return nil, err
		}

		// extremely unlikely, but prevents accidental duplicates
		if _, ok := seen[code]; ok {
			continue
		}

		seen[code] = struct{}{}
		out = append(out, code)
	}

	return out, nil
}

func (bc *BackupCode) generateCode() (string, error) {
	raw, err := bc.randomString(12)
	if err != nil {
		return "", err
	}
	return raw[0:4] + "-" + raw[4:8] + "-" + raw[8:12], nil
}

func (bc *BackupCode) randomString(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)

	for i := 0; i < n; i++ {
		idx, err := bc.randInt(len(alphabet))
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[idx])
	}

	return sb.String(), nil
}

func (bc *BackupCode) randInt(max int) (int, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(num.Int64()), nil
}
