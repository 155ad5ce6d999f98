package twofactor

import (
	"github.com/gatekeyhq/gatekey/internal/pkg/clock"
	"github.com/gatekeyhq/gatekey/internal/pkg/config"
	"github.com/gatekeyhq/gatekey/internal/pkg/goroutine"
	"github.com/gatekeyhq/gatekey/internal/pkg/hash"
	"github.com/gatekeyhq/gatekey/internal/pkg/idempotency"
	"github.com/gatekeyhq/gatekey/internal/pkg/instrument"
	"github.com/gatekeyhq/gatekey/internal/pkg/messaging"
	"github.com/gatekeyhq/gatekey/internal/pkg/mfa"
	"github.com/gatekeyhq/gatekey/internal/pkg/otp"
	"github.com/gatekeyhq/gatekey/internal/pkg/qr"
	"github.com/gatekeyhq/gatekey/internal/pkg/ratelimit"
	"github.com/gatekeyhq/gatekey/internal/pkg/router"
	"github.com/gatekeyhq/gatekey/internal/pkg/sms"
	"github.com/gatekeyhq/gatekey/internal/pkg/uid"
	"github.com/gatekeyhq/gatekey/internal/pkg/validator"
	"github.com/gatekeyhq/gatekey/internal/twofactor/inbound"
	"github.com/gatekeyhq/gatekey/internal/twofactor/outbound/db"
	"github.com/gatekeyhq/gatekey/internal/twofactor/outbound/mq"
	"github.com/gatekeyhq/gatekey/internal/twofactor/outbound/reauth"
	"github.com/gatekeyhq/gatekey/internal/twofactor/usecase"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Dependency struct {
	DBConn       *pgxpool.Pool              `validate:"required"`
	CacheConn    *redis.Client              `validate:"required"`
	Goroutine    *goroutine.Manager         `validate:"required"`
	Router       *router.Router             `validate:"required"`
	Idempotency  idempotency.Idempotency    `validate:"required"`
	Messaging    messaging.Messaging        `validate:"required"`
	Config       config.Config              `validate:"required"`
	Instrument   instrument.Instrumentation `validate:"required"`
	UID          uid.NumberID               `validate:"required"`
	HMAC         hash.Hash                  `validate:"required"`
	Argon2ID     hash.Hash                  `validate:"required"`
	MFAEncryptor mfa.Encryptor              `validate:"required"`
	BackupCodes  mfa.BackupCodeGenerator    `validate:"required"`
	Clock        clock.Clocker              `validate:"required"`
	Totp         otp.OTP                    `validate:"required"`
	QR           qr.Encoder                 `validate:"required"`
	SMS          sms.SMS                    `validate:"required"`
	Limiter      *ratelimit.Limiter         `validate:"required"`
	Reauth       *reauth.Client             `validate:"required"`
	Validator    validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repo := db.NewDB(dep.DBConn, dep.Instrument)
	repoMsg := mq.NewMessaging(dep.Messaging, dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		RepoDB:        repo,
		RepoMessaging: repoMsg,
		Reauth:        dep.Reauth,
		Idempotency:   dep.Idempotency,
		Validator:     dep.Validator,
		Config:        dep.Config,
		HMAC:          dep.HMAC,
		Argon2ID:      dep.Argon2ID,
		MFAEncryptor:  dep.MFAEncryptor,
		BackupCodes:   dep.BackupCodes,
		UID:           dep.UID,
		Totp:          dep.Totp,
		QR:            dep.QR,
		SMS:           dep.SMS,
		Limiter:       dep.Limiter,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}
