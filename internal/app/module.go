package app

import (
	"log/slog"
	"os"

	"github.com/gatekeyhq/gatekey/internal/twofactor"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.twofactor.enabled") {
		if err := twofactor.New(twofactor.Dependency{
			DBConn:       a.dbConn,
			CacheConn:    a.cacheConn,
			Goroutine:    a.goroutine,
			Router:       a.router,
			Idempotency:  a.idemp,
			Messaging:    a.messaging,
			Config:       a.config,
			Instrument:   a.ins,
			UID:          a.uid,
			HMAC:         a.hmac,
			Argon2ID:     a.argon2id,
			MFAEncryptor: a.mfaEncryptor,
			BackupCodes:  a.backupCodes,
			Clock:        a.clock,
			Totp:         a.totp,
			QR:           a.qr,
			SMS:          a.smsGateway,
			Limiter:      a.limiter,
			Reauth:       a.reauth,
			Validator:    a.validator,
		}); err != nil {
			slog.Error("failed to init module twofactor", "error", err)
			os.Exit(1)
		}
	}
}
