package app

import (
	"context"
	"net/http"

	"github.com/gatekeyhq/gatekey/internal/pkg/clock"
	"github.com/gatekeyhq/gatekey/internal/pkg/config"
	"github.com/gatekeyhq/gatekey/internal/pkg/goroutine"
	"github.com/gatekeyhq/gatekey/internal/pkg/hash"
	"github.com/gatekeyhq/gatekey/internal/pkg/idempotency"
	"github.com/gatekeyhq/gatekey/internal/pkg/instrument"
	"github.com/gatekeyhq/gatekey/internal/pkg/jwt"
	"github.com/gatekeyhq/gatekey/internal/pkg/messaging"
	"github.com/gatekeyhq/gatekey/internal/pkg/mfa"
	"github.com/gatekeyhq/gatekey/internal/pkg/otp"
	"github.com/gatekeyhq/gatekey/internal/pkg/qr"
	"github.com/gatekeyhq/gatekey/internal/pkg/ratelimit"
	"github.com/gatekeyhq/gatekey/internal/pkg/router"
	"github.com/gatekeyhq/gatekey/internal/pkg/sms"
	"github.com/gatekeyhq/gatekey/internal/pkg/uid"
	"github.com/gatekeyhq/gatekey/internal/pkg/validator"
	"github.com/gatekeyhq/gatekey/internal/twofactor/outbound/reauth"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine    *goroutine.Manager
	validator    validator.Validator
	clock        clock.Clocker
	hmac         hash.Hash
	argon2id     hash.Hash
	uid          uid.NumberID
	uuid         uid.StringID
	totp         otp.OTP
	jwt          jwt.JWT
	mfaEncryptor mfa.Encryptor
	backupCodes  mfa.BackupCodeGenerator
	qr           qr.Encoder

	// resources
	dbConn     *pgxpool.Pool
	cacheConn  *redis.Client
	idemp      idempotency.Idempotency
	messaging  messaging.Messaging
	smsGateway sms.SMS
	limiter    *ratelimit.Limiter
	reauth     *reauth.Client

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initJWT()
	app.initDatabase()
	app.initCache()
	app.initMessaging()
	app.initSMSGateway()
	app.initRateLimiter()
	app.initReauth()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
