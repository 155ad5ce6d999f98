package app

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"os"
	"time"

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
	"github.com/nats-io/nats.go"
	libOTP "github.com/pquerna/otp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "/config/config.yaml"
		if os.Getenv("LOCAL") == "true" {
			path = "./config/config.yaml"
		}
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("app.tz"))

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          true,
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	a.hmac = hash.NewHMACSHA256(a.config.GetString("hash.hmac.secret"))
	a.argon2id = hash.NewArgon2id(a.config.GetString("hash.argon2id.pepper"))
	a.qr = qr.New()

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator

	snow, err := uid.NewSnowflake()
	if err != nil {
		slog.Error("failed to init uid number snowflake", "error", err)
		os.Exit(1)
	}
	a.uid = snow

	a.totp = otp.NewTOTP(
		a.config.GetString("mfa.totp.issuer"),
		a.config.GetUint("mfa.totp.period"),
		a.config.GetUint("mfa.totp.skew"),
		libOTP.DigitsSix,
	)

	rawKey, err := base64.StdEncoding.DecodeString(a.config.GetString("mfa.secret"))
	if err != nil {
		slog.Error("failed to decode mfa secret", "error", err)
		os.Exit(1)
	}
	if len(rawKey) != 32 {
		slog.Error("failed to init mfacrypto, secret must be 32 bytes (AES-256)", "error", err)
		os.Exit(1)
	}
	a.mfaEncryptor = mfa.NewAESGCMEncryptor(mfa.StaticKeyProvider{KeyBytes: rawKey})
	a.backupCodes = mfa.NewBackupCode(a.config.GetInt("mfa.backup_code.count"))
}

func (a *App) initJWT() {
	defaultJWT, err := jwt.NewHS512(jwt.Config{
		Secret:     []byte(a.config.GetString("jwt.secret")),
		Issuer:     a.config.GetString("jwt.issuer"),
		Audiences:  a.config.GetArray("jwt.audiences"),
		TTLMinutes: a.config.GetMinute("jwt.ttl_minutes"),
		Clock:      a.clock,
		UUID:       a.uuid,
	})
	if err != nil {
		slog.Error("failed to init jwt token", "error", err)
		os.Exit(1)
	}
	a.jwt = defaultJWT
}

func (a *App) initDatabase() {
	config, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		slog.Error("failed to parse DB connection string.", "error", err)
		os.Exit(1)
	}

	config.MaxConns = a.config.GetInt32("database.pool.max_conns")
	config.MinConns = a.config.GetInt32("database.pool.min_conns")
	config.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	config.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	config.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, config)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	a.dbConn = pool
}

func (a *App) initCache() {
	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
	a.idemp = idempotency.New(a.cacheConn)
}

func (a *App) initMessaging() {
	driver := a.config.GetString("messaging.driver")
	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		NATS: messaging.NATSConfig{
			URL: a.config.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(a.config.GetString("messaging.nats.name")),
				nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(a.config.GetSecond("messaging.nats.timeout_seconds")),
				nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
				nats.PingInterval(a.config.GetSecond("messaging.nats.ping_interval_seconds")),
				nats.MaxPingsOutstanding(a.config.GetInt("messaging.nats.max_pings_outstanding")),
				nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		},
	})
	if err != nil {
		slog.Error("failed to init messaging", "error", err, "driver", driver)
		os.Exit(1)
	}

	a.messaging = client
}

func (a *App) initSMSGateway() {
	gw, err := sms.NewGateway(sms.GatewayConfig{
		URL:        a.config.GetString("sms.gateway.url"),
		APIKey:     a.config.GetString("sms.gateway.api_key"),
		SenderID:   a.config.GetString("sms.gateway.sender_id"),
		Timeout:    a.config.GetSecond("sms.gateway.timeout_seconds"),
		MaxRetries: uint64(a.config.GetInt("sms.gateway.max_retries")),
	})
	if err != nil {
		slog.Error("failed to init sms gateway", "error", err)
		os.Exit(1)
	}

	a.smsGateway = gw
}

func (a *App) initRateLimiter() {
	policy := func(prefix string) ratelimit.Policy {
		return ratelimit.Policy{
			MaxAttempts: a.config.GetInt(prefix + ".max_attempts"),
			Window:      a.config.GetMinute(prefix + ".window_minutes"),
			Lockout:     a.config.GetMinute(prefix + ".lockout_minutes"),
		}
	}

	a.limiter = ratelimit.NewLimiter(
		ratelimit.NewRedisStore(a.cacheConn),
		map[ratelimit.Action]ratelimit.Policy{
			ratelimit.ActionTOTP:   policy("ratelimit.totp"),
			ratelimit.ActionSMS:    policy("ratelimit.sms"),
			ratelimit.ActionBackup: policy("ratelimit.backup"),
		},
		a.clock,
	)
}

func (a *App) initReauth() {
	a.reauth = reauth.NewClient(reauth.Config{
		URL:     a.config.GetString("reauth.url"),
		Token:   a.config.GetString("reauth.token"),
		Timeout: a.config.GetSecond("reauth.timeout_seconds"),
	}, a.ins)
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		JWT:        a.jwt,
		Instrument: a.ins,
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Messaging",
			fn: func(context.Context) error {
				return a.messaging.Close()
			},
		},
		{
			name: "SMSGateway",
			fn: func(context.Context) error {
				return a.smsGateway.Close()
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				return a.cacheConn.Close()
			},
		},
		{
			name: "Database",
			fn: func(context.Context) error {
				a.dbConn.Close()

				return nil
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
