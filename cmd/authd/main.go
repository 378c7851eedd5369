// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/carterperez-dev/taskflow-auth/internal/account"
	"github.com/carterperez-dev/taskflow-auth/internal/admin"
	"github.com/carterperez-dev/taskflow-auth/internal/audit"
	"github.com/carterperez-dev/taskflow-auth/internal/auth"
	"github.com/carterperez-dev/taskflow-auth/internal/authz"
	"github.com/carterperez-dev/taskflow-auth/internal/config"
	"github.com/carterperez-dev/taskflow-auth/internal/core"
	"github.com/carterperez-dev/taskflow-auth/internal/health"
	"github.com/carterperez-dev/taskflow-auth/internal/janitor"
	"github.com/carterperez-dev/taskflow-auth/internal/metrics"
	"github.com/carterperez-dev/taskflow-auth/internal/middleware"
	"github.com/carterperez-dev/taskflow-auth/internal/notify"
	"github.com/carterperez-dev/taskflow-auth/internal/recovery"
	"github.com/carterperez-dev/taskflow-auth/internal/server"
	"github.com/carterperez-dev/taskflow-auth/internal/session"
	"github.com/carterperez-dev/taskflow-auth/internal/verification"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	generateKeys := flag.Bool("generate-keys", false, "write a new ES256 key pair to the configured paths and exit")
	flag.Parse()

	if *generateKeys {
		if err := writeKeys(*configPath); err != nil {
			slog.Error("key generation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func writeKeys(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := session.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
		return err
	}

	slog.Info("key pair written",
		"private", cfg.JWT.PrivateKeyPath,
		"public", cfg.JWT.PublicKeyPath,
	)
	return nil
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	tokens, err := session.NewTokenIssuer(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("token issuer initialized",
		"algorithm", "ES256",
		"key_id", tokens.KeyID(),
	)

	var recorder audit.Recorder = audit.Nop{}
	var auditDispatcher *audit.Dispatcher
	if cfg.Audit.Enabled {
		var sink audit.Sink
		if cfg.Audit.Sink == "log" {
			sink = audit.NewLogSink(logger)
		} else {
			sink = audit.NewRepository(db.DB)
		}
		auditDispatcher = audit.NewDispatcher(
			audit.Config{
				BufferSize: cfg.Audit.BufferSize,
				DropIfFull: cfg.Audit.DropIfFull,
			},
			sink,
			logger,
			audit.WithObserver(m),
		)
		recorder = auditDispatcher
	}

	var throttle *notify.Throttle
	var notifier *notify.Dispatcher
	if cfg.Notify.Enabled {
		throttle = notify.NewThrottle(
			redis.Client,
			notify.PerMinute(cfg.Notify.PerChatMinute, cfg.Notify.PerChatBurst),
			cfg.Notify.ThrottleFailOK,
			logger,
		)
		notifier = notify.NewDispatcher(
			notify.Config{BufferSize: cfg.Notify.BufferSize},
			notify.NewRedisPublisher(redis.Client, cfg.Notify.Channel),
			logger,
			notify.WithLimiter(throttle),
			notify.WithObserver(m),
		)
	}

	accountRepo := account.NewRepository(db.DB)
	accountSvc := account.NewService(
		accountRepo,
		account.NewPolicy(cfg.Password, cfg.Username),
		recorder,
		cfg.Auth.DefaultRole,
		logger,
	)

	codeOpts := []verification.Option{verification.WithAudit(recorder)}
	if notifier != nil {
		codeOpts = append(codeOpts, verification.WithNotifier(notifier))
	}
	codeSvc := verification.NewService(
		verification.NewRedisRepository(redis.Client, cfg.Verification.KeyPrefix),
		accountSvc,
		cfg.Verification,
		logger,
		codeOpts...,
	)

	sessionSvc := session.NewService(
		session.NewRepository(db.DB),
		tokens,
		cfg.Session,
		logger,
		session.WithAudit(recorder),
	)

	recoverySvc := recovery.NewService(
		recovery.NewRepository(db.DB),
		accountSvc,
		sessionSvc,
		db,
		cfg.Recovery,
		logger,
		recovery.WithAudit(recorder),
	)

	var roles authz.RoleStore
	if cfg.Auth.RoleSource == "static" {
		roles = authz.NewStaticStore(authz.BuiltinRoles()...)
	} else {
		roles = authz.NewRepository(db.DB)
	}

	authSvc := auth.NewService(auth.Deps{
		Accounts:   accountSvc,
		Codes:      codeSvc,
		Sessions:   sessionSvc,
		Recovery:   recoverySvc,
		Authorizer: authz.NewAuthorizer(roles, logger),
		Tx:         db,
	}, cfg.Auth, logger)

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:      db.Stats,
		RedisStats:   redis.PoolStats,
		DBPing:       db.Ping,
		RedisPing:    redis.Ping,
		Accounts:     authSvc,
		AuditDropped: auditDispatcher.Dropped,
		Logger:       logger,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	if cfg.Metrics.Enabled {
		router.Use(m.Instrument)
		router.Handle(cfg.Metrics.Path, m.Handler())
	}

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", tokens.JWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	requireStats := middleware.RequirePermission(authSvc, authz.ViewSystemStats)

	router.Route("/v1", func(r chi.Router) {
		adminHandler.RegisterRoutes(r, authenticator, requireStats)
	})

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		if !cfg.Janitor.Enabled {
			return
		}
		janitor.New(
			janitor.Config{Interval: cfg.Janitor.Interval, Grace: cfg.Janitor.Grace},
			logger,
			m,
			janitor.Target{Kind: "sessions", Purger: sessionSvc},
			janitor.Target{Kind: "recovery_tokens", Purger: recoverySvc},
		).Run(janitorCtx)
	}()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	var runErr error
	select {
	case runErr = <-errChan:
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if runErr == nil {
		if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}

	stopJanitor()
	<-janitorDone

	notifier.Close()
	auditDispatcher.Close()
	if throttle != nil {
		throttle.Close()
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return runErr
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
