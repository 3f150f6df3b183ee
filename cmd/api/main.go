package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/palompy/gatekeeper/internal/auth"
	"github.com/palompy/gatekeeper/internal/background"
	"github.com/palompy/gatekeeper/internal/config"
	"github.com/palompy/gatekeeper/internal/counter"
	"github.com/palompy/gatekeeper/internal/database"
	"github.com/palompy/gatekeeper/internal/handlers"
	middlewareCustom "github.com/palompy/gatekeeper/internal/middleware"
	"github.com/palompy/gatekeeper/internal/repositories"
	"github.com/palompy/gatekeeper/internal/routes"
	"github.com/palompy/gatekeeper/internal/services"
	pkghttp "github.com/palompy/gatekeeper/pkg/http"
	pkglogger "github.com/palompy/gatekeeper/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	roleRepo := repositories.NewRoleRepository(db)
	twoFactorRepo := repositories.NewTwoFactorRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)

	// Authentication and authorization
	authenticator := auth.NewBearerAuthenticator(auth.NewTokenCodec(cfg.Auth.JWTSecret))
	authorizer, err := auth.NewRoleAuthorizer(roleRepo, cfg.Auth.RBACCacheTTL, cfg.Auth.RBACCacheSize)
	if err != nil {
		logger.Error("failed to initialize role authorizer", slog.Any("error", err))
		os.Exit(1)
	}
	csrfStore := auth.NewCSRFTokenStore(cfg.Auth.CSRFTokenTTL)

	// Rate limiting: remote primary when configured, in-process fallback always
	localCounters := counter.NewLocalStore()
	primary, closePrimary := newCounterBackend(cfg.RateLimit, cfg.Server.Env, logger)
	defer closePrimary()

	rateLimitService := services.NewRateLimitService(primary, localCounters, services.RateLimitConfig{
		Window:      cfg.RateLimit.Window,
		MaxRequests: int64(cfg.RateLimit.MaxRequests),
		KeyPrefix:   cfg.RateLimit.KeyPrefix,
	}, logger)

	// Two-factor
	cipher, err := auth.NewSecretCipher(cfg.TwoFactor.EncryptionKey)
	if err != nil {
		logger.Error("failed to initialize secret cipher", slog.Any("error", err))
		os.Exit(1)
	}
	mfaService := services.NewMFAService(
		twoFactorRepo,
		cipher,
		auth.NewTOTPEngine(cfg.TwoFactor.Issuer),
		auth.NewRecoveryCodeSet(auth.DefaultRecoveryCodeCount),
		auditLogger,
		logger,
	)

	// Background sweep of in-memory stores
	cleanupManager := background.NewCleanupManager(logger, cfg.Auth.CleanupInterval)
	cleanupManager.Register("csrf_tokens", csrfStore)
	cleanupManager.Register("local_counters", localCounters)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(router, routes.Dependencies{
		Health:        handlers.NewHealthHandler(db),
		Security:      handlers.NewSecurityHandler(mfaService, csrfStore, logger),
		Authenticator: authenticator,
		Authorizer:    authorizer,
		RateLimiter:   rateLimitService,
		CSRF:          csrfStore,
		IPConfig:      ipConfig,
		Audit:         auditLogger,
		Logger:        logger,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

// newCounterBackend builds the primary counter backend from REDIS_URL.
// No URL or an unparsable one yields nil, which makes the limiter run on its
// local fallback only. The returned func releases the backend.
func newCounterBackend(cfg config.RateLimitConfig, env string, logger *slog.Logger) (counter.Backend, func()) {
	noop := func() {}
	if cfg.RedisURL == "" {
		logger.Info("rate limit counters are process-local")
		return nil, noop
	}

	respCfg, err := counter.ParseRedisURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, rate limit counters are process-local",
			pkglogger.RedactedAttr("redis_url", cfg.RedisURL, env),
			slog.Any("error", err),
		)
		return nil, noop
	}
	respCfg.Timeout = cfg.RemoteTimeout

	switch cfg.RemoteDriver {
	case config.RemoteDriverGoRedis:
		backend := counter.NewRedisBackend(respCfg)
		logger.Info("rate limit counters use go-redis", slog.String("addr", respCfg.Addr))
		return backend, func() {
			if err := backend.Close(); err != nil {
				logger.Warn("failed to close redis client", slog.Any("error", err))
			}
		}
	default:
		client := counter.NewRESPClient(respCfg)
		logger.Info("rate limit counters use RESP client", slog.String("addr", client.Addr()))
		return client, noop
	}
}

func parseLogLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}
