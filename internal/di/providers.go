package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/credkit/session-service/internal/app"
	"github.com/credkit/session-service/internal/config"
	"github.com/credkit/session-service/internal/database"
	"github.com/credkit/session-service/internal/health"
	"github.com/credkit/session-service/internal/http/handler"
	"github.com/credkit/session-service/internal/http/middleware"
	"github.com/credkit/session-service/internal/http/router"
	"github.com/credkit/session-service/internal/observability"
	"github.com/credkit/session-service/internal/repository"
	"github.com/credkit/session-service/internal/security"
	"github.com/credkit/session-service/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideSchemaChecker,
	provideProbeRunner,
)

var RepositorySet = wire.NewSet(repository.New)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	provideCookieManager,
)

var ServiceSet = wire.NewSet(
	provideTokenService,
	provideLoginThrottle,
	provideMailSender,
	service.NewAuthService,
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewHealthHandler,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return err
	}
	fmt.Println("migration complete")
	return nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) redis.UniversalClient {
	if !cfg.RateLimitRedisEnabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTSecret)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func provideTokenService(cfg *config.Config, jwtMgr *security.JWTManager, repos *repository.Repositories) *service.TokenService {
	return service.NewTokenService(jwtMgr, repos.RefreshTokens, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func provideLoginThrottle(cfg *config.Config) *service.LoginThrottle {
	return service.NewLoginThrottle(cfg.MaxLoginAttempts, cfg.LockoutWindow)
}

func provideMailSender(cfg *config.Config, logger *slog.Logger) service.MailSender {
	if cfg.MailConfigured() {
		return service.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	return service.NewDevMailSender(logger)
}

func provideSchemaChecker(cfg *config.Config, db *gorm.DB) *health.SchemaChecker {
	return health.NewSchemaChecker(db, cfg.DBSchema)
}

func provideProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := make([]health.Checker, 0, 2)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if cfg.RateLimitRedisEnabled {
		if c := health.NewRedisChecker(redisClient); c != nil {
			checkers = append(checkers, c)
		}
	}
	return health.NewProbeRunner(time.Second, checkers...)
}

func newAuthRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) func(http.Handler) http.Handler {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix+":auth")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.AuthRateLimitPerMin,
			time.Minute,
			middleware.FailClosed,
			"auth",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.AuthRateLimitPerMin, time.Minute).Middleware()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	healthHandler *handler.HealthHandler,
	jwtMgr *security.JWTManager,
	cfg *config.Config,
	redisClient redis.UniversalClient,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:       authHandler,
		HealthHandler:     healthHandler,
		JWTManager:        jwtMgr,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		APIRateLimitRPM:   cfg.APIRateLimitPerMin,
		AuthRateLimitRPM:  cfg.AuthRateLimitPerMin,
		GlobalRateLimiter: newGlobalRateLimiter(cfg, redisClient),
		AuthRateLimiter:   newAuthRateLimiter(cfg, redisClient),
		EnableOTelHTTP:    cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func newGlobalRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) func(http.Handler) http.Handler {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix+":api")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.APIRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"api",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute).Middleware()
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient)
}
