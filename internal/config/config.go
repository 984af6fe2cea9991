package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string
	DBSchema    string

	// JWTSecret may be empty at load time. Token operations report a
	// config error per request instead of crashing the process.
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	MaxLoginAttempts int
	LockoutWindow    time.Duration

	RequireEmailVerification bool
	VerificationChannel      string
	VerifyTokenTTL           time.Duration
	ResetTokenTTL            time.Duration
	VerifyBaseURL            string
	ResetBaseURL             string

	RefreshTransport string
	CookieDomain     string
	CookieSecure     bool
	CookieSameSite   string

	CORSAllowedOrigins []string

	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	SMTPFrom        string
	SMTPSendTimeout time.Duration

	APIRateLimitPerMin  int
	AuthRateLimitPerMin int

	RateLimitRedisEnabled bool
	RateLimitRedisPrefix  string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

const (
	RefreshTransportCookie = "cookie"
	RefreshTransportBody   = "body"

	VerificationChannelCode = "code"
	VerificationChannelLink = "link"
)

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:         env,
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBSchema:    strings.TrimSpace(os.Getenv("DB_SCHEMA")),

		JWTSecret: os.Getenv("JWT_SECRET"),

		MaxLoginAttempts: getEnvInt("MAX_LOGIN_ATTEMPTS", 5),

		RequireEmailVerification: getEnvBool("AUTH_REQUIRE_EMAIL_VERIFICATION", false),
		VerificationChannel:      strings.ToLower(getEnv("AUTH_VERIFICATION_CHANNEL", VerificationChannelCode)),
		VerifyBaseURL:            strings.TrimSpace(os.Getenv("VERIFY_BASE_URL")),
		ResetBaseURL:             strings.TrimSpace(os.Getenv("RESET_BASE_URL")),

		RefreshTransport: strings.ToLower(getEnv("AUTH_REFRESH_TRANSPORT", RefreshTransportCookie)),
		CookieDomain:     os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:     getEnvBool("COOKIE_SECURE", true),
		CookieSameSite:   strings.ToLower(getEnv("COOKIE_SAMESITE", "strict")),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),

		APIRateLimitPerMin:  getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		AuthRateLimitPerMin: getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),

		RateLimitRedisEnabled: getEnvBool("RATE_LIMIT_REDIS_ENABLED", false),
		RateLimitRedisPrefix:  getEnv("RATE_LIMIT_REDIS_PREFIX", "session-service:rl"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "session-service"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", false),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}
	cfg.SMTPFrom = getEnv("SMTP_FROM", cfg.SMTPUser)

	cfg.AccessTokenTTL = time.Duration(getEnvInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute
	cfg.RefreshTokenTTL = time.Duration(getEnvInt("REFRESH_TOKEN_TTL_DAYS", 30)) * 24 * time.Hour
	cfg.LockoutWindow = time.Duration(getEnvInt("LOCKOUT_MINUTES", 15)) * time.Minute
	cfg.VerifyTokenTTL = time.Duration(getEnvInt("VERIFY_TOKEN_TTL_HOURS", 24)) * time.Hour
	cfg.ResetTokenTTL = time.Duration(getEnvInt("RESET_TOKEN_TTL_MIN", 60)) * time.Minute

	timeout, err := time.ParseDuration(getEnv("SMTP_SEND_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("parse SMTP_SEND_TIMEOUT: %w", err)
	}
	cfg.SMTPSendTimeout = timeout

	interval, err := time.ParseDuration(getEnv("OTEL_METRICS_EXPORT_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("parse OTEL_METRICS_EXPORT_INTERVAL: %w", err)
	}
	cfg.OTELMetricsExportInterval = interval

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MailConfigured reports whether an outbound delivery channel exists.
// Its absence disables verification-required mode and enables the
// development-mode reset code echo.
func (c *Config) MailConfigured() bool {
	return c.SMTPUser != "" && c.SMTPPassword != ""
}

// VerificationRequired is true only when delivery is configured and
// verification is mandated; accounts are otherwise created pre-verified.
func (c *Config) VerificationRequired() bool {
	return c.RequireEmailVerification && c.MailConfigured()
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.AccessTokenTTL <= 0 || c.AccessTokenTTL > time.Hour {
		errs = append(errs, "ACCESS_TOKEN_TTL_MIN must be between 1 and 60")
	}
	if c.RefreshTokenTTL <= 0 || c.RefreshTokenTTL > 365*24*time.Hour {
		errs = append(errs, "REFRESH_TOKEN_TTL_DAYS must be between 1 and 365")
	}
	if c.MaxLoginAttempts <= 0 {
		errs = append(errs, "MAX_LOGIN_ATTEMPTS must be > 0")
	}
	if c.LockoutWindow <= 0 {
		errs = append(errs, "LOCKOUT_MINUTES must be > 0")
	}
	if c.VerificationChannel != VerificationChannelCode && c.VerificationChannel != VerificationChannelLink {
		errs = append(errs, "AUTH_VERIFICATION_CHANNEL must be code or link")
	}
	if c.RefreshTransport != RefreshTransportCookie && c.RefreshTransport != RefreshTransportBody {
		errs = append(errs, "AUTH_REFRESH_TRANSPORT must be cookie or body")
	}
	if c.VerifyTokenTTL < time.Hour || c.VerifyTokenTTL > 24*time.Hour {
		errs = append(errs, "VERIFY_TOKEN_TTL_HOURS must be between 1 and 24")
	}
	if c.ResetTokenTTL <= 0 || c.ResetTokenTTL > 24*time.Hour {
		errs = append(errs, "RESET_TOKEN_TTL_MIN must be between 1 and 1440")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.RateLimitRedisEnabled && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when RATE_LIMIT_REDIS_ENABLED=true")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
