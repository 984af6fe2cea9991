package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/credkit/session-service/internal/http/handler"
	"github.com/credkit/session-service/internal/http/middleware"
	"github.com/credkit/session-service/internal/security"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	HealthHandler    *handler.HealthHandler
	JWTManager       *security.JWTManager
	CORSOrigins      []string
	APIRateLimitRPM  int
	AuthRateLimitRPM int
	// GlobalRateLimiter and AuthRateLimiter override the default
	// in-process fixed-window limiters, e.g. with redis-backed ones.
	GlobalRateLimiter func(http.Handler) http.Handler
	AuthRateLimiter   func(http.Handler) http.Handler
	EnableOTelHTTP    bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute).Middleware()
	}

	r.Get("/health/live", dep.HealthHandler.Live)
	r.Get("/health", dep.HealthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter)
			r.Post("/register", dep.AuthHandler.Register)
			r.Post("/login", dep.AuthHandler.Login)
			r.Post("/refresh", dep.AuthHandler.Refresh)
			r.Post("/logout", dep.AuthHandler.Logout)
			r.Post("/verify/request", dep.AuthHandler.RequestVerification)
			r.Post("/verify/confirm", dep.AuthHandler.ConfirmVerification)
			r.Post("/password/forgot", dep.AuthHandler.ForgotPassword)
			r.Post("/password/reset", dep.AuthHandler.ResetPassword)
		})

		r.With(middleware.AuthMiddleware(dep.JWTManager)).Get("/me", dep.AuthHandler.Me)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
