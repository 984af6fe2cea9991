package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/credkit/session-service/internal/config"
	"github.com/credkit/session-service/internal/http/middleware"
	"github.com/credkit/session-service/internal/http/response"
	"github.com/credkit/session-service/internal/observability"
	"github.com/credkit/session-service/internal/security"
	"github.com/credkit/session-service/internal/service"
)

type AuthHandler struct {
	cfg       *config.Config
	authSvc   *service.AuthService
	tokenSvc  *service.TokenService
	cookieMgr *security.CookieManager
}

func NewAuthHandler(cfg *config.Config, authSvc *service.AuthService, tokenSvc *service.TokenService, cookieMgr *security.CookieManager) *AuthHandler {
	return &AuthHandler{cfg: cfg, authSvc: authSvc, tokenSvc: tokenSvc, cookieMgr: cookieMgr}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyConfirmRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Token string `json:"token"`
}

type passwordResetRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", status, time.Since(start))
	}()

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "failure"
		observability.RecordAuthRegister(r.Context(), "failure")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result, err := h.authSvc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.register.failed")
		observability.RecordAuthRegister(r.Context(), "failure")
		writeServiceError(w, r, err)
		return
	}
	code := http.StatusOK
	if result.Created {
		code = http.StatusCreated
	}
	observability.Audit(r, "auth.register.success", "user_id", result.UserID, "verification_required", result.VerificationRequired)
	observability.RecordAuthRegister(r.Context(), "success")
	response.JSON(w, r, code, map[string]any{
		"user_id":                     result.UserID,
		"message":                     result.Message,
		"email_verification_required": result.VerificationRequired,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "failure"
		observability.RecordAuthLogin(r.Context(), "failure")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		status = "failure"
		var lockErr *service.LockoutError
		if errors.As(err, &lockErr) {
			observability.RecordLoginLockout(r.Context())
		}
		observability.Audit(r, "auth.login.failed")
		observability.RecordAuthLogin(r.Context(), "failure")
		writeServiceError(w, r, err)
		return
	}

	body := map[string]any{
		"user":         result.User,
		"access_token": result.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   result.ExpiresIn,
	}
	if h.cfg.RefreshTransport == config.RefreshTransportCookie {
		h.cookieMgr.SetRefreshCookie(w, result.RefreshToken, h.tokenSvc.RefreshTTL())
	} else {
		body["refresh_token"] = result.RefreshToken
	}
	observability.Audit(r, "auth.login.success", "user_id", result.User.ID)
	observability.RecordAuthLogin(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, body)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "refresh", status, time.Since(start))
	}()

	refresh := h.refreshTokenFromRequest(r)
	if refresh == "" {
		status = "failure"
		observability.Audit(r, "auth.refresh.failed", "reason", "missing_refresh_token")
		observability.RecordAuthRefresh(r.Context(), "failure")
		response.Error(w, r, http.StatusUnauthorized, "AUTH_ERROR", "missing refresh token", nil)
		return
	}
	result, err := h.authSvc.Refresh(r.Context(), refresh)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.refresh.failed")
		observability.RecordAuthRefresh(r.Context(), "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.refresh.success", "user_id", result.User.ID)
	observability.RecordAuthRefresh(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":         result.User,
		"access_token": result.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   result.ExpiresIn,
	})
}

// Logout always answers 200: revoking an absent, invalid or already
// revoked token is a no-op, and the response must not reveal which.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "logout", status, time.Since(start))
	}()

	refresh := h.refreshTokenFromRequest(r)
	revoked, err := h.authSvc.Logout(r.Context(), refresh)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.logout.failed")
		observability.RecordAuthLogout(r.Context(), "failure")
		writeServiceError(w, r, err)
		return
	}
	if h.cfg.RefreshTransport == config.RefreshTransportCookie {
		h.cookieMgr.ClearRefreshCookie(w)
	}
	observability.Audit(r, "auth.logout.success")
	observability.RecordAuthLogout(r.Context(), "success")
	observability.RecordTokensRevoked(r.Context(), "logout", revoked)
	response.JSON(w, r, http.StatusOK, map[string]any{"message": "logged out"})
}

func (h *AuthHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify_request", status, time.Since(start))
	}()

	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.authSvc.ResendVerification(r.Context(), req.Email); err != nil {
		status = "failure"
		observability.RecordEmailVerification(r.Context(), "request", "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.verify.requested")
	observability.RecordEmailVerification(r.Context(), "request", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": "if the account exists, a verification code will be sent by email",
	})
}

func (h *AuthHandler) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify_confirm", status, time.Since(start))
	}()

	var req verifyConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	secret := req.Code
	if secret == "" {
		secret = req.Token
	}
	if err := h.authSvc.VerifyEmail(r.Context(), req.Email, secret); err != nil {
		status = "failure"
		observability.Audit(r, "auth.verify.failed")
		observability.RecordEmailVerification(r.Context(), "confirm", "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.verify.success")
	observability.RecordEmailVerification(r.Context(), "confirm", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"message": "email verified"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "password_forgot", status, time.Since(start))
	}()

	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result, err := h.authSvc.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		status = "failure"
		observability.RecordPasswordReset(r.Context(), "request", "failure")
		writeServiceError(w, r, err)
		return
	}
	body := map[string]any{"message": result.Message}
	if result.DevCode != "" {
		body["dev_code"] = result.DevCode
	}
	observability.Audit(r, "auth.password_reset.requested")
	observability.RecordPasswordReset(r.Context(), "request", "success")
	response.JSON(w, r, http.StatusOK, body)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "password_reset", status, time.Since(start))
	}()

	var req passwordResetRequest
	if err := decodeJSON(r, &req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	secret := req.Code
	if secret == "" {
		secret = req.Token
	}
	revoked, err := h.authSvc.CompletePasswordReset(r.Context(), req.Email, secret, req.NewPassword)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.password_reset.failed")
		observability.RecordPasswordReset(r.Context(), "complete", "failure")
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password_reset.success", "sessions_revoked", revoked)
	observability.RecordPasswordReset(r.Context(), "complete", "success")
	observability.RecordTokensRevoked(r.Context(), "password_reset", revoked)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message": "password has been reset, please log in again",
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "AUTH_ERROR", "missing auth context", nil)
		return
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "AUTH_ERROR", "invalid subject", nil)
		return
	}
	user, err := h.authSvc.Profile(r.Context(), uint(userID))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": user})
}

// refreshTokenFromRequest reads the refresh token from the JSON body,
// falling back to the auth cookie so both transports share one handler.
func (h *AuthHandler) refreshTokenFromRequest(r *http.Request) string {
	var req refreshRequest
	if err := decodeJSON(r, &req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return security.GetCookie(r, security.RefreshCookieName)
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *service.ValidationError
	var lockErr *service.LockoutError
	switch {
	case errors.As(err, &vErr):
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", vErr.Rule, nil)
	case errors.As(err, &lockErr):
		w.Header().Set("Retry-After", strconv.Itoa(int(lockErr.RetryAfter.Seconds())))
		response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", lockErr.Error(), map[string]any{
			"retry_after_minutes": lockErr.RetryMinutes(),
		})
	case errors.Is(err, service.ErrEmailTaken):
		response.Error(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "AUTH_ERROR", err.Error(), nil)
	case errors.Is(err, service.ErrEmailUnverified):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "please verify your email before logging in", nil)
	case errors.Is(err, security.ErrInvalidToken), errors.Is(err, service.ErrTokenRevoked):
		response.Error(w, r, http.StatusUnauthorized, "AUTH_ERROR", "invalid or expired refresh token", nil)
	case errors.Is(err, service.ErrCodeInvalid):
		response.Error(w, r, http.StatusBadRequest, "INVALID_CODE", err.Error(), nil)
	case errors.Is(err, service.ErrUserNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, service.ErrSigningSecretMissing):
		response.Error(w, r, http.StatusInternalServerError, "CONFIG_ERROR", "authentication is not configured", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
