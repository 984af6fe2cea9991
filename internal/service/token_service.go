package service

import (
	"strconv"
	"time"

	"github.com/credkit/session-service/internal/domain"
	"github.com/credkit/session-service/internal/repository"
	"github.com/credkit/session-service/internal/security"
)

// TokenService pairs the stateless JWT codec with the revocation ledger.
// A refresh token is honored only when its signature verifies AND a live
// ledger row matches its fingerprint; signature validity alone is never
// sufficient.
type TokenService struct {
	jwtMgr      *security.JWTManager
	refreshRepo repository.RefreshTokenRepository
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

func NewTokenService(jwtMgr *security.JWTManager, refreshRepo repository.RefreshTokenRepository, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{jwtMgr: jwtMgr, refreshRepo: refreshRepo, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue mints an access/refresh pair and records the refresh fingerprint
// in the ledger. One row per issued token: concurrent sessions coexist.
func (s *TokenService) Issue(user *domain.User) (access, refresh string, err error) {
	if !s.jwtMgr.Configured() {
		return "", "", ErrSigningSecretMissing
	}
	access, err = s.jwtMgr.SignAccessToken(user.ID, user.Email, s.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, expiresAt, err := s.jwtMgr.SignRefreshToken(user.ID, s.refreshTTL)
	if err != nil {
		return "", "", err
	}
	if err := s.refreshRepo.Create(&domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: security.Fingerprint(refresh),
		ExpiresAt: expiresAt,
	}); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// IssueAccess mints a new access token only. Refresh tokens do not rotate
// on use; the presented token stays valid until its own expiry or an
// explicit logout/reset.
func (s *TokenService) IssueAccess(user *domain.User) (string, error) {
	if !s.jwtMgr.Configured() {
		return "", ErrSigningSecretMissing
	}
	return s.jwtMgr.SignAccessToken(user.ID, user.Email, s.accessTTL)
}

// Validate checks signature, expiry and type, then consults the ledger.
// Returns the subject user ID on success.
func (s *TokenService) Validate(refreshToken string) (uint, error) {
	if !s.jwtMgr.Configured() {
		return 0, ErrSigningSecretMissing
	}
	claims, err := s.jwtMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		return 0, security.ErrInvalidToken
	}
	userID, err := parseSubject(claims.Subject)
	if err != nil {
		return 0, security.ErrInvalidToken
	}
	if _, err := s.refreshRepo.FindLiveByHash(security.Fingerprint(refreshToken), userID, time.Now().UTC()); err != nil {
		if err == repository.ErrRefreshTokenNotFound {
			return 0, ErrTokenRevoked
		}
		return 0, err
	}
	return userID, nil
}

// Revoke deletes the ledger row for one token, if any, and returns how
// many rows went away. Callers must not surface that count to the client:
// logout is idempotent and must not leak token validity.
func (s *TokenService) Revoke(refreshToken string) (int64, error) {
	if refreshToken == "" {
		return 0, nil
	}
	return s.refreshRepo.DeleteByHash(security.Fingerprint(refreshToken))
}

// RevokeAllForUser drops every outstanding session, forcing re-login on
// every device. Used on password reset.
func (s *TokenService) RevokeAllForUser(userID uint) (int64, error) {
	return s.refreshRepo.DeleteByUserID(userID)
}

func parseSubject(sub string) (uint, error) {
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
