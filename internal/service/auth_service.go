package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/credkit/session-service/internal/config"
	"github.com/credkit/session-service/internal/domain"
	"github.com/credkit/session-service/internal/repository"
	"github.com/credkit/session-service/internal/security"

	"gorm.io/gorm"
)

// AuthService is the session manager: every operation is a state
// transition over (users, refresh_tokens, single-use tokens).
type AuthService struct {
	cfg      *config.Config
	tokenSvc *TokenService
	throttle *LoginThrottle
	repos    *repository.Repositories
	mailer   MailSender
}

func NewAuthService(cfg *config.Config, tokenSvc *TokenService, throttle *LoginThrottle, repos *repository.Repositories, mailer MailSender) *AuthService {
	return &AuthService{cfg: cfg, tokenSvc: tokenSvc, throttle: throttle, repos: repos, mailer: mailer}
}

type RegisterResult struct {
	UserID               uint
	Message              string
	VerificationRequired bool
	// Created distinguishes a fresh account (201) from the resend path
	// for an unverified duplicate (200).
	Created bool
}

type LoginResult struct {
	User        *domain.User
	AccessToken string
	// RefreshToken is empty on Refresh: tokens do not rotate on use.
	RefreshToken string
	ExpiresIn    int
}

type ResetRequestResult struct {
	Message string
	// DevCode echoes the reset code when no delivery channel is
	// configured. It must stay empty whenever SMTP is set up.
	DevCode string
}

var (
	emailRe  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	letterRe = regexp.MustCompile(`[A-Za-z]`)
	digitRe  = regexp.MustCompile(`[0-9]`)
)

const verificationCodeDigits = 6

func (s *AuthService) Register(ctx context.Context, email, password, name string) (*RegisterResult, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if len(name) > 255 {
		name = name[:255]
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.repos.Users.FindByEmail(email)
	switch {
	case err == nil && existing.EmailVerified:
		return nil, ErrEmailTaken
	case err == nil:
		// Unverified duplicate. A matching password turns this into a
		// resend; a mismatch still reads as Conflict so the endpoint
		// cannot be used as a password oracle for unverified accounts.
		ok, verr := security.VerifyPassword(existing.PasswordHash, password)
		if verr != nil || !ok {
			return nil, ErrEmailTaken
		}
		msg, verr := s.issueVerification(ctx, existing)
		if verr != nil {
			return nil, verr
		}
		return &RegisterResult{UserID: existing.ID, Message: msg, VerificationRequired: true}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	required := s.cfg.VerificationRequired()
	user := &domain.User{
		Email:         email,
		PasswordHash:  hash,
		Name:          name,
		EmailVerified: !required,
	}
	if err := s.repos.Users.Create(user); err != nil {
		// The uniqueness constraint is the final arbiter of concurrent
		// registrations; the loser gets Conflict, not corrupted state.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	msg := "registration successful"
	if required {
		msg, err = s.issueVerification(ctx, user)
		if err != nil {
			return nil, err
		}
	}
	return &RegisterResult{UserID: user.ID, Message: msg, VerificationRequired: required, Created: true}, nil
}

// issueVerification replaces any prior verification code for the user,
// persists the new fingerprint and attempts delivery. Delivery failure
// degrades the returned message but never fails the registration.
func (s *AuthService) issueVerification(ctx context.Context, user *domain.User) (string, error) {
	raw, link, err := s.newChannelSecret(s.cfg.VerifyBaseURL)
	if err != nil {
		return "", err
	}
	expiresAt := time.Now().UTC().Add(s.cfg.VerifyTokenTTL)
	if err := s.repos.VerifyTokens.Replace(user.ID, security.Fingerprint(raw), expiresAt); err != nil {
		return "", err
	}
	subject, body := verificationEmailBody(raw, link, s.cfg.VerifyTokenTTL)
	if err := s.deliver(ctx, user.Email, subject, body); err != nil {
		return "registration successful, but the verification email could not be sent", nil
	}
	return "registration successful, check your email for a verification code", nil
}

// ResendVerification regenerates and redelivers the verification secret.
// The response is generic whether or not the account exists; an already
// verified account is left untouched.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	user, err := s.repos.Users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}
	_, err = s.issueVerification(ctx, user)
	return err
}

// VerifyEmail consumes a single-use verification secret. The OTP path
// scopes the lookup to the user named by email; the link path looks up by
// token fingerprint alone. Missing and expired collapse into one error.
func (s *AuthService) VerifyEmail(ctx context.Context, email, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return validationErrorf("code or token is required")
	}
	now := time.Now().UTC()
	hash := security.Fingerprint(secret)

	var userID uint
	if email != "" {
		user, err := s.repos.Users.FindByEmail(normalizeEmail(email))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.EmailVerified {
			// Idempotent: already verified is success, no side effects.
			return nil
		}
		record, err := s.repos.VerifyTokens.FindLiveByUserHash(user.ID, hash, now)
		if err != nil {
			if errors.Is(err, repository.ErrSingleUseTokenNotFound) {
				return ErrCodeInvalid
			}
			return err
		}
		userID = record.UserID
	} else {
		record, err := s.repos.VerifyTokens.FindLiveByHash(hash, now)
		if err != nil {
			if errors.Is(err, repository.ErrSingleUseTokenNotFound) {
				return ErrCodeInvalid
			}
			return err
		}
		userID = record.UserID
	}

	return s.repos.Transaction(func(tx *repository.Repositories) error {
		if err := tx.Users.MarkEmailVerified(userID, now); err != nil {
			return err
		}
		return tx.VerifyTokens.DeleteByUserID(userID)
	})
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationErrorf("email and password are required")
	}
	now := time.Now().UTC()

	user, err := s.repos.Users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// Lockout applies before password verification: a locked account
	// answers 429 regardless of password correctness.
	if err := s.throttle.Check(user, now); err != nil {
		return nil, err
	}

	ok, err := security.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		if ierr := s.repos.Users.IncrementFailedLogin(email, now); ierr != nil {
			return nil, ierr
		}
		return nil, ErrInvalidCredentials
	}

	if s.cfg.VerificationRequired() && !user.EmailVerified {
		return nil, ErrEmailUnverified
	}

	if err := s.repos.Users.ResetFailedLogin(user.ID, now); err != nil {
		return nil, err
	}
	user.FailedLoginAttempts = 0
	user.LastFailedLoginAt = nil
	user.LastLoginAt = &now

	access, refresh, err := s.tokenSvc.Issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.tokenSvc.AccessTTL().Seconds()),
	}, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	userID, err := s.tokenSvc.Validate(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.repos.Users.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, err
	}
	access, err := s.tokenSvc.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		User:        user,
		AccessToken: access,
		ExpiresIn:   int(s.tokenSvc.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the ledger row for the presented token and reports how
// many rows were deleted. Absent, invalid and already-revoked tokens all
// succeed: the operation is idempotent and never reveals token validity.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (int64, error) {
	return s.tokenSvc.Revoke(refreshToken)
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*ResetRequestResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, validationErrorf("email is required")
	}
	generic := &ResetRequestResult{Message: "if the user exists, a reset code will be sent by email"}

	user, err := s.repos.Users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return generic, nil
		}
		return nil, err
	}

	raw, link, err := s.newChannelSecret(s.cfg.ResetBaseURL)
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(s.cfg.ResetTokenTTL)
	if err := s.repos.ResetTokens.Replace(user.ID, security.Fingerprint(raw), expiresAt); err != nil {
		return nil, err
	}

	if !s.cfg.MailConfigured() {
		return &ResetRequestResult{Message: generic.Message, DevCode: raw}, nil
	}
	subject, body := resetEmailBody(raw, link, s.cfg.ResetTokenTTL)
	if err := s.deliver(ctx, user.Email, subject, body); err != nil {
		return &ResetRequestResult{Message: "failed to send the reset code"}, nil
	}
	return generic, nil
}

// CompletePasswordReset consumes the code, stores the new digest and drops
// every refresh token for the user in one transaction, forcing a global
// re-login. Returns the number of sessions revoked.
func (s *AuthService) CompletePasswordReset(ctx context.Context, email, secret, newPassword string) (int64, error) {
	if err := validatePassword(newPassword); err != nil {
		return 0, err
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return 0, validationErrorf("reset code is required")
	}
	now := time.Now().UTC()
	hash := security.Fingerprint(secret)

	var record *repository.SingleUseToken
	if email != "" {
		user, err := s.repos.Users.FindByEmail(normalizeEmail(email))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrCodeInvalid
			}
			return 0, err
		}
		record, err = s.repos.ResetTokens.FindLiveByUserHash(user.ID, hash, now)
		if err != nil {
			if errors.Is(err, repository.ErrSingleUseTokenNotFound) {
				return 0, ErrCodeInvalid
			}
			return 0, err
		}
	} else {
		var err error
		record, err = s.repos.ResetTokens.FindLiveByHash(hash, now)
		if err != nil {
			if errors.Is(err, repository.ErrSingleUseTokenNotFound) {
				return 0, ErrCodeInvalid
			}
			return 0, err
		}
	}

	newHash, err := security.HashPassword(newPassword)
	if err != nil {
		return 0, err
	}
	var revoked int64
	err = s.repos.Transaction(func(tx *repository.Repositories) error {
		if err := tx.Users.UpdatePassword(record.UserID, newHash, now); err != nil {
			return err
		}
		if err := tx.ResetTokens.DeleteByUserID(record.UserID); err != nil {
			return err
		}
		n, err := tx.RefreshTokens.DeleteByUserID(record.UserID)
		revoked = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

// Profile loads the account behind an authenticated request.
func (s *AuthService) Profile(ctx context.Context, userID uint) (*domain.User, error) {
	user, err := s.repos.Users.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// newChannelSecret mints the single-use secret for the configured
// verification channel: a 6-digit numeric code, or a high-entropy URL-safe
// token with a link built on baseURL.
func (s *AuthService) newChannelSecret(baseURL string) (raw, link string, err error) {
	if s.cfg.VerificationChannel == config.VerificationChannelLink {
		raw, err = security.NewRandomString(32)
		if err != nil {
			return "", "", err
		}
		if baseURL != "" {
			u, perr := url.Parse(baseURL)
			if perr != nil {
				return "", "", fmt.Errorf("invalid verification base URL: %w", perr)
			}
			q := u.Query()
			q.Set("token", raw)
			u.RawQuery = q.Encode()
			link = u.String()
		}
		return raw, link, nil
	}
	raw, err = security.NewNumericCode(verificationCodeDigits)
	return raw, "", err
}

func (s *AuthService) deliver(ctx context.Context, to, subject, body string) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SMTPSendTimeout)
	defer cancel()
	return s.mailer.Send(sendCtx, to, subject, body)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return validationErrorf("email is required")
	}
	if !emailRe.MatchString(email) {
		return validationErrorf("invalid email")
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case len(password) < 8:
		return validationErrorf("password must be at least 8 characters")
	case len(password) > 128:
		return validationErrorf("password is too long")
	case !letterRe.MatchString(password):
		return validationErrorf("password must contain at least one letter")
	case !digitRe.MatchString(password):
		return validationErrorf("password must contain at least one digit")
	}
	return nil
}
