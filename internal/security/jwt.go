package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrInvalidToken covers every parse failure: bad signature, expiry, wrong
// token type, malformed input. Callers get one uniform result so the wire
// response cannot distinguish the causes.
var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	Email     string `json:"email,omitempty"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates HMAC-SHA256 tokens with a single
// process-wide secret. It is pure: all state is the secret, read-only
// after construction.
type JWTManager struct {
	secret []byte
}

func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{secret: []byte(secret)}
}

// Configured reports whether a signing secret is present. Absence is a
// per-request configuration error, not a process crash.
func (m *JWTManager) Configured() bool { return len(m.secret) > 0 }

func (m *JWTManager) SignAccessToken(userID uint, email string, ttl time.Duration) (string, error) {
	return m.sign(userID, email, TokenTypeAccess, ttl)
}

func (m *JWTManager) SignRefreshToken(userID uint, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(ttl)
	token, err = m.sign(userID, "", TokenTypeRefresh, ttl)
	return token, expiresAt, err
}

func (m *JWTManager) sign(userID uint, email, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   jwtSubject(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *JWTManager) ParseAccessToken(raw string) (*Claims, error) {
	return m.parse(raw, TokenTypeAccess)
}

func (m *JWTManager) ParseRefreshToken(raw string) (*Claims, error) {
	return m.parse(raw, TokenTypeRefresh)
}

func (m *JWTManager) parse(raw, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid || claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Fingerprint is the storage key for a token in the revocation ledger.
// Raw tokens are never persisted, only this one-way digest.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func jwtSubject(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}
