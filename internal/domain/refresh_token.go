package domain

import "time"

// RefreshToken is the revocation ledger row behind an issued refresh token.
// Only the sha256 fingerprint of the signed token is stored; the raw token
// never touches the database. Rows are hard-deleted on logout and password
// reset, and stale rows are ignored at lookup time rather than swept.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	TokenHash string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
