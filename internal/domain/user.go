package domain

import "time"

type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Email               string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash        string     `gorm:"size:1024;not null" json:"-"`
	Name                string     `gorm:"size:255" json:"name"`
	EmailVerified       bool       `gorm:"not null;default:false" json:"email_verified"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LastFailedLoginAt   *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
