package repository

import "gorm.io/gorm"

// Repositories bundles the four stores so services can run multi-table
// state transitions inside one transaction via Transaction.
type Repositories struct {
	Users         UserRepository
	RefreshTokens RefreshTokenRepository
	ResetTokens   SingleUseTokenRepository
	VerifyTokens  SingleUseTokenRepository

	db *gorm.DB
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db),
		RefreshTokens: NewRefreshTokenRepository(db),
		ResetTokens:   NewPasswordResetTokenRepository(db),
		VerifyTokens:  NewEmailVerificationTokenRepository(db),
		db:            db,
	}
}

// Transaction rebinds every repository over one gorm transaction. The
// callback's repositories commit or roll back together, which is how
// single-use codes are deleted atomically with the effect they authorize.
func (r *Repositories) Transaction(fn func(tx *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}
