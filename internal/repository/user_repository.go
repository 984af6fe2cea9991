package repository

import (
	"time"

	"github.com/credkit/session-service/internal/domain"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(user *domain.User) error
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	IncrementFailedLogin(email string, now time.Time) error
	ResetFailedLogin(userID uint, now time.Time) error
	UpdatePassword(userID uint, newHash string, now time.Time) error
	MarkEmailVerified(userID uint, now time.Time) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) Create(user *domain.User) error { return r.db.Create(user).Error }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	if err := r.db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// IncrementFailedLogin is the atomic counter bump: the increment happens in
// the database, so concurrent failures cannot undercount each other.
func (r *GormUserRepository) IncrementFailedLogin(email string, now time.Time) error {
	return r.db.Model(&domain.User{}).Where("email = ?", email).
		Updates(map[string]any{
			"failed_login_attempts": gorm.Expr("failed_login_attempts + 1"),
			"last_failed_login_at":  now,
			"updated_at":            now,
		}).Error
}

func (r *GormUserRepository) ResetFailedLogin(userID uint, now time.Time) error {
	return r.db.Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"last_failed_login_at":  nil,
			"last_login_at":         now,
			"updated_at":            now,
		}).Error
}

func (r *GormUserRepository) UpdatePassword(userID uint, newHash string, now time.Time) error {
	return r.db.Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]any{"password_hash": newHash, "updated_at": now}).Error
}

func (r *GormUserRepository) MarkEmailVerified(userID uint, now time.Time) error {
	return r.db.Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]any{"email_verified": true, "updated_at": now}).Error
}
