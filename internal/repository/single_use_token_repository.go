package repository

import (
	"errors"
	"time"

	"github.com/credkit/session-service/internal/domain"

	"gorm.io/gorm"
)

var ErrSingleUseTokenNotFound = errors.New("single-use token not found")

// SingleUseToken is the table-neutral view of a reset or verification row.
type SingleUseToken struct {
	ID        uint
	UserID    uint
	ExpiresAt time.Time
}

// SingleUseTokenRepository backs both password_reset_tokens and
// email_verification_tokens. The one-live-row-per-user invariant is kept by
// Replace deleting prior rows inside the insert transaction, not by a
// uniqueness constraint.
type SingleUseTokenRepository interface {
	Replace(userID uint, tokenHash string, expiresAt time.Time) error
	FindLiveByHash(hash string, now time.Time) (*SingleUseToken, error)
	FindLiveByUserHash(userID uint, hash string, now time.Time) (*SingleUseToken, error)
	DeleteByUserID(userID uint) error
}

type GormPasswordResetTokenRepository struct{ db *gorm.DB }

func NewPasswordResetTokenRepository(db *gorm.DB) SingleUseTokenRepository {
	return &GormPasswordResetTokenRepository{db: db}
}

func (r *GormPasswordResetTokenRepository) Replace(userID uint, tokenHash string, expiresAt time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&domain.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&domain.PasswordResetToken{
			UserID:    userID,
			TokenHash: tokenHash,
			ExpiresAt: expiresAt,
		}).Error
	})
}

func (r *GormPasswordResetTokenRepository) FindLiveByHash(hash string, now time.Time) (*SingleUseToken, error) {
	return findLiveSingleUse(r.db.Model(&domain.PasswordResetToken{}), "token_hash = ? AND expires_at > ?", hash, now)
}

func (r *GormPasswordResetTokenRepository) FindLiveByUserHash(userID uint, hash string, now time.Time) (*SingleUseToken, error) {
	return findLiveSingleUse(r.db.Model(&domain.PasswordResetToken{}), "user_id = ? AND token_hash = ? AND expires_at > ?", userID, hash, now)
}

func (r *GormPasswordResetTokenRepository) DeleteByUserID(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&domain.PasswordResetToken{}).Error
}

type GormEmailVerificationTokenRepository struct{ db *gorm.DB }

func NewEmailVerificationTokenRepository(db *gorm.DB) SingleUseTokenRepository {
	return &GormEmailVerificationTokenRepository{db: db}
}

func (r *GormEmailVerificationTokenRepository) Replace(userID uint, tokenHash string, expiresAt time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&domain.EmailVerificationToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&domain.EmailVerificationToken{
			UserID:    userID,
			TokenHash: tokenHash,
			ExpiresAt: expiresAt,
		}).Error
	})
}

func (r *GormEmailVerificationTokenRepository) FindLiveByHash(hash string, now time.Time) (*SingleUseToken, error) {
	return findLiveSingleUse(r.db.Model(&domain.EmailVerificationToken{}), "token_hash = ? AND expires_at > ?", hash, now)
}

func (r *GormEmailVerificationTokenRepository) FindLiveByUserHash(userID uint, hash string, now time.Time) (*SingleUseToken, error) {
	return findLiveSingleUse(r.db.Model(&domain.EmailVerificationToken{}), "user_id = ? AND token_hash = ? AND expires_at > ?", userID, hash, now)
}

func (r *GormEmailVerificationTokenRepository) DeleteByUserID(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&domain.EmailVerificationToken{}).Error
}

func findLiveSingleUse(q *gorm.DB, cond string, args ...any) (*SingleUseToken, error) {
	var row SingleUseToken
	err := q.Select("id, user_id, expires_at").Where(cond, args...).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSingleUseTokenNotFound
		}
		return nil, err
	}
	return &row, nil
}
