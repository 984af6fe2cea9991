package repository

import (
	"errors"
	"time"

	"github.com/credkit/session-service/internal/domain"

	"gorm.io/gorm"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

type RefreshTokenRepository interface {
	Create(token *domain.RefreshToken) error
	// FindLiveByHash honors a row only when the fingerprint matches, the
	// row belongs to userID, and the stored expiry is still in the future.
	// Expiry is enforced here at lookup time; there is no background sweep.
	FindLiveByHash(hash string, userID uint, now time.Time) (*domain.RefreshToken, error)
	DeleteByHash(hash string) (int64, error)
	DeleteByUserID(userID uint) (int64, error)
}

type GormRefreshTokenRepository struct{ db *gorm.DB }

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

func (r *GormRefreshTokenRepository) Create(token *domain.RefreshToken) error {
	return r.db.Create(token).Error
}

func (r *GormRefreshTokenRepository) FindLiveByHash(hash string, userID uint, now time.Time) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.Where("token_hash = ? AND user_id = ? AND expires_at > ?", hash, userID, now).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *GormRefreshTokenRepository) DeleteByHash(hash string) (int64, error) {
	res := r.db.Where("token_hash = ?", hash).Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (r *GormRefreshTokenRepository) DeleteByUserID(userID uint) (int64, error) {
	res := r.db.Where("user_id = ?", userID).Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}
