package repository

import (
	"strings"

	"github.com/ManuelReschke/EZPoster/app/models"
	"gorm.io/gorm"
)

// premiumKeyRepository implements the PremiumKeyRepository interface
type premiumKeyRepository struct {
	db *gorm.DB
}

// NewPremiumKeyRepository creates a new premium key repository instance
func NewPremiumKeyRepository(db *gorm.DB) PremiumKeyRepository {
	return &premiumKeyRepository{db: db}
}

// Create stores a new premium key
func (r *premiumKeyRepository) Create(key *models.PremiumKey) error {
	return r.db.Create(key).Error
}

// GetByKey retrieves a premium key by its code
func (r *premiumKeyRepository) GetByKey(key string) (*models.PremiumKey, error) {
	var pk models.PremiumKey
	err := r.db.Where("`key` = ?", strings.TrimSpace(key)).First(&pk).Error
	if err != nil {
		return nil, err
	}
	return &pk, nil
}

// MarkUsed claims the key for userID. The conditional update makes two
// concurrent redemptions of the same key resolve to exactly one winner.
func (r *premiumKeyRepository) MarkUsed(id, userID uint) error {
	res := r.db.Model(&models.PremiumKey{}).
		Where("id = ? AND used_by_id IS NULL", id).
		Update("used_by_id", userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPremiumKeyUsed
	}
	return nil
}

// List retrieves a page of premium keys, newest first
func (r *premiumKeyRepository) List(offset, limit int) ([]models.PremiumKey, error) {
	var keys []models.PremiumKey
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&keys).Error
	return keys, err
}

