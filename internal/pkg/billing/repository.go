package billing

import (
	"errors"
	"time"

	"github.com/ManuelReschke/EZPoster/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	GetUser(userID uint) (*models.User, error)
	UpdatePremium(userID uint, tier models.PremiumTier, validUntil time.Time) error
	CreatePremiumKey(key *models.PremiumKey) error
	GetPremiumKey(key string) (*models.PremiumKey, error)
	// RedeemPremiumKey claims the key and updates the user in one transaction.
	RedeemPremiumKey(keyID, userID uint, tier models.PremiumTier, validUntil time.Time) error
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUser(userID uint) (*models.User, error) {
	return models.FindUserByID(r.db, userID)
}

func (r *gormRepository) UpdatePremium(userID uint, tier models.PremiumTier, validUntil time.Time) error {
	res := r.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"premium_tier":        tier,
		"premium_valid_until": validUntil,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) CreatePremiumKey(key *models.PremiumKey) error {
	return r.db.Create(key).Error
}

func (r *gormRepository) GetPremiumKey(key string) (*models.PremiumKey, error) {
	var pk models.PremiumKey
	if err := r.db.Where("`key` = ?", key).First(&pk).Error; err != nil {
		return nil, err
	}
	return &pk, nil
}

func (r *gormRepository) RedeemPremiumKey(keyID, userID uint, tier models.PremiumTier, validUntil time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PremiumKey{}).
			Where("id = ? AND used_by_id IS NULL", keyID).
			Update("used_by_id", userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidKey
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"premium_tier":        tier,
			"premium_valid_until": validUntil,
		}).Error
	})
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// isNotFound reports gorm's not-found error.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
