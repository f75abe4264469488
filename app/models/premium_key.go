package models

import (
	"time"

	"github.com/google/uuid"
)

// PremiumKey is a redeemable code granting a tier for Duration days.
type PremiumKey struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Key       string      `gorm:"uniqueIndex;type:varchar(64)" json:"key"`
	Tier      PremiumTier `gorm:"type:varchar(20)" json:"tier"`
	Duration  int         `json:"duration"`
	UsedByID  *uint       `gorm:"index" json:"used_by_id"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewPremiumKey creates an unused key with a random uuid.
func NewPremiumKey(tier PremiumTier, durationDays int) *PremiumKey {
	return &PremiumKey{
		Key:      uuid.New().String(),
		Tier:     tier,
		Duration: durationDays,
	}
}

// IsUsed reports whether the key was already redeemed.
func (k *PremiumKey) IsUsed() bool {
	return k.UsedByID != nil
}

// Length returns the granted period.
func (k *PremiumKey) Length() time.Duration {
	return time.Duration(k.Duration) * 24 * time.Hour
}
