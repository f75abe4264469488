package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"
)

// PremiumTier is the subscription level of a user.
type PremiumTier string

const (
	TierNone    PremiumTier = "NONE"
	TierBasic   PremiumTier = "BASIC"
	TierPremium PremiumTier = "PREMIUM"
)

const (
	DefaultPostTimeSeconds       = 300
	DefaultPurgeOlderThanMinutes = 60
)

// Rank orders tiers so that NONE < BASIC < PREMIUM.
func (t PremiumTier) Rank() int {
	switch t {
	case TierPremium:
		return 2
	case TierBasic:
		return 1
	default:
		return 0
	}
}

// ParsePremiumTier normalizes user or provider supplied tier names.
func ParsePremiumTier(raw string) PremiumTier {
	switch PremiumTier(strings.ToUpper(strings.TrimSpace(raw))) {
	case TierPremium:
		return TierPremium
	case TierBasic:
		return TierBasic
	default:
		return TierNone
	}
}

type User struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	ExternalID        string      `gorm:"uniqueIndex;type:varchar(191)" json:"-" validate:"required,max=191"`
	Email             string      `gorm:"type:varchar(200);default:null" json:"email" validate:"omitempty,email,max=200"`
	Role              string      `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	PremiumTier       PremiumTier `gorm:"type:varchar(20);default:'NONE'" json:"premium_tier"`
	PremiumValidUntil *time.Time  `gorm:"type:timestamp;default:null;index" json:"premium_valid_until"`
	GameflipAPIKey    *string     `gorm:"type:varchar(255);default:null" json:"-"`
	GameflipAPISecret *string     `gorm:"type:varchar(255);default:null" json:"-"`
	GameflipID        *string     `gorm:"type:varchar(255);default:null" json:"gameflip_id"`
	AutoPost          bool        `gorm:"default:false;index" json:"auto_post"`
	PostTime          int         `gorm:"default:300" json:"post_time"`
	PurgeOlderThan    int         `gorm:"default:60" json:"purge_older_than"`
	NPosted           int64       `gorm:"default:0" json:"n_posted"`
	NPurged           int64       `gorm:"default:0" json:"n_purged"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewUser builds a fresh account for an identity seen for the first time.
func NewUser(externalID, email string) (*User, error) {
	u := &User{
		ExternalID:     strings.TrimSpace(externalID),
		Email:          strings.TrimSpace(email),
		Role:           ROLE_USER,
		PremiumTier:    TierNone,
		PostTime:       DefaultPostTimeSeconds,
		PurgeOlderThan: DefaultPurgeOlderThanMinutes,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// SetGameflipCredentials stores all three marketplace fields together.
func (u *User) SetGameflipCredentials(apiKey, apiSecret, gameflipID string) {
	u.GameflipAPIKey = &apiKey
	u.GameflipAPISecret = &apiSecret
	u.GameflipID = &gameflipID
}

// ClearGameflipCredentials disconnects the marketplace account. Auto-post
// cannot stay on without credentials.
func (u *User) ClearGameflipCredentials() {
	u.GameflipAPIKey = nil
	u.GameflipAPISecret = nil
	u.GameflipID = nil
	u.AutoPost = false
}

// PostInterval is the configured auto-post interval.
func (u *User) PostInterval() time.Duration {
	secs := u.PostTime
	if secs <= 0 {
		secs = DefaultPostTimeSeconds
	}
	return time.Duration(secs) * time.Second
}

// PurgeRetention is how old an on-sale listing must be before auto-purge removes it.
func (u *User) PurgeRetention() time.Duration {
	mins := u.PurgeOlderThan
	if mins <= 0 {
		mins = DefaultPurgeOlderThanMinutes
	}
	return time.Duration(mins) * time.Minute
}

// Deref returns the value of an optional string column.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FindUserByID is a small helper for code paths without a repository.
func FindUserByID(db *gorm.DB, id uint) (*User, error) {
	var u User
	if err := db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
