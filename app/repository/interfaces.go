package repository

import (
	"errors"
	"time"

	"github.com/ManuelReschke/EZPoster/app/models"
	"gorm.io/gorm"
)

// ErrPremiumKeyUsed is returned when a key was claimed by someone else first.
var ErrPremiumKeyUsed = errors.New("premium key already used")

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByExternalID(externalID string) (*models.User, error)
	FindOrCreateByExternalID(externalID, email string) (*models.User, bool, error)
	Update(user *models.User) error
	UpdateFields(id uint, fields map[string]interface{}) error
	FindAutoPostCandidates(now time.Time) ([]models.User, error)
	IncrementPosted(id uint, n int) error
	IncrementPurged(id uint, n int) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	GetStats(now time.Time) (*UserStats, error)
}

// ListingRepository defines the interface for stored listing operations
type ListingRepository interface {
	Create(listing *models.Listing) error
	GetByIDForUser(id, userID uint) (*models.Listing, error)
	Update(listing *models.Listing) error
	Delete(id, userID uint) error
	ListByUser(userID uint, offset, limit int) ([]models.Listing, error)
	CountByUser(userID uint) (int64, error)
	CountAutoPost(userID uint) (int64, error)
	GetAutoPostAt(userID uint, offset int) (*models.Listing, error)
	SetAutoPost(id, userID uint, enabled bool) error
}

// PremiumKeyRepository defines the interface for premium key operations
type PremiumKeyRepository interface {
	Create(key *models.PremiumKey) error
	GetByKey(key string) (*models.PremiumKey, error)
	MarkUsed(id, userID uint) error
	List(offset, limit int) ([]models.PremiumKey, error)
}

// UserStats aggregates dashboard numbers for the admin view.
type UserStats struct {
	TotalUsers    int64 `json:"total_users"`
	PremiumUsers  int64 `json:"premium_users"`
	AutoPostUsers int64 `json:"auto_post_users"`
	TotalPosted   int64 `json:"total_posted"`
	TotalPurged   int64 `json:"total_purged"`
}

// Repositories struct holds all repository instances
type Repositories struct {
	User       UserRepository
	Listing    ListingRepository
	PremiumKey PremiumKeyRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:       NewUserRepository(db),
		Listing:    NewListingRepository(db),
		PremiumKey: NewPremiumKeyRepository(db),
	}
}
