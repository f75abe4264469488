package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/EZPoster/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByExternalID retrieves a user by the identity provider id
func (r *userRepository) GetByExternalID(externalID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("external_id = ?", strings.TrimSpace(externalID)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindOrCreateByExternalID returns the user for an identity, creating it on first sight.
// The bool result reports whether a row was created.
func (r *userRepository) FindOrCreateByExternalID(externalID, email string) (*models.User, bool, error) {
	user, err := r.GetByExternalID(externalID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user, err = models.NewUser(externalID, email)
	if err != nil {
		return nil, false, err
	}
	if err := r.db.Create(user).Error; err != nil {
		// Lost a race against a concurrent first login.
		if existing, gerr := r.GetByExternalID(externalID); gerr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return user, true, nil
}

// Update saves all fields of an existing user
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// UpdateFields applies a partial update
func (r *userRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.Model(&models.User{}).Where("id = ?", id).Updates(fields).Error
}

// FindAutoPostCandidates returns users with auto-post on, a connected
// marketplace account and a premium subscription valid at now.
func (r *userRepository) FindAutoPostCandidates(now time.Time) ([]models.User, error) {
	var users []models.User
	err := r.db.
		Where("auto_post = ?", true).
		Where("gameflip_id IS NOT NULL AND gameflip_id <> ''").
		Where("gameflip_api_key IS NOT NULL AND gameflip_api_key <> ''").
		Where("gameflip_api_secret IS NOT NULL AND gameflip_api_secret <> ''").
		Where("premium_valid_until IS NOT NULL AND premium_valid_until > ?", now).
		Order("id ASC").
		Find(&users).Error
	return users, err
}

// IncrementPosted atomically adds n to the lifetime posted counter
func (r *userRepository) IncrementPosted(id uint, n int) error {
	return r.increment(id, "n_posted", n)
}

// IncrementPurged atomically adds n to the lifetime purged counter
func (r *userRepository) IncrementPurged(id uint, n int) error {
	return r.increment(id, "n_purged", n)
}

func (r *userRepository) increment(id uint, column string, n int) error {
	if n == 0 {
		return nil
	}
	return r.db.Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", n)).Error
}

// List retrieves a paginated list of users
func (r *userRepository) List(offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// GetStats returns aggregate numbers for the admin dashboard
func (r *userRepository) GetStats(now time.Time) (*UserStats, error) {
	var stats UserStats
	if err := r.db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.User{}).
		Where("premium_valid_until > ?", now).
		Count(&stats.PremiumUsers).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.User{}).
		Where("auto_post = ?", true).
		Count(&stats.AutoPostUsers).Error; err != nil {
		return nil, err
	}
	var sums struct {
		Posted int64
		Purged int64
	}
	if err := r.db.Model(&models.User{}).
		Select("COALESCE(SUM(n_posted), 0) AS posted, COALESCE(SUM(n_purged), 0) AS purged").
		Scan(&sums).Error; err != nil {
		return nil, err
	}
	stats.TotalPosted = sums.Posted
	stats.TotalPurged = sums.Purged
	return &stats, nil
}
