package repository

import (
	"github.com/ManuelReschke/EZPoster/app/models"
	"gorm.io/gorm"
)

// listingRepository implements the ListingRepository interface
type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository instance
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// Create creates a new stored listing
func (r *listingRepository) Create(listing *models.Listing) error {
	return r.db.Create(listing).Error
}

// GetByIDForUser retrieves a listing owned by userID
func (r *listingRepository) GetByIDForUser(id, userID uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// Update saves all fields of a listing
func (r *listingRepository) Update(listing *models.Listing) error {
	return r.db.Save(listing).Error
}

// Delete removes a listing owned by userID
func (r *listingRepository) Delete(id, userID uint) error {
	res := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Listing{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByUser retrieves a page of a user's listings
func (r *listingRepository) ListByUser(userID uint, offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Where("user_id = ?", userID).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&listings).Error
	return listings, err
}

// CountByUser returns how many listings a user has saved
func (r *listingRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// CountAutoPost returns how many of a user's listings are flagged for auto-post
func (r *listingRepository) CountAutoPost(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).
		Where("user_id = ? AND auto_post = ?", userID, true).
		Count(&count).Error
	return count, err
}

// GetAutoPostAt returns the offset-th auto-post listing in id order. Callers
// draw offset uniformly from [0, CountAutoPost) to pick a random listing.
func (r *listingRepository) GetAutoPostAt(userID uint, offset int) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.Where("user_id = ? AND auto_post = ?", userID, true).
		Order("id ASC").
		Offset(offset).
		Limit(1).
		Take(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// SetAutoPost toggles the auto-post flag of a listing owned by userID
func (r *listingRepository) SetAutoPost(id, userID uint, enabled bool) error {
	res := r.db.Model(&models.Listing{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("auto_post", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
