package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	MaxListingImages = 5
	MaxListingTags   = 20
	DefaultCurrency  = "USD"
)

// Listing is a user's saved draft of a marketplace item.
type Listing struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UserID             uint      `gorm:"index:idx_listing_user_autopost" json:"user_id"`
	Name               string    `gorm:"type:varchar(100)" json:"name" validate:"required,min=1,max=100"`
	Description        string    `gorm:"type:text" json:"description" validate:"required,min=1,max=1000"`
	Category           string    `gorm:"type:varchar(50)" json:"category" validate:"required,gf_category"`
	Platform           string    `gorm:"type:varchar(50)" json:"platform" validate:"required,gf_platform"`
	UPC                string    `gorm:"column:upc;type:varchar(100)" json:"upc" validate:"required,gf_upc"`
	PriceInCents       int64     `json:"price_in_cents" validate:"min=75,max=999900"`
	AcceptCurrency     string    `gorm:"type:varchar(10);default:'USD'" json:"accept_currency" validate:"omitempty,len=3"`
	ShippingWithinDays int       `json:"shipping_within_days" validate:"min=1,max=3"`
	ExpiresWithinDays  int       `json:"expires_within_days" validate:"min=1,max=30"`
	Tags               []string  `gorm:"serializer:json;type:json" json:"tags" validate:"max=20,dive,min=1,max=100"`
	Images             []string  `gorm:"serializer:json;type:json" json:"images" validate:"max=5,dive,url"`
	AutoPost           bool      `gorm:"default:false;index:idx_listing_user_autopost" json:"auto_post"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

var listingValidator = newListingValidator()

func newListingValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("gf_category", func(fl validator.FieldLevel) bool {
		return IsGameflipCategory(fl.Field().String())
	})
	_ = v.RegisterValidation("gf_platform", func(fl validator.FieldLevel) bool {
		return IsGameflipPlatform(fl.Field().String())
	})
	_ = v.RegisterValidation("gf_upc", func(fl validator.FieldLevel) bool {
		return IsGameflipUPC(fl.Field().String())
	})
	return v
}

func (l *Listing) Validate() error {
	return listingValidator.Struct(l)
}

// Currency returns the accepted currency, falling back to USD.
func (l *Listing) Currency() string {
	if l.AcceptCurrency == "" {
		return DefaultCurrency
	}
	return l.AcceptCurrency
}
