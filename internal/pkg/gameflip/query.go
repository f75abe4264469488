package gameflip

import (
	"net/url"
	"strconv"
	"time"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/go-playground/validator/v10"
)

// Listing statuses and visibilities used by the marketplace.
const (
	StatusDraft  = "draft"
	StatusOnSale = "onsale"

	VisibilityPublic = "public"

	SortCreatedAsc = "created:asc"
)

// ListingQuery is the listing creation payload. Field names are the ones
// the marketplace expects on the wire.
type ListingQuery struct {
	Kind                      string   `json:"kind" validate:"required,eq=item"`
	Owner                     string   `json:"owner" validate:"required"`
	Status                    string   `json:"status" validate:"required,oneof=draft onsale"`
	Name                      string   `json:"name" validate:"required,max=100"`
	Description               string   `json:"description" validate:"required,max=1000"`
	Category                  string   `json:"category" validate:"required"`
	Platform                  string   `json:"platform" validate:"required"`
	UPC                       string   `json:"upc" validate:"required"`
	Price                     int64    `json:"price" validate:"min=75,max=999900"`
	AcceptCurrency            string   `json:"accept_currency" validate:"required,len=3"`
	ShippingWithinDays        int      `json:"shipping_within_days" validate:"min=1,max=3"`
	ExpireInDays              int      `json:"expire_in_days" validate:"min=1,max=30"`
	ShippingFee               int64    `json:"shipping_fee" validate:"eq=0"`
	ShippingPaidBy            string   `json:"shipping_paid_by" validate:"required"`
	ShippingPredefinedPackage string   `json:"shipping_predefined_package" validate:"required"`
	Tags                      []string `json:"tags" validate:"max=20"`
	Digital                   bool     `json:"digital"`
	DigitalRegion             string   `json:"digital_region" validate:"required"`
	DigitalDeliverable        string   `json:"digital_deliverable" validate:"required"`
	Visibility                string   `json:"visibility" validate:"required,oneof=public private unlisted"`
}

var queryValidator = validator.New()

// Validate checks the payload before it is sent.
func (q ListingQuery) Validate() error {
	return queryValidator.Struct(q)
}

// BuildListingQuery maps a stored listing to the creation payload. It is
// pure: the same listing and credentials always give the same payload.
// The price is already in cents and passed through unchanged.
func BuildListingQuery(l models.Listing, creds Credentials) ListingQuery {
	tags := make([]string, 0, len(l.Tags))
	tags = append(tags, l.Tags...)

	return ListingQuery{
		Kind:                      "item",
		Owner:                     creds.OwnerID,
		Status:                    StatusDraft,
		Name:                      l.Name,
		Description:               l.Description,
		Category:                  l.Category,
		Platform:                  l.Platform,
		UPC:                       l.UPC,
		Price:                     l.PriceInCents,
		AcceptCurrency:            l.Currency(),
		ShippingWithinDays:        l.ShippingWithinDays,
		ExpireInDays:              l.ExpiresWithinDays,
		ShippingFee:               0,
		ShippingPaidBy:            "seller",
		ShippingPredefinedPackage: "None",
		Tags:                      tags,
		Digital:                   true,
		DigitalRegion:             "none",
		DigitalDeliverable:        "transfer",
		Visibility:                VisibilityPublic,
	}
}

// ToStoredListing maps a marketplace listing back to stored listing fields
// for import. Images and tags beyond the stored limits are dropped.
func ToStoredListing(l Listing) models.Listing {
	images := l.ImageURLs()
	if len(images) > models.MaxListingImages {
		images = images[:models.MaxListingImages]
	}
	tags := append([]string{}, l.Tags...)
	if len(tags) > models.MaxListingTags {
		tags = tags[:models.MaxListingTags]
	}
	currency := l.AcceptCurrency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return models.Listing{
		Name:               l.Name,
		Description:        l.Description,
		Category:           l.Category,
		Platform:           l.Platform,
		UPC:                l.UPC,
		PriceInCents:       l.Price,
		AcceptCurrency:     currency,
		ShippingWithinDays: l.ShippingWithinDays,
		ExpiresWithinDays:  l.ExpireInDays,
		Tags:               tags,
		Images:             images,
	}
}

// PatchOp is one JSON patch operation.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Replace builds a replace operation.
func Replace(path string, value any) PatchOp {
	return PatchOp{Op: "replace", Path: path, Value: value}
}

// SearchParams filters a listing search. Empty fields are omitted.
type SearchParams struct {
	Owner      string
	Status     string
	Sort       string
	Visibility string
	Limit      int
	// Created is a "from,to" range; either side may be empty.
	Created string
}

// CreatedBefore formats a range matching listings created before t.
func CreatedBefore(t time.Time) string {
	return "," + t.UTC().Format(time.RFC3339)
}

// Values encodes the parameters as a query.
func (p SearchParams) Values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("owner", p.Owner)
	set("status", p.Status)
	set("sort", p.Sort)
	set("visibility", p.Visibility)
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	set("created", p.Created)
	return v
}

// CredentialsFromUser reads the stored marketplace credentials of a user.
func CredentialsFromUser(u *models.User) Credentials {
	return Credentials{
		APIKey:    models.Deref(u.GameflipAPIKey),
		APISecret: models.Deref(u.GameflipAPISecret),
		OwnerID:   models.Deref(u.GameflipID),
	}
}
