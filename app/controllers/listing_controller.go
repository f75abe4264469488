package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/ManuelReschke/EZPoster/internal/pkg/entitlements"
	"github.com/ManuelReschke/EZPoster/internal/pkg/gameflip"
	"github.com/ManuelReschke/EZPoster/internal/pkg/usercontext"
)

// ListingController manages the stored listings of the session user.
type ListingController struct {
	deps *Dependencies
}

func NewListingController(deps *Dependencies) *ListingController {
	return &ListingController{deps: deps}
}

type listingRequest struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	Platform           string   `json:"platform"`
	UPC                string   `json:"upc"`
	PriceInCents       int64    `json:"price_in_cents"`
	AcceptCurrency     string   `json:"accept_currency"`
	ShippingWithinDays int      `json:"shipping_within_days"`
	ExpiresWithinDays  int      `json:"expires_within_days"`
	Tags               []string `json:"tags"`
	Images             []string `json:"images"`
	AutoPost           bool     `json:"auto_post"`
}

func (r *listingRequest) apply(l *models.Listing) {
	l.Name = strings.TrimSpace(r.Name)
	l.Description = strings.TrimSpace(r.Description)
	l.Category = r.Category
	l.Platform = r.Platform
	l.UPC = strings.TrimSpace(r.UPC)
	l.PriceInCents = r.PriceInCents
	l.AcceptCurrency = strings.ToUpper(strings.TrimSpace(r.AcceptCurrency))
	if l.AcceptCurrency == "" {
		l.AcceptCurrency = models.DefaultCurrency
	}
	l.ShippingWithinDays = r.ShippingWithinDays
	l.ExpiresWithinDays = r.ExpiresWithinDays
	l.Tags = r.Tags
	if l.Tags == nil {
		l.Tags = []string{}
	}
	l.Images = r.Images
	if l.Images == nil {
		l.Images = []string{}
	}
	l.AutoPost = r.AutoPost
}

func validationError(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_failed",
			"message": "Invalid fields: " + strings.Join(fields, ", "),
			"fields":  fields,
		})
	}
	return badRequest(c, err.Error())
}

// HandleList returns one page of the user's listings.
func (lc *ListingController) HandleList(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	page, limit, offset := pagination(c, 20, 100)

	listings, err := lc.deps.Listings.ListByUser(u.ID, offset, limit)
	if err != nil {
		return internalError(c, "Failed to load listings")
	}
	total, err := lc.deps.Listings.CountByUser(u.ID)
	if err != nil {
		return internalError(c, "Failed to count listings")
	}
	return c.JSON(fiber.Map{
		"listings": listings,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// HandleGet returns a single listing.
func (lc *ListingController) HandleGet(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid listing id")
	}
	l, err := lc.deps.Listings.GetByIDForUser(id, u.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Listing not found")
		}
		return internalError(c, "Failed to load listing")
	}
	return c.JSON(l)
}

// HandleCreate stores a new listing within the plan's listing cap.
func (lc *ListingController) HandleCreate(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	var req listingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	limit := entitlements.MaxListings(entitlements.EffectiveTier(u, lc.deps.now()))
	count, err := lc.deps.Listings.CountByUser(u.ID)
	if err != nil {
		return internalError(c, "Failed to count listings")
	}
	if count >= int64(limit) {
		return jsonError(c, fiber.StatusForbidden, "listing_limit_reached", "Your plan does not allow more listings")
	}

	l := &models.Listing{UserID: u.ID}
	req.apply(l)
	if err := l.Validate(); err != nil {
		return validationError(c, err)
	}
	if err := lc.deps.Listings.Create(l); err != nil {
		return internalError(c, "Failed to save listing")
	}
	return c.Status(fiber.StatusCreated).JSON(l)
}

// HandleUpdate replaces a listing's fields. Images dropped from the listing are released.
func (lc *ListingController) HandleUpdate(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid listing id")
	}
	var req listingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	l, err := lc.deps.Listings.GetByIDForUser(id, u.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Listing not found")
		}
		return internalError(c, "Failed to load listing")
	}
	previous := l.Images

	req.apply(l)
	if err := l.Validate(); err != nil {
		return validationError(c, err)
	}
	if err := lc.deps.Listings.Update(l); err != nil {
		return internalError(c, "Failed to save listing")
	}

	lc.releaseImages(c, droppedImages(previous, l.Images))
	return c.JSON(l)
}

// HandleDelete removes a listing and releases its images.
func (lc *ListingController) HandleDelete(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid listing id")
	}
	l, err := lc.deps.Listings.GetByIDForUser(id, u.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Listing not found")
		}
		return internalError(c, "Failed to load listing")
	}
	if err := lc.deps.Listings.Delete(l.ID, u.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Listing not found")
		}
		return internalError(c, "Failed to delete listing")
	}

	lc.releaseImages(c, l.Images)
	return c.SendStatus(fiber.StatusNoContent)
}

type importRequest struct {
	ID string `json:"id"`
}

// draftFromListing renders stored listing fields in the create request shape.
func draftFromListing(l models.Listing) listingRequest {
	return listingRequest{
		Name:               l.Name,
		Description:        l.Description,
		Category:           l.Category,
		Platform:           l.Platform,
		UPC:                l.UPC,
		PriceInCents:       l.PriceInCents,
		AcceptCurrency:     l.AcceptCurrency,
		ShippingWithinDays: l.ShippingWithinDays,
		ExpiresWithinDays:  l.ExpiresWithinDays,
		Tags:               l.Tags,
		Images:             l.Images,
	}
}

func invalidFields(err error) []string {
	fields := []string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
	}
	return fields
}

// HandleImport fetches one of the user's marketplace listings and returns it
// as a draft for the create form. Nothing is stored.
func (lc *ListingController) HandleImport(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	var req importRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if !entitlements.IsMarketplaceConnected(u) {
		return jsonError(c, fiber.StatusConflict, "gameflip_not_connected", "Connect a Gameflip account first")
	}
	id, err := gameflip.ParseListingRef(req.ID)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_listing_ref", "Enter a Gameflip listing id or item URL")
	}

	remote, err := lc.deps.Gameflip(gameflip.CredentialsFromUser(u)).GetListing(c.Context(), id)
	if err != nil {
		var apiErr *gameflip.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == fiber.StatusNotFound {
			return notFound(c, "Gameflip listing not found")
		}
		return respondGameflipError(c, err)
	}

	draft := gameflip.ToStoredListing(*remote)
	return c.JSON(fiber.Map{
		"source_id":      remote.ID,
		"listing":        draftFromListing(draft),
		"invalid_fields": invalidFields(draft.Validate()),
	})
}

type autoPostRequest struct {
	Enabled bool `json:"enabled"`
}

// HandleSetAutoPost includes or excludes a listing from the auto-post rotation.
func (lc *ListingController) HandleSetAutoPost(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid listing id")
	}
	var req autoPostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := lc.deps.Listings.SetAutoPost(id, u.ID, req.Enabled); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Listing not found")
		}
		return internalError(c, "Failed to update listing")
	}
	return c.JSON(fiber.Map{"id": id, "auto_post": req.Enabled})
}

func (lc *ListingController) releaseImages(c *fiber.Ctx, urls []string) {
	if lc.deps.Images == nil || len(urls) == 0 {
		return
	}
	if err := lc.deps.Images.DeleteAll(c.Context(), urls); err != nil {
		log.Warnf("[ImageStore] Failed to release listing images: %v", err)
	}
}

// droppedImages returns the entries of before that are missing from after.
func droppedImages(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, u := range after {
		keep[u] = struct{}{}
	}
	var out []string
	for _, u := range before {
		if _, ok := keep[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}
