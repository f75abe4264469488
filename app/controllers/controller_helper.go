package controllers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/ManuelReschke/EZPoster/app/repository"
	"github.com/ManuelReschke/EZPoster/internal/pkg/autolister"
	"github.com/ManuelReschke/EZPoster/internal/pkg/billing"
	"github.com/ManuelReschke/EZPoster/internal/pkg/cache"
	"github.com/ManuelReschke/EZPoster/internal/pkg/gameflip"
)

// Scheduler is the part of the autolister the handlers talk to.
type Scheduler interface {
	SyncUser(ctx context.Context, userID uint) error
	Snapshot() []autolister.QueueEntry
	IsRunning() bool
}

// ImageStore keeps uploaded listing images.
type ImageStore interface {
	Upload(ctx context.Context, userID uint, data []byte) (string, error)
	DeleteAll(ctx context.Context, imageURLs []string) error
}

// PremiumService issues and redeems premium keys and applies webhooks.
type PremiumService interface {
	CreatePremiumKey(ctx context.Context, tier models.PremiumTier, durationDays int) (*models.PremiumKey, error)
	RedeemPremiumKey(ctx context.Context, userID uint, code string) (*models.User, error)
	HandleSellixWebhook(ctx context.Context, payload []byte, cfg billing.SellixConfig) (*billing.SubscriptionUpdate, bool, error)
}

// JSONCache is a small key/value cache for API responses.
type JSONCache interface {
	GetJSON(key string, dest interface{}) error
	SetJSON(key string, value interface{}, expiration time.Duration) error
	Delete(key string) error
}

// Dependencies wires the handlers to the rest of the application.
type Dependencies struct {
	Users       repository.UserRepository
	Listings    repository.ListingRepository
	PremiumKeys repository.PremiumKeyRepository
	Premium     PremiumService
	Sellix      billing.SellixConfig
	Gameflip    gameflip.Factory
	Images      ImageStore
	Scheduler   Scheduler
	Cache       JSONCache
	Now         func() time.Time
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// RedisCache adapts the global cache package to JSONCache.
type RedisCache struct{}

func (RedisCache) GetJSON(key string, dest interface{}) error { return cache.GetJSON(key, dest) }

func (RedisCache) SetJSON(key string, value interface{}, expiration time.Duration) error {
	return cache.SetJSON(key, value, expiration)
}

func (RedisCache) Delete(key string) error { return cache.Delete(key) }

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusBadRequest, "bad_request", message)
}

func internalError(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", message)
}

func notFound(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusNotFound, "not_found", message)
}

// paramID parses a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// pagination reads ?page and ?limit with sane bounds.
func pagination(c *fiber.Ctx, defLimit, maxLimit int) (page, limit, offset int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("limit", defLimit)
	if limit < 1 || limit > maxLimit {
		limit = defLimit
	}
	return page, limit, (page - 1) * limit
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
