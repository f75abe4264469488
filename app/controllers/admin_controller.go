package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/ManuelReschke/EZPoster/app/repository"
	"github.com/ManuelReschke/EZPoster/internal/pkg/billing"
	"github.com/ManuelReschke/EZPoster/internal/pkg/usercontext"
)

const (
	maxKeysPerRequest = 100
	statsCacheKey     = "statistics:users"
	statsCacheTTL     = time.Minute
)

// AdminController serves premium key management, scheduler queues and statistics.
type AdminController struct {
	deps *Dependencies
}

func NewAdminController(deps *Dependencies) *AdminController {
	return &AdminController{deps: deps}
}

type createKeysRequest struct {
	Tier     string `json:"tier"`
	Duration int    `json:"duration"`
	Count    int    `json:"count"`
}

// HandleCreatePremiumKeys issues one or more premium keys.
func (ac *AdminController) HandleCreatePremiumKeys(c *fiber.Ctx) error {
	var req createKeysRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Count < 0 || req.Count > maxKeysPerRequest {
		return badRequest(c, fmt.Sprintf("count must be between 1 and %d", maxKeysPerRequest))
	}
	tier := models.ParsePremiumTier(req.Tier)

	keys := make([]*models.PremiumKey, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		key, err := ac.deps.Premium.CreatePremiumKey(c.Context(), tier, req.Duration)
		if err != nil {
			if errors.Is(err, billing.ErrInvalidTier) || errors.Is(err, billing.ErrInvalidDuration) {
				return badRequest(c, err.Error())
			}
			return internalError(c, "Failed to create premium key")
		}
		keys = append(keys, key)
	}

	log.Infof("[Admin] User %d created %d %s key(s)", usercontext.GetUserID(c), len(keys), tier)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"keys": keys})
}

// HandleListPremiumKeys lists issued keys, newest first.
func (ac *AdminController) HandleListPremiumKeys(c *fiber.Ctx) error {
	page, limit, offset := pagination(c, 50, 200)
	keys, err := ac.deps.PremiumKeys.List(offset, limit)
	if err != nil {
		return internalError(c, "Failed to load premium keys")
	}
	return c.JSON(fiber.Map{"keys": keys, "page": page, "limit": limit})
}

// HandleQueues shows the pending post and purge timers.
func (ac *AdminController) HandleQueues(c *fiber.Ctx) error {
	if ac.deps.Scheduler == nil {
		return c.JSON(fiber.Map{"running": false, "entries": []interface{}{}})
	}
	return c.JSON(fiber.Map{
		"running": ac.deps.Scheduler.IsRunning(),
		"entries": ac.deps.Scheduler.Snapshot(),
	})
}

// HandleStats returns user and activity totals, cached briefly.
func (ac *AdminController) HandleStats(c *fiber.Ctx) error {
	var cached repository.UserStats
	if ac.deps.Cache != nil && ac.deps.Cache.GetJSON(statsCacheKey, &cached) == nil {
		return c.JSON(cached)
	}

	stats, err := ac.deps.Users.GetStats(ac.deps.now())
	if err != nil {
		return internalError(c, "Failed to load statistics")
	}
	if ac.deps.Cache != nil {
		if err := ac.deps.Cache.SetJSON(statsCacheKey, stats, statsCacheTTL); err != nil {
			log.Warnf("[Admin] Stats cache write failed: %v", err)
		}
	}
	return c.JSON(stats)
}

// HandleUsers lists accounts.
func (ac *AdminController) HandleUsers(c *fiber.Ctx) error {
	page, limit, offset := pagination(c, 50, 200)
	users, err := ac.deps.Users.List(offset, limit)
	if err != nil {
		return internalError(c, "Failed to load users")
	}
	total, err := ac.deps.Users.Count()
	if err != nil {
		return internalError(c, "Failed to count users")
	}
	return c.JSON(fiber.Map{"users": users, "total": total, "page": page, "limit": limit})
}
