package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/ManuelReschke/EZPoster/internal/pkg/cache"
	"github.com/ManuelReschke/EZPoster/internal/pkg/entitlements"
	"github.com/ManuelReschke/EZPoster/internal/pkg/gameflip"
	"github.com/ManuelReschke/EZPoster/internal/pkg/usercontext"
)

const profileCacheTTL = 5 * time.Minute

// UserController serves the account, settings and marketplace connection of the session user.
type UserController struct {
	deps *Dependencies
}

func NewUserController(deps *Dependencies) *UserController {
	return &UserController{deps: deps}
}

func profileCacheKey(userID uint) string {
	return fmt.Sprintf("gameflip:profile:%d", userID)
}

// HandleGetAccount returns the user together with the limits that apply right now.
func (uc *UserController) HandleGetAccount(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	return uc.respondAccount(c, u)
}

func (uc *UserController) respondAccount(c *fiber.Ctx, u *models.User) error {
	total, err := uc.deps.Listings.CountByUser(u.ID)
	if err != nil {
		return internalError(c, "Failed to count listings")
	}
	autoPost, err := uc.deps.Listings.CountAutoPost(u.ID)
	if err != nil {
		return internalError(c, "Failed to count listings")
	}

	now := uc.deps.now()
	tier := entitlements.EffectiveTier(u, now)
	return c.JSON(fiber.Map{
		"id":                  u.ID,
		"email":               u.Email,
		"role":                u.Role,
		"premium_tier":        u.PremiumTier,
		"premium_valid_until": formatTimePtr(u.PremiumValidUntil),
		"is_premium":          entitlements.IsPremium(u, now),
		"effective_tier":      tier,
		"gameflip_connected":  entitlements.IsMarketplaceConnected(u),
		"gameflip_id":         u.GameflipID,
		"auto_post":           u.AutoPost,
		"can_auto_post":       entitlements.CanAutoPost(u, now),
		"post_time":           u.PostTime,
		"purge_older_than":    u.PurgeOlderThan,
		"n_posted":            u.NPosted,
		"n_purged":            u.NPurged,
		"limits": fiber.Map{
			"max_listings":         entitlements.MaxListings(tier),
			"min_post_time":        int(entitlements.MinPostInterval(tier) / time.Second),
			"purge_cadence":        int(entitlements.PurgeCadence(u.PostInterval()) / time.Second),
			"min_purge_older_than": entitlements.MinPurgeOlderThanMinutes,
		},
		"listings": fiber.Map{
			"total":     total,
			"auto_post": autoPost,
		},
	})
}

type settingsRequest struct {
	AutoPost       *bool `json:"auto_post"`
	PostTime       *int  `json:"post_time"`
	PurgeOlderThan *int  `json:"purge_older_than"`
}

// HandleUpdateSettings changes auto-post, post interval and purge age.
func (uc *UserController) HandleUpdateSettings(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	now := uc.deps.now()
	fields := make(map[string]interface{})

	if req.PostTime != nil {
		floor := entitlements.MinPostInterval(entitlements.EffectiveTier(u, now))
		if time.Duration(*req.PostTime)*time.Second < floor {
			return jsonError(c, fiber.StatusBadRequest, "invalid_post_time",
				fmt.Sprintf("post_time must be at least %d seconds for your plan", int(floor/time.Second)))
		}
		fields["post_time"] = *req.PostTime
		u.PostTime = *req.PostTime
	}
	if req.PurgeOlderThan != nil {
		if *req.PurgeOlderThan < entitlements.MinPurgeOlderThanMinutes {
			return jsonError(c, fiber.StatusBadRequest, "invalid_purge_older_than",
				fmt.Sprintf("purge_older_than must be at least %d minutes", entitlements.MinPurgeOlderThanMinutes))
		}
		fields["purge_older_than"] = *req.PurgeOlderThan
		u.PurgeOlderThan = *req.PurgeOlderThan
	}
	if req.AutoPost != nil {
		if *req.AutoPost && !entitlements.CanEnableAutoPost(u, now) {
			return jsonError(c, fiber.StatusForbidden, "auto_post_not_allowed",
				"Auto-post requires an active premium plan and a connected Gameflip account")
		}
		fields["auto_post"] = *req.AutoPost
		u.AutoPost = *req.AutoPost
	}

	if len(fields) > 0 {
		if err := uc.deps.Users.UpdateFields(u.ID, fields); err != nil {
			return internalError(c, "Failed to save settings")
		}
		uc.resync(c.Context(), u.ID)
	}
	return uc.respondAccount(c, u)
}

type gameflipConnectRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// HandleConnectGameflip stores marketplace credentials after checking them
// against the profile endpoint. Empty credentials disconnect the account.
func (uc *UserController) HandleConnectGameflip(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	var req gameflipConnectRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	req.APISecret = strings.TrimSpace(req.APISecret)

	if req.APIKey == "" && req.APISecret == "" {
		if err := uc.deps.Users.UpdateFields(u.ID, map[string]interface{}{
			"gameflip_api_key":    nil,
			"gameflip_api_secret": nil,
			"gameflip_id":         nil,
			"auto_post":           false,
		}); err != nil {
			return internalError(c, "Failed to disconnect Gameflip")
		}
		u.ClearGameflipCredentials()
		uc.forgetProfile(u.ID)
		uc.resync(c.Context(), u.ID)
		return uc.respondAccount(c, u)
	}
	if req.APIKey == "" || req.APISecret == "" {
		return badRequest(c, "api_key and api_secret are both required")
	}

	client := uc.deps.Gameflip(gameflip.Credentials{APIKey: req.APIKey, APISecret: req.APISecret})
	profile, err := client.GetProfile(c.Context())
	if err != nil {
		return respondGameflipError(c, err)
	}
	if profile.Owner == "" {
		return jsonError(c, fiber.StatusBadGateway, "gameflip_error", "Gameflip profile has no owner id")
	}

	if err := uc.deps.Users.UpdateFields(u.ID, map[string]interface{}{
		"gameflip_api_key":    req.APIKey,
		"gameflip_api_secret": req.APISecret,
		"gameflip_id":         profile.Owner,
	}); err != nil {
		return internalError(c, "Failed to save Gameflip credentials")
	}
	u.SetGameflipCredentials(req.APIKey, req.APISecret, profile.Owner)
	uc.forgetProfile(u.ID)
	uc.resync(c.Context(), u.ID)
	return uc.respondAccount(c, u)
}

type profileResponse struct {
	Profile              *gameflip.Profile `json:"profile"`
	ListingLimit         int               `json:"listing_limit"`
	RecommendedPostTime  int               `json:"recommended_post_time"`
	RecommendedPurgeTime int               `json:"recommended_purge_time"`
}

// HandleGameflipProfile returns the marketplace profile with recommended pacing.
func (uc *UserController) HandleGameflipProfile(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	if !entitlements.IsMarketplaceConnected(u) {
		return jsonError(c, fiber.StatusConflict, "gameflip_not_connected", "Connect a Gameflip account first")
	}

	key := profileCacheKey(u.ID)
	var cached profileResponse
	if uc.deps.Cache != nil {
		if err := uc.deps.Cache.GetJSON(key, &cached); err == nil {
			return c.JSON(cached)
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Warnf("[Gameflip] Profile cache read failed: %v", err)
		}
	}

	profile, err := uc.deps.Gameflip(gameflip.CredentialsFromUser(u)).GetProfile(c.Context())
	if err != nil {
		return respondGameflipError(c, err)
	}
	resp := profileResponse{
		Profile:              profile,
		ListingLimit:         gameflip.ListingLimit(profile.Sell),
		RecommendedPostTime:  gameflip.RecommendedPostTime(profile.Sell),
		RecommendedPurgeTime: gameflip.RecommendedPurgeTime(profile.Sell),
	}
	if uc.deps.Cache != nil {
		if err := uc.deps.Cache.SetJSON(key, resp, profileCacheTTL); err != nil {
			log.Warnf("[Gameflip] Profile cache write failed: %v", err)
		}
	}
	return c.JSON(resp)
}

func (uc *UserController) forgetProfile(userID uint) {
	if uc.deps.Cache == nil {
		return
	}
	if err := uc.deps.Cache.Delete(profileCacheKey(userID)); err != nil {
		log.Warnf("[Gameflip] Profile cache delete failed: %v", err)
	}
}

func (uc *UserController) resync(ctx context.Context, userID uint) {
	resyncUser(ctx, uc.deps.Scheduler, userID)
}

// resyncUser reconciles the user's timers after a change to eligibility or intervals.
func resyncUser(ctx context.Context, s Scheduler, userID uint) {
	if s == nil {
		return
	}
	if err := s.SyncUser(ctx, userID); err != nil {
		log.Errorf("[AutoLister] Sync for user %d failed: %v", userID, err)
	}
}

func respondGameflipError(c *fiber.Ctx, err error) error {
	var apiErr *gameflip.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == fiber.StatusUnauthorized || apiErr.StatusCode == fiber.StatusForbidden {
			return jsonError(c, fiber.StatusBadRequest, "invalid_credentials", apiErr.Message)
		}
		return jsonError(c, fiber.StatusBadGateway, "gameflip_error", apiErr.Message)
	}
	log.Errorf("[Gameflip] Request failed: %v", err)
	return jsonError(c, fiber.StatusBadGateway, "gameflip_error", "Gameflip is not reachable")
}
