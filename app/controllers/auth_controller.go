package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/EZPoster/internal/pkg/env"
	"github.com/ManuelReschke/EZPoster/internal/pkg/oauth"
	"github.com/ManuelReschke/EZPoster/internal/pkg/session"
)

// AuthController links hosted identity provider logins to accounts.
type AuthController struct {
	deps      *Dependencies
	providers []string
}

func NewAuthController(deps *Dependencies, providers []string) *AuthController {
	return &AuthController{deps: deps, providers: providers}
}

// HandleProviders lists the configured identity providers.
func (ac *AuthController) HandleProviders(c *fiber.Ctx) error {
	providers := ac.providers
	if providers == nil {
		providers = []string{}
	}
	return c.JSON(fiber.Map{"providers": providers})
}

// HandleOAuthCallback completes the provider flow and logs the user in. The
// first login of an identity creates its account.
func (ac *AuthController) HandleOAuthCallback(c *fiber.Ctx) error {
	gu, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "oauth_failed", err.Error())
	}
	if gu.UserID == "" {
		return jsonError(c, fiber.StatusBadRequest, "oauth_failed", "Provider returned no user id")
	}

	u, created, err := ac.deps.Users.FindOrCreateByExternalID(oauth.ExternalID(gu.Provider, gu.UserID), gu.Email)
	if err != nil {
		log.Errorf("[Auth] Account lookup for %s failed: %v", gu.Provider, err)
		return internalError(c, "Failed to load account")
	}
	if created {
		log.Infof("[Auth] Created user %d via %s", u.ID, gu.Provider)
	}

	if err := session.Login(c, u.ID); err != nil {
		return internalError(c, "Failed to create session")
	}
	return c.Redirect(postLoginRedirect(), fiber.StatusSeeOther)
}

// HandleLogout ends the session.
func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if err := session.Logout(c); err != nil {
		return internalError(c, "Failed to end session")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func postLoginRedirect() string {
	if target := strings.TrimSpace(env.GetEnv("LOGIN_REDIRECT_URL", "")); target != "" {
		return target
	}
	return "/"
}
