package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/EZPoster/app/models"
)

// UserContext represents the complete user context for a request
type UserContext struct {
	UserID     uint               `json:"user_id"`
	IsLoggedIn bool               `json:"is_logged_in"`
	IsAdmin    bool               `json:"is_admin"`
	Tier       models.PremiumTier `json:"tier"`
}

// Set stores the loaded user for the rest of the request.
func Set(c *fiber.Ctx, u *models.User) {
	c.Locals(KeyUser, u)
	c.Locals(KeyUserContext, UserContext{
		UserID:     u.ID,
		IsLoggedIn: true,
		IsAdmin:    u.IsAdmin(),
		Tier:       u.PremiumTier,
	})
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

// GetUser returns the user loaded for this request, nil for anonymous requests.
func GetUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(KeyUser).(*models.User)
	return u
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}
