package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/ManuelReschke/EZPoster/internal/pkg/session"
	"github.com/ManuelReschke/EZPoster/internal/pkg/usercontext"
)

// UserLoader is the lookup the middleware needs from the user repository.
type UserLoader interface {
	GetByID(id uint) (*models.User, error)
}

// UserContextMiddleware loads the session user for every request. The user
// row is read fresh so tier and credential changes apply immediately.
func UserContextMiddleware(users UserLoader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Goth keeps its own session store on /auth/*
		if strings.HasPrefix(c.Path(), "/auth/") {
			return c.Next()
		}

		userID := session.UserID(c)
		if userID == 0 {
			return c.Next()
		}

		u, err := users.GetByID(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// account removed, drop the stale session
				_ = session.Logout(c)
				return c.Next()
			}
			log.Errorf("[UserContext] Failed to load user %d: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
		}

		usercontext.Set(c, u)
		return c.Next()
	}
}
