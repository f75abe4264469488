package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/EZPoster/app/controllers"
	"github.com/ManuelReschke/EZPoster/internal/pkg/middleware"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter loads the session user on every request, then registers the
// public routes and the JSON API.
func InstallRouter(app *fiber.App, ctrls *controllers.Controllers, users middleware.UserLoader) {
	app.Use(middleware.UserContextMiddleware(users))
	setup(app, NewHttpRouter(ctrls), NewApiRouter(ctrls))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
