package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/EZPoster/app/controllers"
)

type HttpRouter struct {
	ctrls *controllers.Controllers
}

func NewHttpRouter(ctrls *controllers.Controllers) *HttpRouter {
	return &HttpRouter{ctrls: ctrls}
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Hosted identity providers
	app.Get("/auth/providers", h.ctrls.Auth.HandleProviders)
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", h.ctrls.Auth.HandleOAuthCallback)

	// Payment provider webhooks (signature-verified in controller)
	app.Post("/webhooks/sellix", h.ctrls.Billing.HandleSellixWebhook)
}
