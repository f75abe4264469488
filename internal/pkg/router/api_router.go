package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/EZPoster/app/controllers"
	"github.com/ManuelReschke/EZPoster/internal/pkg/middleware"
)

type ApiRouter struct {
	ctrls *controllers.Controllers
}

func NewApiRouter(ctrls *controllers.Controllers) *ApiRouter {
	return &ApiRouter{ctrls: ctrls}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	v1.Post("/logout", middleware.RequireAuth, h.ctrls.Auth.HandleLogout)

	me := v1.Group("/me", middleware.RequireAuth)
	me.Get("/", h.ctrls.User.HandleGetAccount)
	me.Put("/settings", h.ctrls.User.HandleUpdateSettings)
	me.Put("/gameflip", h.ctrls.User.HandleConnectGameflip)
	me.Get("/gameflip/profile", h.ctrls.User.HandleGameflipProfile)
	me.Post("/premium/redeem", h.ctrls.Billing.HandleRedeemPremiumKey)

	listings := v1.Group("/listings", middleware.RequireAuth)
	listings.Get("/", h.ctrls.Listing.HandleList)
	listings.Post("/", h.ctrls.Listing.HandleCreate)
	listings.Post("/import", h.ctrls.Listing.HandleImport)
	listings.Get("/:id", h.ctrls.Listing.HandleGet)
	listings.Put("/:id", h.ctrls.Listing.HandleUpdate)
	listings.Delete("/:id", h.ctrls.Listing.HandleDelete)
	listings.Put("/:id/autopost", h.ctrls.Listing.HandleSetAutoPost)

	v1.Post("/images", middleware.RequireAuth, h.ctrls.Listing.HandleUploadImage)

	admin := v1.Group("/admin", middleware.RequireAdmin)
	admin.Get("/users", h.ctrls.Admin.HandleUsers)
	admin.Get("/stats", h.ctrls.Admin.HandleStats)
	admin.Get("/queues", h.ctrls.Admin.HandleQueues)
	admin.Get("/premium-keys", h.ctrls.Admin.HandleListPremiumKeys)
	admin.Post("/premium-keys", h.ctrls.Admin.HandleCreatePremiumKeys)
}
