package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EZPoster/internal/pkg/billing"
	"github.com/ManuelReschke/EZPoster/internal/pkg/usercontext"
)

const sellixSignatureHeader = "X-Sellix-Unescaped-Signature"

// BillingController handles premium key redemption and payment webhooks.
type BillingController struct {
	deps  *Dependencies
	users *UserController
}

func NewBillingController(deps *Dependencies) *BillingController {
	return &BillingController{deps: deps, users: NewUserController(deps)}
}

type redeemRequest struct {
	Key string `json:"key"`
}

// HandleRedeemPremiumKey applies a premium key to the session user.
func (bc *BillingController) HandleRedeemPremiumKey(c *fiber.Ctx) error {
	u := usercontext.GetUser(c)
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	updated, err := bc.deps.Premium.RedeemPremiumKey(c.Context(), u.ID, req.Key)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidKey):
			return jsonError(c, fiber.StatusBadRequest, "invalid_key", "The premium key is invalid or was already used")
		case errors.Is(err, billing.ErrKeyDowngrade):
			return jsonError(c, fiber.StatusConflict, "key_downgrade", "This key grants a lower tier than your active plan")
		case errors.Is(err, billing.ErrUnknownUser):
			return notFound(c, "User not found")
		}
		log.Errorf("[Billing] Redeem for user %d failed: %v", u.ID, err)
		return internalError(c, "Failed to redeem premium key")
	}

	log.Infof("[Billing] User %d redeemed a %s key, valid until %v", u.ID, updated.PremiumTier, updated.PremiumValidUntil)
	resyncUser(c.Context(), bc.deps.Scheduler, u.ID)
	return bc.users.respondAccount(c, updated)
}

// HandleSellixWebhook verifies and applies a Sellix subscription event.
func (bc *BillingController) HandleSellixWebhook(c *fiber.Ctx) error {
	if bc.deps.Sellix.WebhookSecret == "" {
		log.Warn("[Billing] SELLIX_WEBHOOK_SECRET not set; rejecting webhook")
		return jsonError(c, fiber.StatusServiceUnavailable, "not_configured", "Webhook secret not configured")
	}

	payload := c.Body()
	if !billing.VerifySellixSignature(payload, c.Get(sellixSignatureHeader), bc.deps.Sellix.WebhookSecret) {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_signature", "Signature mismatch")
	}

	upd, applied, err := bc.deps.Premium.HandleSellixWebhook(c.Context(), payload, bc.deps.Sellix)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrUnsupportedEvent), errors.Is(err, billing.ErrUnknownProduct):
			// acknowledged so Sellix stops retrying
			log.Infof("[Billing] Ignoring Sellix webhook: %v", err)
			return c.JSON(fiber.Map{"status": "ignored"})
		case errors.Is(err, billing.ErrMissingUser), errors.Is(err, billing.ErrUnknownUser):
			log.Warnf("[Billing] Sellix webhook without a known user: %v", err)
			return jsonError(c, fiber.StatusUnprocessableEntity, "unknown_user", err.Error())
		}
		log.Errorf("[Billing] Sellix webhook failed: %v", err)
		return internalError(c, "Failed to process webhook")
	}

	if applied {
		log.Infof("[Billing] %s for user %d: %s until %s", upd.EventType, upd.UserID, upd.Tier, upd.ValidUntil)
		resyncUser(c.Context(), bc.deps.Scheduler, upd.UserID)
	}
	return c.JSON(fiber.Map{"status": "ok", "applied": applied})
}
