package billing

import (
	"time"

	"github.com/ManuelReschke/EZPoster/app/models"
)

const ProviderSellix = "sellix"

// Sellix subscription events handled by the webhook.
const (
	EventSubscriptionCreated   = "subscription:created"
	EventSubscriptionCancelled = "subscription:cancelled"
)

// SubscriptionUpdate is the provider-neutral change applied to a user row.
type SubscriptionUpdate struct {
	EventID    string
	EventType  string
	UserID     uint
	Tier       models.PremiumTier
	ValidUntil time.Time
}
