package billing

import (
	"strings"

	"github.com/ManuelReschke/EZPoster/app/models"
)

// TierForProduct maps a Sellix product id to the tier it grants.
func TierForProduct(productID string, cfg SellixConfig) (models.PremiumTier, bool) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return models.TierNone, false
	}
	switch id {
	case cfg.PremiumProductID:
		return models.TierPremium, true
	case cfg.BasicProductID:
		return models.TierBasic, true
	default:
		return models.TierNone, false
	}
}

func isSubscriptionEvent(event string) bool {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case EventSubscriptionCreated, EventSubscriptionCancelled:
		return true
	default:
		return false
	}
}

// isGrantableTier reports whether a premium key may carry the tier.
func isGrantableTier(t models.PremiumTier) bool {
	return t == models.TierBasic || t == models.TierPremium
}
