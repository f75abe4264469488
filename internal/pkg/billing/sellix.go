package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/EZPoster/internal/pkg/env"
)

var (
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
	ErrUnknownProduct   = errors.New("unknown product")
	ErrMissingUser      = errors.New("webhook has no user id")
)

// SellixConfig holds webhook verification and product mapping settings.
type SellixConfig struct {
	WebhookSecret    string
	BasicProductID   string
	PremiumProductID string
}

func SellixConfigFromEnv() SellixConfig {
	return SellixConfig{
		WebhookSecret:    strings.TrimSpace(env.GetEnv("SELLIX_WEBHOOK_SECRET", "")),
		BasicProductID:   strings.TrimSpace(env.GetEnv("SELLIX_BASIC_PRODUCT_ID", "")),
		PremiumProductID: strings.TrimSpace(env.GetEnv("SELLIX_PREMIUM_PRODUCT_ID", "")),
	}
}

type sellixWebhook struct {
	Event string `json:"event"`
	Data  struct {
		ID               string                     `json:"id"`
		Status           string                     `json:"status"`
		ProductID        string                     `json:"product_id"`
		CustomFields     map[string]json.RawMessage `json:"custom_fields"`
		CurrentPeriodEnd int64                      `json:"current_period_end"`
		CustomerEmail    string                     `json:"customer_email"`
	} `json:"data"`
}

// ParseSellixWebhook decodes a subscription event. The user is taken from
// the "userid" custom field; current_period_end is epoch milliseconds.
func ParseSellixWebhook(payload []byte, cfg SellixConfig) (*SubscriptionUpdate, error) {
	var hook sellixWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("decode sellix webhook: %w", err)
	}
	event := strings.ToLower(strings.TrimSpace(hook.Event))
	if !isSubscriptionEvent(event) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, hook.Event)
	}

	userID, err := parseUserID(hook.Data.CustomFields["userid"])
	if err != nil {
		return nil, err
	}

	tier, ok := TierForProduct(hook.Data.ProductID, cfg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProduct, hook.Data.ProductID)
	}

	return &SubscriptionUpdate{
		EventID:    fmt.Sprintf("%s:%s:%d", event, hook.Data.ID, hook.Data.CurrentPeriodEnd),
		EventType:  event,
		UserID:     userID,
		Tier:       tier,
		ValidUntil: time.UnixMilli(hook.Data.CurrentPeriodEnd).UTC(),
	}, nil
}

// parseUserID accepts the custom field as a JSON string or number.
func parseUserID(raw json.RawMessage) (uint, error) {
	if len(raw) == 0 {
		return 0, ErrMissingUser
	}
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrMissingUser, s)
	}
	return uint(id), nil
}
