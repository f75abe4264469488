package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/ManuelReschke/EZPoster/internal/pkg/entitlements"
	"gorm.io/gorm"
)

var (
	ErrInvalidKey      = errors.New("invalid premium key")
	ErrKeyDowngrade    = errors.New("premium key tier is lower than the active subscription")
	ErrInvalidTier     = errors.New("invalid premium tier")
	ErrInvalidDuration = errors.New("duration must be between 1 and 365 days")
	ErrUnknownUser     = errors.New("unknown user")
)

const (
	MinKeyDurationDays     = 1
	MaxKeyDurationDays     = 365
	DefaultKeyDurationDays = 30
)

// Service applies subscription changes and premium key redemptions.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ApplySubscription writes the tier and expiry carried by a webhook. It is
// a direct field update with no merging against the current state.
func (s *Service) ApplySubscription(ctx context.Context, upd SubscriptionUpdate) error {
	_ = ctx
	if upd.UserID == 0 {
		return ErrMissingUser
	}
	if err := s.repo.UpdatePremium(upd.UserID, upd.Tier, upd.ValidUntil); err != nil {
		if isNotFound(err) {
			return ErrUnknownUser
		}
		return err
	}
	return nil
}

// HandleSellixWebhook parses, deduplicates and applies one webhook delivery.
// The returned bool is false when the event had already been applied.
func (s *Service) HandleSellixWebhook(ctx context.Context, payload []byte, cfg SellixConfig) (*SubscriptionUpdate, bool, error) {
	upd, err := ParseSellixWebhook(payload, cfg)
	if err != nil {
		return nil, false, err
	}

	userID := upd.UserID
	created, event, err := s.repo.CreateWebhookEventIfNotExists(&models.BillingWebhookEvent{
		Provider:        ProviderSellix,
		ProviderEventID: upd.EventID,
		EventType:       upd.EventType,
		UserID:          &userID,
		PayloadJSON:     string(payload),
	})
	if err != nil {
		return nil, false, fmt.Errorf("record webhook event: %w", err)
	}
	if !created && event.IsProcessed() {
		return upd, false, nil
	}

	applyErr := s.ApplySubscription(ctx, *upd)
	errMsg := ""
	if applyErr != nil {
		errMsg = applyErr.Error()
	}
	if err := s.repo.MarkWebhookProcessed(event.ID, errMsg); err != nil {
		return nil, false, fmt.Errorf("mark webhook processed: %w", err)
	}
	if applyErr != nil {
		return nil, false, applyErr
	}
	return upd, true, nil
}

// CreatePremiumKey issues a new unused key.
func (s *Service) CreatePremiumKey(ctx context.Context, tier models.PremiumTier, durationDays int) (*models.PremiumKey, error) {
	_ = ctx
	if !isGrantableTier(tier) {
		return nil, ErrInvalidTier
	}
	if durationDays == 0 {
		durationDays = DefaultKeyDurationDays
	}
	if durationDays < MinKeyDurationDays || durationDays > MaxKeyDurationDays {
		return nil, ErrInvalidDuration
	}
	key := models.NewPremiumKey(tier, durationDays)
	if err := s.repo.CreatePremiumKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// RedeemPremiumKey applies a key to the user and marks it used. A key can
// only ever be redeemed once, even under concurrent requests.
func (s *Service) RedeemPremiumKey(ctx context.Context, userID uint, code string) (*models.User, error) {
	_ = ctx
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidKey
	}
	key, err := s.repo.GetPremiumKey(code)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidKey
		}
		return nil, err
	}
	if key.IsUsed() {
		return nil, ErrInvalidKey
	}

	u, err := s.repo.GetUser(userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}

	validUntil, err := RedemptionExpiry(u, key, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.RedeemPremiumKey(key.ID, u.ID, key.Tier, validUntil); err != nil {
		return nil, err
	}

	u.PremiumTier = key.Tier
	u.PremiumValidUntil = &validUntil
	return u, nil
}

// RedemptionExpiry computes the new expiry when u redeems key at now:
// the same tier extends the running subscription, an upgrade grants half
// the key's duration from now and a lapsed user gets the full duration.
// Redeeming a lower tier while a higher one is active is rejected.
func RedemptionExpiry(u *models.User, key *models.PremiumKey, now time.Time) (time.Time, error) {
	if !isGrantableTier(key.Tier) {
		return time.Time{}, ErrInvalidTier
	}
	if !entitlements.IsPremium(u, now) {
		return now.Add(key.Length()), nil
	}
	switch {
	case u.PremiumTier == key.Tier:
		return u.PremiumValidUntil.Add(key.Length()), nil
	case u.PremiumTier.Rank() < key.Tier.Rank():
		return now.Add(key.Length() / 2), nil
	default:
		return time.Time{}, ErrKeyDowngrade
	}
}
