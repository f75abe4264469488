package entitlements

import (
	"time"

	"github.com/ManuelReschke/EZPoster/app/models"
)

const (
	// AbsoluteMinPostInterval applies to every tier.
	AbsoluteMinPostInterval = 20 * time.Second

	MinPurgeCadence = time.Minute
	MaxPurgeCadence = 15 * time.Minute

	// MinPurgeOlderThanMinutes is the smallest retention a user may configure.
	MinPurgeOlderThanMinutes = 5
)

// IsPremium reports whether the subscription is valid at now. The expiry
// must be strictly later than now.
func IsPremium(u *models.User, now time.Time) bool {
	return u != nil && u.PremiumValidUntil != nil && u.PremiumValidUntil.After(now)
}

// IsMarketplaceConnected reports whether all three marketplace fields are set.
func IsMarketplaceConnected(u *models.User) bool {
	if u == nil {
		return false
	}
	return models.Deref(u.GameflipAPIKey) != "" &&
		models.Deref(u.GameflipAPISecret) != "" &&
		models.Deref(u.GameflipID) != ""
}

// CanEnableAutoPost is the write-time gate for turning auto-post on.
func CanEnableAutoPost(u *models.User, now time.Time) bool {
	return IsPremium(u, now) && IsMarketplaceConnected(u)
}

// CanAutoPost is the gate checked before every scheduled action.
func CanAutoPost(u *models.User, now time.Time) bool {
	return u != nil && u.AutoPost && CanEnableAutoPost(u, now)
}

// EffectiveTier is the tier that currently applies; an expired subscription counts as NONE.
func EffectiveTier(u *models.User, now time.Time) models.PremiumTier {
	if !IsPremium(u, now) {
		return models.TierNone
	}
	return u.PremiumTier
}

// MaxListings returns how many stored listings a tier may keep
func MaxListings(tier models.PremiumTier) int {
	switch tier {
	case models.TierPremium:
		return 500
	case models.TierBasic:
		return 50
	default:
		return 0
	}
}

// MinPostInterval returns the shortest post interval a tier may configure
func MinPostInterval(tier models.PremiumTier) time.Duration {
	switch tier {
	case models.TierPremium:
		return AbsoluteMinPostInterval
	default:
		return time.Minute
	}
}

// PurgeCadence derives the purge sweep interval from the post interval.
// Users who post faster get swept faster.
func PurgeCadence(postInterval time.Duration) time.Duration {
	cadence := postInterval
	if cadence < MinPurgeCadence {
		cadence = MinPurgeCadence
	}
	if cadence > MaxPurgeCadence {
		cadence = MaxPurgeCadence
	}
	return cadence
}
