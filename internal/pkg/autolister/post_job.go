package autolister

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/ManuelReschke/EZPoster/internal/pkg/entitlements"
	"github.com/ManuelReschke/EZPoster/internal/pkg/gameflip"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// PostJob publishes one randomly chosen auto-post listing per run.
type PostJob struct {
	Users       UserStore
	Listings    ListingStore
	Marketplace MarketplaceFactory
	Clock       Clock
	// RandIntN returns a uniform value in [0, n).
	RandIntN func(n int) int
}

func (j *PostJob) randIntN(n int) int {
	if j.RandIntN != nil {
		return j.RandIntN(n)
	}
	return rand.IntN(n)
}

func (j *PostJob) clock() Clock {
	if j.Clock != nil {
		return j.Clock
	}
	return RealClock()
}

// Run posts a listing for userID. Any failure deschedules the user; the
// next sync sweep re-enrolls them.
func (j *PostJob) Run(ctx context.Context, userID uint) Outcome {
	u, err := j.Users.GetByID(userID)
	if err != nil {
		log.Errorf("[AutoLister] Post: failed to load user %d: %v", userID, err)
		return Deschedule()
	}
	if !entitlements.CanAutoPost(u, j.clock().Now()) {
		log.Infof("[AutoLister] Post: user %d is no longer eligible", userID)
		return Deschedule()
	}

	count, err := j.Listings.CountAutoPost(userID)
	if err != nil {
		log.Errorf("[AutoLister] Post: failed to count listings for user %d: %v", userID, err)
		return Deschedule()
	}
	if count == 0 {
		log.Infof("[AutoLister] Post: user %d has no auto-post listings", userID)
		return RunAgainIn(u.PostInterval())
	}

	listing, err := j.Listings.GetAutoPostAt(userID, j.randIntN(int(count)))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// listing removed or unflagged since the count
		log.Infof("[AutoLister] Post: user %d auto-post listings changed, retrying next interval", userID)
		return RunAgainIn(u.PostInterval())
	}
	if err != nil {
		log.Errorf("[AutoLister] Post: failed to pick listing for user %d: %v", userID, err)
		return Deschedule()
	}

	creds := gameflip.CredentialsFromUser(u)
	query := gameflip.BuildListingQuery(*listing, creds)
	remoteID, err := j.Marketplace(creds).PostListing(ctx, query, listing.Images)
	if err != nil {
		log.Errorf("[AutoLister] Post: user %d listing %d failed: %v", userID, listing.ID, err)
		return Deschedule()
	}
	log.Infof("[AutoLister] Post: user %d posted listing %d as %s", userID, listing.ID, remoteID)

	if err := j.Users.IncrementPosted(userID, 1); err != nil {
		log.Errorf("[AutoLister] Post: failed to count post for user %d: %v", userID, err)
	}

	interval := u.PostInterval()
	if fresh, err := j.Users.GetByID(userID); err == nil {
		interval = fresh.PostInterval()
	}
	return RunAgainIn(interval)
}
