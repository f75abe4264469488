package autolister

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/ManuelReschke/EZPoster/internal/pkg/entitlements"
	"github.com/ManuelReschke/EZPoster/internal/pkg/gameflip"
	"github.com/gofiber/fiber/v2/log"
)

const (
	DefaultPurgeBatch  = 5
	DefaultPurgePacing = 250 * time.Millisecond
)

// PurgeJob deletes a user's oldest on-sale listings past their retention.
type PurgeJob struct {
	Users       UserStore
	Marketplace MarketplaceFactory
	Clock       Clock
	// BatchSize is the search page size.
	BatchSize int
	// Pacing is the wait after every delete attempt.
	Pacing time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
}

func (j *PurgeJob) clock() Clock {
	if j.Clock != nil {
		return j.Clock
	}
	return RealClock()
}

func (j *PurgeJob) batchSize() int {
	if j.BatchSize > 0 {
		return j.BatchSize
	}
	return DefaultPurgeBatch
}

func (j *PurgeJob) sleep(ctx context.Context, d time.Duration) error {
	if j.Sleep != nil {
		return j.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

// Run purges for userID and always comes back at the purge cadence, unless
// the user is no longer eligible.
func (j *PurgeJob) Run(ctx context.Context, userID uint) Outcome {
	u, err := j.Users.GetByID(userID)
	if err != nil {
		log.Errorf("[AutoLister] Purge: failed to load user %d: %v", userID, err)
		return Outcome{}
	}
	if !entitlements.CanAutoPost(u, j.clock().Now()) {
		log.Infof("[AutoLister] Purge: user %d is no longer eligible", userID)
		return Deschedule()
	}

	next := RunAgainIn(entitlements.PurgeCadence(u.PostInterval()))
	purged, err := j.Purge(ctx, u)
	if err != nil {
		log.Errorf("[AutoLister] Purge: user %d: %v", userID, err)
		return next
	}
	if purged > 0 {
		log.Infof("[AutoLister] Purge: user %d removed %d listings", userID, purged)
	}
	return next
}

// Purge deletes matching listings one at a time and returns how many were
// removed. A failed delete is logged and skipped.
func (j *PurgeJob) Purge(ctx context.Context, u *models.User) (int, error) {
	creds := gameflip.CredentialsFromUser(u)
	client := j.Marketplace(creds)
	cutoff := j.clock().Now().Add(-u.PurgeRetention())

	listings, err := client.SearchListings(ctx, gameflip.SearchParams{
		Owner:      creds.OwnerID,
		Status:     gameflip.StatusOnSale,
		Sort:       gameflip.SortCreatedAsc,
		Visibility: gameflip.VisibilityPublic,
		Limit:      j.batchSize(),
		Created:    gameflip.CreatedBefore(cutoff),
	})
	if err != nil {
		if !errors.Is(err, gameflip.ErrTooManyPages) {
			return 0, err
		}
		log.Warnf("[AutoLister] Purge: user %d search truncated at %d listings", u.ID, len(listings))
	}

	purged := 0
	for _, l := range listings {
		if err := client.DeleteListing(ctx, l.ID); err != nil {
			log.Warnf("[AutoLister] Purge: user %d failed to delete %s: %v", u.ID, l.ID, err)
		} else {
			purged++
		}
		if err := j.sleep(ctx, j.Pacing); err != nil {
			break
		}
	}

	if err := j.Users.IncrementPurged(u.ID, purged); err != nil {
		log.Errorf("[AutoLister] Purge: failed to count purges for user %d: %v", u.ID, err)
	}
	return purged, nil
}
