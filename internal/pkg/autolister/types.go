package autolister

import (
	"context"
	"time"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/ManuelReschke/EZPoster/internal/pkg/gameflip"
)

// JobKind identifies one of the two recurring jobs of a user.
type JobKind string

const (
	JobPost  JobKind = "post"
	JobPurge JobKind = "purge"
)

// Outcome tells the scheduler what to do after a run. A zero Next keeps
// the current interval.
type Outcome struct {
	Next       time.Duration
	Deschedule bool
}

// RunAgainIn re-arms the job after d.
func RunAgainIn(d time.Duration) Outcome {
	return Outcome{Next: d}
}

// Deschedule drops the job until the next sync re-enrolls the user.
func Deschedule() Outcome {
	return Outcome{Deschedule: true}
}

// Job is one kind of recurring per-user work. Jobs never touch timers.
type Job interface {
	Run(ctx context.Context, userID uint) Outcome
}

// UserStore is the part of the user repository the scheduler and jobs need.
type UserStore interface {
	GetByID(id uint) (*models.User, error)
	FindAutoPostCandidates(now time.Time) ([]models.User, error)
	IncrementPosted(id uint, n int) error
	IncrementPurged(id uint, n int) error
}

// ListingStore is the part of the listing repository the post job needs.
type ListingStore interface {
	CountAutoPost(userID uint) (int64, error)
	GetAutoPostAt(userID uint, offset int) (*models.Listing, error)
}

// Marketplace is the subset of the marketplace client used by the jobs.
type Marketplace interface {
	PostListing(ctx context.Context, q gameflip.ListingQuery, images []string) (string, error)
	SearchListings(ctx context.Context, params gameflip.SearchParams) ([]gameflip.Listing, error)
	DeleteListing(ctx context.Context, id string) error
}

// MarketplaceFactory returns a client signing for the given account.
type MarketplaceFactory func(creds gameflip.Credentials) Marketplace

// FromGameflip adapts a gameflip client factory.
func FromGameflip(f gameflip.Factory) MarketplaceFactory {
	return func(creds gameflip.Credentials) Marketplace {
		return f(creds)
	}
}
