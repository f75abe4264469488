package autolister

import (
	"errors"
	"testing"
	"time"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostJob(users *memUsers, listings *memListings, market *fakeMarket, clock *fakeClock) *PostJob {
	return &PostJob{
		Users:       users,
		Listings:    listings,
		Marketplace: market.factory(),
		Clock:       clock,
	}
}

func TestPostJobPostsChosenListing(t *testing.T) {
	clock := newFakeClock()
	users := newMemUsers(eligibleUser(1, 60, clock.Now()))
	listings := &memListings{byUser: map[uint][]models.Listing{1: {
		storedListing(10, 1, "first"),
		storedListing(11, 1, "second"),
		storedListing(12, 1, "third"),
	}}}
	market := &fakeMarket{}
	job := newPostJob(users, listings, market, clock)

	var drawn []int
	job.RandIntN = func(n int) int {
		drawn = append(drawn, n)
		return 1
	}

	out := job.Run(t.Context(), 1)
	assert.Equal(t, RunAgainIn(time.Minute), out)
	assert.Equal(t, []int{3}, drawn)

	require.Len(t, market.posted, 1)
	posted := market.posted[0]
	assert.Equal(t, "second", posted.query.Name)
	assert.Equal(t, "us-east-1:owner", posted.query.Owner)
	assert.Equal(t, int64(500), posted.query.Price)
	assert.Equal(t, []string{"https://cdn.example/second-1.png", "https://cdn.example/second-2.png"}, posted.images)

	require.Len(t, market.creds, 1)
	assert.Equal(t, "key", market.creds[0].APIKey)
	assert.Equal(t, int64(1), users.get(1).NPosted)
}

func TestPostJobDefaultRandomStaysInRange(t *testing.T) {
	clock := newFakeClock()
	users := newMemUsers(eligibleUser(1, 60, clock.Now()))
	listings := &memListings{byUser: map[uint][]models.Listing{1: {
		storedListing(10, 1, "a"),
		storedListing(11, 1, "b"),
	}}}
	market := &fakeMarket{}
	job := newPostJob(users, listings, market, clock)

	for i := 0; i < 20; i++ {
		out := job.Run(t.Context(), 1)
		require.False(t, out.Deschedule)
	}
	assert.Len(t, market.posted, 20)
	assert.Equal(t, int64(20), users.get(1).NPosted)
}

func TestPostJobIneligibleUserIsDescheduled(t *testing.T) {
	clock := newFakeClock()
	u := eligibleUser(1, 60, clock.Now())
	u.AutoPost = false
	users := newMemUsers(u)
	market := &fakeMarket{}
	job := newPostJob(users, &memListings{}, market, clock)

	assert.Equal(t, Deschedule(), job.Run(t.Context(), 1))
	assert.Empty(t, market.creds)
}

func TestPostJobMissingUserIsDescheduled(t *testing.T) {
	clock := newFakeClock()
	job := newPostJob(newMemUsers(), &memListings{}, &fakeMarket{}, clock)

	assert.Equal(t, Deschedule(), job.Run(t.Context(), 42))
}

func TestPostJobWithoutListingsWaitsOneInterval(t *testing.T) {
	clock := newFakeClock()
	users := newMemUsers(eligibleUser(1, 120, clock.Now()))
	market := &fakeMarket{}
	job := newPostJob(users, &memListings{}, market, clock)

	assert.Equal(t, RunAgainIn(2*time.Minute), job.Run(t.Context(), 1))
	assert.Empty(t, market.posted)
	assert.Equal(t, int64(0), users.get(1).NPosted)
}

func TestPostJobMarketplaceFailureDeschedules(t *testing.T) {
	clock := newFakeClock()
	users := newMemUsers(eligibleUser(1, 60, clock.Now()))
	listings := &memListings{byUser: map[uint][]models.Listing{1: {storedListing(10, 1, "a")}}}
	market := &fakeMarket{postErr: errors.New("rate limited")}
	job := newPostJob(users, listings, market, clock)

	assert.Equal(t, Deschedule(), job.Run(t.Context(), 1))
	assert.Equal(t, int64(0), users.get(1).NPosted)
}

func TestPostJobListingGoneAfterCountRetries(t *testing.T) {
	clock := newFakeClock()
	users := newMemUsers(eligibleUser(1, 60, clock.Now()))
	listings := &memListings{byUser: map[uint][]models.Listing{1: {
		storedListing(10, 1, "only"),
	}}}
	market := &fakeMarket{}
	job := newPostJob(users, listings, market, clock)
	job.RandIntN = func(n int) int {
		// the listing is deleted between the count and the lookup
		delete(listings.byUser, 1)
		return 0
	}

	out := job.Run(t.Context(), 1)
	assert.Equal(t, RunAgainIn(time.Minute), out)
	assert.Empty(t, market.posted)
	assert.Equal(t, int64(0), users.get(1).NPosted)
}
