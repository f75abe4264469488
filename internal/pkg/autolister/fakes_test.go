package autolister

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/ManuelReschke/EZPoster/internal/pkg/gameflip"
	"gorm.io/gorm"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

// Pending returns the fire times of active timers.
func (c *fakeClock) Pending() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Time
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.at)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

type memUsers struct {
	mu    sync.Mutex
	users map[uint]*models.User
	err   error
	// afterCandidates runs once the candidate list has been copied.
	afterCandidates func()
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{users: make(map[uint]*models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

// FindAutoPostCandidates returns every user so the scheduler's own
// eligibility check is exercised.
func (m *memUsers) FindAutoPostCandidates(now time.Time) ([]models.User, error) {
	m.mu.Lock()
	if m.err != nil {
		m.mu.Unlock()
		return nil, m.err
	}
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	hook := m.afterCandidates
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if hook != nil {
		hook()
	}
	return out, nil
}

func (m *memUsers) IncrementPosted(id uint, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].NPosted += int64(n)
	return nil
}

func (m *memUsers) IncrementPurged(id uint, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].NPurged += int64(n)
	return nil
}

func (m *memUsers) update(id uint, f func(u *models.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f(m.users[id])
}

func (m *memUsers) get(id uint) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}

type memListings struct {
	byUser map[uint][]models.Listing
}

func (m *memListings) CountAutoPost(userID uint) (int64, error) {
	return int64(len(m.byUser[userID])), nil
}

func (m *memListings) GetAutoPostAt(userID uint, offset int) (*models.Listing, error) {
	ls := m.byUser[userID]
	if offset < 0 || offset >= len(ls) {
		return nil, gorm.ErrRecordNotFound
	}
	l := ls[offset]
	return &l, nil
}

type postedListing struct {
	query  gameflip.ListingQuery
	images []string
}

// fakeMarket records calls made by the jobs.
type fakeMarket struct {
	mu         sync.Mutex
	creds      []gameflip.Credentials
	posted     []postedListing
	postErr    error
	searches   []gameflip.SearchParams
	results    []gameflip.Listing
	searchErr  error
	deleted    []string
	failDelete map[string]bool
}

func (f *fakeMarket) factory() MarketplaceFactory {
	return func(creds gameflip.Credentials) Marketplace {
		f.mu.Lock()
		f.creds = append(f.creds, creds)
		f.mu.Unlock()
		return f
	}
}

func (f *fakeMarket) PostListing(ctx context.Context, q gameflip.ListingQuery, images []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.posted = append(f.posted, postedListing{query: q, images: images})
	return "remote-1", nil
}

func (f *fakeMarket) SearchListings(ctx context.Context, params gameflip.SearchParams) ([]gameflip.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, params)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeMarket) DeleteListing(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.failDelete[id] {
		return errors.New("upstream refused")
	}
	return nil
}

func (f *fakeMarket) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posted)
}

// eligibleUser is premium until far in the future, connected and opted in.
func eligibleUser(id uint, postTime int, now time.Time) *models.User {
	until := now.Add(30 * 24 * time.Hour)
	u := &models.User{
		ID:                id,
		ExternalID:        "test:user",
		Role:              models.ROLE_USER,
		PremiumTier:       models.TierPremium,
		PremiumValidUntil: &until,
		AutoPost:          true,
		PostTime:          postTime,
		PurgeOlderThan:    60,
	}
	u.SetGameflipCredentials("key", "JBSWY3DPEHPK3PXP", "us-east-1:owner")
	return u
}

func storedListing(id uint, userID uint, name string) models.Listing {
	return models.Listing{
		ID:                 id,
		UserID:             userID,
		Name:               name,
		Description:        "desc",
		Category:           "DIGITAL_INGAME",
		Platform:           "unknown",
		UPC:                "GFPCFN",
		PriceInCents:       500,
		ShippingWithinDays: 1,
		ExpiresWithinDays:  7,
		Images:             []string{"https://cdn.example/" + name + "-1.png", "https://cdn.example/" + name + "-2.png"},
		AutoPost:           true,
	}
}

// jobFunc adapts a function to the Job interface.
type jobFunc func(ctx context.Context, userID uint) Outcome

func (f jobFunc) Run(ctx context.Context, userID uint) Outcome {
	return f(ctx, userID)
}
