package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/EZPoster/app/models"
	"github.com/ManuelReschke/EZPoster/app/repository"
	"github.com/ManuelReschke/EZPoster/internal/pkg/autolister"
	"github.com/ManuelReschke/EZPoster/internal/pkg/billing"
	"github.com/ManuelReschke/EZPoster/internal/pkg/cache"
	"github.com/ManuelReschke/EZPoster/internal/pkg/gameflip"
	"github.com/ManuelReschke/EZPoster/internal/pkg/usercontext"
)

const testSecret = "JBSWY3DPEHPK3PXP"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type memUsers struct {
	mu    sync.Mutex
	users map[uint]*models.User
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{users: make(map[uint]*models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uint(len(m.users) + 1)
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) GetByID(id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByExternalID(externalID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) FindOrCreateByExternalID(externalID, email string) (*models.User, bool, error) {
	if u, err := m.GetByExternalID(externalID); err == nil {
		return u, false, nil
	}
	u, err := models.NewUser(externalID, email)
	if err != nil {
		return nil, false, err
	}
	if err := m.Create(u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (m *memUsers) Update(u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func strPtr(v interface{}) *string {
	if v == nil {
		return nil
	}
	s := v.(string)
	return &s
}

func (m *memUsers) UpdateFields(id uint, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "post_time":
			u.PostTime = v.(int)
		case "purge_older_than":
			u.PurgeOlderThan = v.(int)
		case "auto_post":
			u.AutoPost = v.(bool)
		case "gameflip_api_key":
			u.GameflipAPIKey = strPtr(v)
		case "gameflip_api_secret":
			u.GameflipAPISecret = strPtr(v)
		case "gameflip_id":
			u.GameflipID = strPtr(v)
		}
	}
	return nil
}

func (m *memUsers) FindAutoPostCandidates(now time.Time) ([]models.User, error) { return nil, nil }
func (m *memUsers) IncrementPosted(id uint, n int) error { return nil }
func (m *memUsers) IncrementPurged(id uint, n int) error { return nil }

func (m *memUsers) List(offset, limit int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) Count() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *memUsers) GetStats(now time.Time) (*repository.UserStats, error) {
	n, _ := m.Count()
	return &repository.UserStats{TotalUsers: n}, nil
}

type memListings struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.Listing
}

func newMemListings() *memListings {
	return &memListings{rows: make(map[uint]*models.Listing)}
}

func (m *memListings) Create(l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l.ID = m.nextID
	cp := *l
	m.rows[l.ID] = &cp
	return nil
}

func (m *memListings) GetByIDForUser(id, userID uint) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok || l.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memListings) Update(l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.rows[l.ID] = &cp
	return nil
}

func (m *memListings) Delete(id, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok || l.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memListings) ListByUser(userID uint, offset, limit int) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Listing
	for _, l := range m.rows {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memListings) CountByUser(userID uint) (int64, error) {
	rows, _ := m.ListByUser(userID, 0, 0)
	return int64(len(rows)), nil
}

func (m *memListings) CountAutoPost(userID uint) (int64, error) {
	rows, _ := m.ListByUser(userID, 0, 0)
	var n int64
	for _, l := range rows {
		if l.AutoPost {
			n++
		}
	}
	return n, nil
}

func (m *memListings) GetAutoPostAt(userID uint, offset int) (*models.Listing, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *memListings) SetAutoPost(id, userID uint, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok || l.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	l.AutoPost = enabled
	return nil
}

type memKeys struct {
	keys []models.PremiumKey
}

func (m *memKeys) Create(key *models.PremiumKey) error {
	m.keys = append(m.keys, *key)
	return nil
}

func (m *memKeys) GetByKey(key string) (*models.PremiumKey, error) {
	for i := range m.keys {
		if m.keys[i].Key == key {
			return &m.keys[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memKeys) MarkUsed(id, userID uint) error { return nil }

func (m *memKeys) List(offset, limit int) ([]models.PremiumKey, error) {
	return m.keys, nil
}

// fakePremium records calls and returns canned results.
type fakePremium struct {
	redeemUser *models.User
	redeemErr  error
	webhookUpd *billing.SubscriptionUpdate
	applied    bool
	webhookErr error
	created    int
	payloads   [][]byte
}

func (f *fakePremium) CreatePremiumKey(ctx context.Context, tier models.PremiumTier, durationDays int) (*models.PremiumKey, error) {
	if tier == models.TierNone {
		return nil, billing.ErrInvalidTier
	}
	f.created++
	return models.NewPremiumKey(tier, durationDays), nil
}

func (f *fakePremium) RedeemPremiumKey(ctx context.Context, userID uint, code string) (*models.User, error) {
	return f.redeemUser, f.redeemErr
}

func (f *fakePremium) HandleSellixWebhook(ctx context.Context, payload []byte, cfg billing.SellixConfig) (*billing.SubscriptionUpdate, bool, error) {
	f.payloads = append(f.payloads, payload)
	return f.webhookUpd, f.applied, f.webhookErr
}

type fakeScheduler struct {
	mu     sync.Mutex
	synced []uint
}

func (f *fakeScheduler) SyncUser(ctx context.Context, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, userID)
	return nil
}

func (f *fakeScheduler) Snapshot() []autolister.QueueEntry {
	return []autolister.QueueEntry{{UserID: 1, Kind: autolister.JobPost, Interval: time.Minute}}
}

func (f *fakeScheduler) IsRunning() bool { return true }

func (f *fakeScheduler) syncedUsers() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.synced...)
}

type fakeImages struct {
	uploaded [][]byte
	released []string
	err      error
}

func (f *fakeImages) Upload(ctx context.Context, userID uint, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploaded = append(f.uploaded, data)
	return "https://cdn.example.com/listings/" + strconv.Itoa(int(userID)) + "/img.png", nil
}

func (f *fakeImages) DeleteAll(ctx context.Context, urls []string) error {
	f.released = append(f.released, urls...)
	return nil
}

type memCache struct {
	values map[string][]byte
}

func newMemCache() *memCache { return &memCache{values: make(map[string][]byte)} }

func (m *memCache) GetJSON(key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCache) SetJSON(key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memCache) Delete(key string) error {
	delete(m.values, key)
	return nil
}

type testEnv struct {
	deps      *Dependencies
	users     *memUsers
	listings  *memListings
	keys      *memKeys
	premium   *fakePremium
	scheduler *fakeScheduler
	images    *fakeImages
	cache     *memCache
	app       *fiber.App
}

// newTestEnv wires every controller onto a fiber app. Requests pick their
// user with the X-Test-User header.
func newTestEnv(t *testing.T, users ...*models.User) *testEnv {
	t.Helper()
	e := &testEnv{
		users:     newMemUsers(users...),
		listings:  newMemListings(),
		keys:      &memKeys{},
		premium:   &fakePremium{},
		scheduler: &fakeScheduler{},
		images:    &fakeImages{},
		cache:     newMemCache(),
	}
	e.deps = &Dependencies{
		Users:       e.users,
		Listings:    e.listings,
		PremiumKeys: e.keys,
		Premium:     e.premium,
		Sellix:      billing.SellixConfig{WebhookSecret: "whsec"},
		Gameflip: func(creds gameflip.Credentials) *gameflip.Client {
			return gameflip.NewClient(creds, gameflip.WithBaseURL("http://127.0.0.1:1"))
		},
		Images:    e.images,
		Scheduler: e.scheduler,
		Cache:     e.cache,
		Now:       func() time.Time { return testNow },
	}
	ctrls := New(e.deps, []string{"google"})

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if raw := c.Get("X-Test-User"); raw != "" {
			id, _ := strconv.Atoi(raw)
			u, err := e.users.GetByID(uint(id))
			if err != nil {
				return c.SendStatus(fiber.StatusUnauthorized)
			}
			usercontext.Set(c, u)
		}
		return c.Next()
	})
	app.Get("/me", ctrls.User.HandleGetAccount)
	app.Put("/me/settings", ctrls.User.HandleUpdateSettings)
	app.Put("/me/gameflip", ctrls.User.HandleConnectGameflip)
	app.Get("/me/gameflip/profile", ctrls.User.HandleGameflipProfile)
	app.Post("/me/premium/redeem", ctrls.Billing.HandleRedeemPremiumKey)
	app.Get("/listings", ctrls.Listing.HandleList)
	app.Post("/listings", ctrls.Listing.HandleCreate)
	app.Post("/listings/import", ctrls.Listing.HandleImport)
	app.Get("/listings/:id", ctrls.Listing.HandleGet)
	app.Put("/listings/:id", ctrls.Listing.HandleUpdate)
	app.Delete("/listings/:id", ctrls.Listing.HandleDelete)
	app.Put("/listings/:id/autopost", ctrls.Listing.HandleSetAutoPost)
	app.Post("/images", ctrls.Listing.HandleUploadImage)
	app.Post("/admin/premium-keys", ctrls.Admin.HandleCreatePremiumKeys)
	app.Get("/admin/premium-keys", ctrls.Admin.HandleListPremiumKeys)
	app.Get("/admin/queues", ctrls.Admin.HandleQueues)
	app.Get("/admin/stats", ctrls.Admin.HandleStats)
	app.Get("/admin/users", ctrls.Admin.HandleUsers)
	app.Get("/auth/providers", ctrls.Auth.HandleProviders)
	app.Post("/webhooks/sellix", ctrls.Billing.HandleSellixWebhook)
	e.app = app
	return e
}

// useGameflip points the marketplace factory at a test server.
func (e *testEnv) useGameflip(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	e.deps.Gameflip = func(creds gameflip.Credentials) *gameflip.Client {
		return gameflip.NewClient(creds, gameflip.WithBaseURL(srv.URL))
	}
}

type response struct {
	status int
	body   map[string]interface{}
}

func (e *testEnv) do(t *testing.T, method, path string, userID uint, body interface{}) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.Itoa(int(userID)))
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := response{status: resp.StatusCode}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out.body)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func premiumUser(id uint, tier models.PremiumTier) *models.User {
	return &models.User{
		ID:                id,
		ExternalID:        "google:" + strconv.Itoa(int(id)),
		Role:              models.ROLE_USER,
		PremiumTier:       tier,
		PremiumValidUntil: ptr(testNow.Add(30 * 24 * time.Hour)),
		PostTime:          models.DefaultPostTimeSeconds,
		PurgeOlderThan:    models.DefaultPurgeOlderThanMinutes,
	}
}

func connectedUser(id uint, tier models.PremiumTier) *models.User {
	u := premiumUser(id, tier)
	u.SetGameflipCredentials("key", testSecret, "us-east-1:owner")
	return u
}

func freeUser(id uint) *models.User {
	return &models.User{
		ID:             id,
		ExternalID:     "google:" + strconv.Itoa(int(id)),
		Role:           models.ROLE_USER,
		PremiumTier:    models.TierNone,
		PostTime:       models.DefaultPostTimeSeconds,
		PurgeOlderThan: models.DefaultPurgeOlderThanMinutes,
	}
}

func writeEnvelope(w http.ResponseWriter, status int, v map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
