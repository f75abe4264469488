package controllers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/EZPoster/app/models"
)

func TestCreatePremiumKeys(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/admin/premium-keys", 0, map[string]interface{}{"tier": "premium", "duration": 30, "count": 3})
	require.Equal(t, http.StatusCreated, resp.status)
	assert.Len(t, resp.body["keys"], 3)
	assert.Equal(t, 3, e.premium.created)
}

func TestCreatePremiumKeysValidation(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/admin/premium-keys", 0, map[string]interface{}{"tier": "gold"})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = e.do(t, http.MethodPost, "/admin/premium-keys", 0, map[string]interface{}{"tier": "BASIC", "count": 101})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Zero(t, e.premium.created)
}

func TestListPremiumKeys(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.keys.Create(models.NewPremiumKey(models.TierBasic, 30)))

	resp := e.do(t, http.MethodGet, "/admin/premium-keys", 0, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, resp.body["keys"], 1)
}

func TestAdminQueues(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/admin/queues", 0, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, true, resp.body["running"])
	entries := resp.body["entries"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "post", entries[0].(map[string]interface{})["kind"])
}

func TestAdminStatsAndUsers(t *testing.T) {
	e := newTestEnv(t, freeUser(1), freeUser(2))

	resp := e.do(t, http.MethodGet, "/admin/stats", 0, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.EqualValues(t, 2, resp.body["total_users"])

	// served from cache until it expires
	require.NoError(t, e.users.Create(freeUser(3)))
	resp = e.do(t, http.MethodGet, "/admin/stats", 0, nil)
	assert.EqualValues(t, 2, resp.body["total_users"])

	resp = e.do(t, http.MethodGet, "/admin/users", 0, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.EqualValues(t, 3, resp.body["total"])
}

func TestAuthProviders(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/auth/providers", 0, nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, []interface{}{"google"}, resp.body["providers"])
}
