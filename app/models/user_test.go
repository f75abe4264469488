package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePremiumTier(t *testing.T) {
	tests := []struct {
		in   string
		want PremiumTier
	}{
		{in: "basic", want: TierBasic},
		{in: " PREMIUM ", want: TierPremium},
		{in: "none", want: TierNone},
		{in: "gold", want: TierNone},
		{in: "", want: TierNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePremiumTier(tt.in), "input %q", tt.in)
	}
	assert.Less(t, TierNone.Rank(), TierBasic.Rank())
	assert.Less(t, TierBasic.Rank(), TierPremium.Rank())
}

func TestNewUserDefaults(t *testing.T) {
	u, err := NewUser("google:123", "someone@example.com")
	require.NoError(t, err)

	assert.Equal(t, ROLE_USER, u.Role)
	assert.Equal(t, TierNone, u.PremiumTier)
	assert.Equal(t, 300*time.Second, u.PostInterval())
	assert.Equal(t, 60*time.Minute, u.PurgeRetention())

	_, err = NewUser("", "")
	assert.Error(t, err)

	_, err = NewUser("google:1", "not-an-email")
	assert.Error(t, err)
}

func TestGameflipCredentialsAreAllOrNothing(t *testing.T) {
	u := &User{AutoPost: true}
	u.SetGameflipCredentials("key", "secret", "us-east-1:abc")
	assert.Equal(t, "key", Deref(u.GameflipAPIKey))
	assert.Equal(t, "secret", Deref(u.GameflipAPISecret))
	assert.Equal(t, "us-east-1:abc", Deref(u.GameflipID))

	u.ClearGameflipCredentials()
	assert.Nil(t, u.GameflipAPIKey)
	assert.Nil(t, u.GameflipAPISecret)
	assert.Nil(t, u.GameflipID)
	assert.False(t, u.AutoPost)
}
