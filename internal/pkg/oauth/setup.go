package oauth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/google"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/EZPoster/internal/pkg/env"
	appsession "github.com/ManuelReschke/EZPoster/internal/pkg/session"
)

// Setup registers the configured identity providers and the OAuth state store.
// Providers without a client key are skipped.
func Setup() []string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}

	var providers []goth.Provider
	if key := env.GetEnv("GOOGLE_KEY", ""); key != "" {
		providers = append(providers, google.New(
			key,
			env.GetEnv("GOOGLE_SECRET", ""),
			base+"/auth/google/callback",
			"email", "profile",
		))
	}
	if key := env.GetEnv("DISCORD_KEY", ""); key != "" {
		providers = append(providers, discord.New(
			key,
			env.GetEnv("DISCORD_SECRET", ""),
			base+"/auth/discord/callback",
			discord.ScopeIdentify, discord.ScopeEmail,
		))
	}
	goth.UseProviders(providers...)

	gothfiber.SessionStore = session.New(session.Config{
		Storage:        appsession.NewRedisStorage(appsession.OAuthStateDatabase),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     1 * time.Hour,
	})

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	return names
}

// ExternalID is the stable account identifier for a provider identity.
func ExternalID(provider, providerUserID string) string {
	return provider + ":" + providerUserID
}
