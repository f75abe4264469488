package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/EZPoster/internal/pkg/cache"
	"github.com/ManuelReschke/EZPoster/internal/pkg/env"
)

// Redis databases used next to the cache (DB 0).
const (
	SessionDatabase    = 1
	OAuthStateDatabase = 2
)

// Session keys
const (
	KeyUserID = "user_id"
)

var sessionStore *session.Store

// NewRedisStorage opens a fiber storage on the cache server using database db.
func NewRedisStorage(db int) *redis.Storage {
	host := "localhost"
	port := 6379
	username := ""
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient := cache.GetClient(); cacheClient != nil {
		opts := cacheClient.Options()
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		username = opts.Username
		if opts.Password != "" {
			password = opts.Password
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		Database: db,
		Reset:    false,
	})
}

func NewSessionStore() *session.Store {
	sessionStore = session.New(session.Config{
		Storage:        NewRedisStorage(SessionDatabase),
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     env.GetEnvDuration("SESSION_TTL", 7*24*time.Hour),
		KeyLookup:      "cookie:ezposter_session",
	})

	return sessionStore
}

// SetSessionStore replaces the store, used by tests with in-memory storage.
func SetSessionStore(s *session.Store) {
	sessionStore = s
}

func GetSessionStore() *session.Store {
	return sessionStore
}

// Login binds the session to a user id.
func Login(c *fiber.Ctx, userID uint) error {
	if sessionStore == nil {
		return fmt.Errorf("session store not initialized")
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %v", err)
	}
	// new id on privilege change
	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("failed to regenerate session: %v", err)
	}
	sess.Set(KeyUserID, userID)
	return sess.Save()
}

// Logout destroys the session.
func Logout(c *fiber.Ctx) error {
	if sessionStore == nil {
		return fmt.Errorf("session store not initialized")
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %v", err)
	}
	return sess.Destroy()
}

// UserID returns the user bound to the session, 0 if none.
func UserID(c *fiber.Ctx) uint {
	if sessionStore == nil {
		return 0
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return 0
	}
	switch v := sess.Get(KeyUserID).(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}
