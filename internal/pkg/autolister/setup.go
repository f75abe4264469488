package autolister

import (
	"time"

	"github.com/ManuelReschke/EZPoster/internal/pkg/env"
)

// Config holds the tunables read from the environment.
type Config struct {
	Enabled      bool
	SyncInterval time.Duration
	PurgeBatch   int
	PurgePacing  time.Duration
}

// ConfigFromEnv reads AUTOLISTER_* settings.
func ConfigFromEnv() Config {
	return Config{
		Enabled:      env.GetEnvBool("AUTOLISTER_ENABLED", true),
		SyncInterval: env.GetEnvDuration("AUTOLISTER_SYNC_INTERVAL", DefaultSyncInterval),
		PurgeBatch:   env.GetEnvInt("AUTOLISTER_PURGE_BATCH", DefaultPurgeBatch),
		PurgePacing:  env.GetEnvDuration("AUTOLISTER_PURGE_PACING", DefaultPurgePacing),
	}
}

// New wires the post and purge jobs into a scheduler.
func New(users UserStore, listings ListingStore, market MarketplaceFactory, cfg Config, opts ...Option) *Scheduler {
	s := NewScheduler(users, nil, nil, append([]Option{WithSyncInterval(cfg.SyncInterval)}, opts...)...)
	s.jobs[JobPost] = &PostJob{
		Users:       users,
		Listings:    listings,
		Marketplace: market,
		Clock:       s.clock,
	}
	s.jobs[JobPurge] = &PurgeJob{
		Users:       users,
		Marketplace: market,
		Clock:       s.clock,
		BatchSize:   cfg.PurgeBatch,
		Pacing:      cfg.PurgePacing,
	}
	return s
}
