package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/EZPoster/app/controllers"
	"github.com/ManuelReschke/EZPoster/app/repository"
	"github.com/ManuelReschke/EZPoster/internal/pkg/autolister"
	"github.com/ManuelReschke/EZPoster/internal/pkg/billing"
	"github.com/ManuelReschke/EZPoster/internal/pkg/cache"
	"github.com/ManuelReschke/EZPoster/internal/pkg/database"
	"github.com/ManuelReschke/EZPoster/internal/pkg/env"
	"github.com/ManuelReschke/EZPoster/internal/pkg/gameflip"
	"github.com/ManuelReschke/EZPoster/internal/pkg/imagestore"
	"github.com/ManuelReschke/EZPoster/internal/pkg/oauth"
	"github.com/ManuelReschke/EZPoster/internal/pkg/router"
	"github.com/ManuelReschke/EZPoster/internal/pkg/session"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, scheduler := NewApplication(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	}()

	select {
	case err := <-errCh:
		scheduler.Stop()
		log.Fatal(err)
	case <-ctx.Done():
	}

	log.Info("[EZPoster] Shutting down")
	scheduler.Stop()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Errorf("[EZPoster] Shutdown failed: %v", err)
	}
}

func NewApplication(ctx context.Context) (*fiber.App, *autolister.Scheduler) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/ezposter to project root
		"../../../", // Fallback
	}
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			basePath = path
			break
		}
	}
	if basePath == "" {
		panic("Could not find project root directory")
	}

	var images controllers.ImageStore
	if cfg, err := imagestore.LoadConfig(); err != nil {
		log.Warnf("[ImageStore] Disabled: %v", err)
	} else if store, err := imagestore.New(ctx, cfg); err != nil {
		log.Errorf("[ImageStore] Disabled: %v", err)
	} else {
		images = store
	}

	gf := gameflip.NewFactoryFromEnv()
	autoCfg := autolister.ConfigFromEnv()
	scheduler := autolister.New(repos.User, repos.Listing, autolister.FromGameflip(gf), autoCfg)
	if autoCfg.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			log.Errorf("[AutoLister] Failed to start: %v", err)
		}
	} else {
		log.Info("[AutoLister] Disabled by AUTOLISTER_ENABLED")
	}

	deps := &controllers.Dependencies{
		Users:       repos.User,
		Listings:    repos.Listing,
		PremiumKeys: repos.PremiumKey,
		Premium:     billing.NewServiceFromDB(database.GetDB()),
		Sellix:      billing.SellixConfigFromEnv(),
		Gameflip:    gf,
		Images:      images,
		Scheduler:   scheduler,
		Cache:       controllers.RedisCache{},
	}

	session.NewSessionStore()
	providers := oauth.Setup()
	ctrls := controllers.New(deps, providers)

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
		AppName:   "EZ Poster",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, ctrls, repos.User)

	return app, scheduler
}
