package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/ManuelReschke/FoxPass/app/repository"
	"github.com/ManuelReschke/FoxPass/internal/pkg/billing"
	"github.com/ManuelReschke/FoxPass/internal/pkg/cache"
	"github.com/ManuelReschke/FoxPass/internal/pkg/database"
	"github.com/ManuelReschke/FoxPass/internal/pkg/env"
	"github.com/ManuelReschke/FoxPass/internal/pkg/router"
	"github.com/ManuelReschke/FoxPass/internal/pkg/session"
)

func main() {
	app, sweeper := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down")
		sweeper.Stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("Shutdown failed: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *billing.Sweeper) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	if db == nil {
		log.Fatal("Database is not available")
	}
	repository.InitializeFactory(db)

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/foxpass to project root
		"../../../", // Fallback
	}
	docsFile := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			docsFile = path + "public/docs/v1/openapi.yml"
			break
		}
	}
	if docsFile == "" {
		log.Println("OpenAPI document not found, /docs/api/v1 is disabled")
	}

	// A missing processor key is reported per request, the webhook and
	// entitlement reads keep working without it.
	cfg := billing.ConfigFromEnv()
	var gateway billing.Gateway
	if gw, err := billing.NewStripeGateway(cfg.SecretKey); err != nil {
		if !errors.Is(err, billing.ErrConfiguration) {
			log.Fatalf("Stripe setup failed: %v", err)
		}
		log.Println("Warning: STRIPE_SECRET_KEY is not set, checkout, verify and cancel are disabled")
	} else {
		gateway = gw
	}
	if cfg.WebhookSecret == "" {
		log.Println("Warning: STRIPE_WEBHOOK_SECRET is not set, webhook deliveries will be rejected")
	}

	rdb := cache.GetClient()
	snapshots := cache.NewEntitlementCache(rdb)
	service := billing.NewServiceFromDB(db, gateway, cfg, billing.WithNotifier(snapshots))

	sweeper := billing.NewSweeper(service, env.GetEnv("EXPIRY_SWEEP_SCHEDULE", billing.DefaultSweepSchedule))
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Invalid EXPIRY_SWEEP_SCHEDULE: %v", err)
	}

	tokens, err := session.NewManagerFromEnv()
	if err != nil {
		log.Fatalf("Session setup failed: %v", err)
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "FoxPass",
		BodyLimit: 4 * 1024 * 1024,
	})

	// recovery, request ids and logging
	app.Use(
		recover.New(),
		requestid.New(requestid.Config{Generator: uuid.NewString}),
		logger.New(logger.Config{
			Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid} | ${error}\n",
		}),
	)

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Billing:   service,
		Snapshots: snapshots,
		Tokens:    tokens,
		Repos:     repository.GetGlobalRepositories(),
		DB:        db,
		Redis:     rdb,
		DocsFile:  docsFile,
	})

	return app, sweeper
}
