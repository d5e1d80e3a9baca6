package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FoxPass/app/repository"
	"github.com/ManuelReschke/FoxPass/internal/pkg/billing"
	"github.com/ManuelReschke/FoxPass/internal/pkg/cache"
	"github.com/ManuelReschke/FoxPass/internal/pkg/session"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the services behind the routes. DB and Redis may be nil;
// the health check then reports them as unavailable and the rate limiter
// keeps its counters in memory.
type Dependencies struct {
	Billing   *billing.Service
	Snapshots *cache.EntitlementCache
	Tokens    *session.Manager
	Repos     *repository.Repositories
	DB        *gorm.DB
	Redis     *redis.Client

	// DocsFile is the OpenAPI document served under /docs/api/v1. Empty
	// disables the swagger UI.
	DocsFile string
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// The http router goes first so /healthz and /metrics are not rate limited.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
