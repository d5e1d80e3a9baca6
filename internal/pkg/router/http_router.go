package router

import (
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/FoxPass/app/controllers"
	"github.com/ManuelReschke/FoxPass/internal/pkg/constants"
	"github.com/ManuelReschke/FoxPass/internal/pkg/env"
)

// HttpRouter serves the operational endpoints: health, metrics and docs.
type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	health := controllers.NewHealthController(h.deps.DB, h.deps.Redis)
	app.Get(constants.HealthRoute, health.HandleHealthz)

	h.registerMetrics(app)

	if h.deps.DocsFile != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: constants.DocsRoute,
			FilePath: h.deps.DocsFile,
			Path:     constants.DocsVersion,
			Title:    "FoxPass API",
		}))
	}
}

func (h HttpRouter) registerMetrics(app *fiber.App) {
	password := env.GetEnv("METRICS_PASSWORD", "")
	if password == "" {
		log.Warn("[API] METRICS_PASSWORD is not set, /metrics is disabled")
		return
	}
	app.Get(constants.MetricsRoute, basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "metrics"): password,
		},
	}), adaptor.HTTPHandler(promhttp.Handler()))
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
