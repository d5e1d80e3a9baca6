package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/FoxPass/app/controllers"
	"github.com/ManuelReschke/FoxPass/internal/pkg/constants"
	"github.com/ManuelReschke/FoxPass/internal/pkg/env"
	"github.com/ManuelReschke/FoxPass/internal/pkg/middleware"
	"github.com/ManuelReschke/FoxPass/internal/pkg/statistics"
)

const (
	rateLimitDatabase = 1
	rateLimitWindow   = time.Minute
)

// ApiRouter serves /api/v1.
type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, h.rateLimiter())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from FoxPass",
		})
	})

	v1 := api.Group(constants.APIv1Route)
	auth := middleware.BearerAuth(h.deps.Tokens, h.deps.Billing)

	billingController := controllers.NewBillingController(h.deps.Billing)
	v1.Post(constants.BillingWebhookPath, billingController.HandleWebhook)
	v1.Post(constants.BillingCheckoutPath, auth, billingController.HandleCheckout)
	v1.Post(constants.BillingVerifyPath, auth, billingController.HandleVerify)
	v1.Post(constants.BillingCancelPath, auth, billingController.HandleCancel)

	entitlementController := controllers.NewEntitlementController(h.deps.Billing, h.deps.Snapshots)
	v1.Get(constants.EntitlementPath, auth, entitlementController.HandleGetEntitlement)
	v1.Post(constants.PointsRedeemPath, auth, entitlementController.HandleRedeemPoints)

	adminController := controllers.NewAdminBillingController(h.deps.Billing, h.deps.Repos)
	admin := v1.Group(constants.AdminPath, auth, middleware.RequireAdmin)
	admin.Post(constants.AdminUserProPath, adminController.HandleSetPro)
	admin.Post(constants.AdminUserPointsPath, adminController.HandleAdjustPoints)
	admin.Post(constants.AdminPromoSyncPath, adminController.HandleSyncPromoCodes)
	admin.Get(constants.AdminPromoCodesPath, adminController.HandleListPromoCodes)
	admin.Post(constants.AdminPromoCodesPath, adminController.HandleCreatePromoCode)
	admin.Get(constants.AdminMessagesPath, adminController.HandleListAdminMessages)
	admin.Post(constants.AdminMessageReadPath, adminController.HandleMarkAdminMessageRead)

	if h.deps.Repos != nil {
		stats := statistics.New(h.deps.Repos.Profile, h.deps.Repos.AdminMessage, h.deps.Redis)
		dashboard := controllers.NewAdminController(h.deps.Repos, stats)
		admin.Get(constants.AdminStatsPath, dashboard.HandleStats)
		admin.Get(constants.AdminUsersPath, dashboard.HandleListUsers)
	}
}

// rateLimiter limits per client IP. Counters live in Redis when a client is
// configured so that all instances share them. Processor webhooks are
// exempt, deliveries arrive in bursts and are authenticated by signature.
func (h ApiRouter) rateLimiter() fiber.Handler {
	webhookPath := constants.APIRoute + constants.APIv1Route + constants.BillingWebhookPath
	cfg := limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 120),
		Expiration: rateLimitWindow,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == webhookPath
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		},
	}

	if h.deps.Redis != nil {
		opts := h.deps.Redis.Options()
		host, port := opts.Addr, 6379
		if hst, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = hst
			if parsed, e := strconv.Atoi(p); e == nil {
				port = parsed
			}
		}
		cfg.Storage = redisstorage.New(redisstorage.Config{
			Host:     host,
			Port:     port,
			Username: opts.Username,
			Password: opts.Password,
			Database: rateLimitDatabase,
			Reset:    false,
		})
	}
	return limiter.New(cfg)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
