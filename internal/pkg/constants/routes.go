package constants

// Route prefixes
const (
	APIRoute     = "/api"
	APIv1Route   = "/v1"
	DocsRoute    = "/docs/api/"
	DocsVersion  = "v1"
	MetricsRoute = "/metrics"
	HealthRoute  = "/healthz"
)

// API v1 paths, relative to /api/v1
const (
	BillingCheckoutPath = "/billing/checkout"
	BillingVerifyPath   = "/billing/verify"
	BillingCancelPath   = "/billing/cancel"
	BillingWebhookPath  = "/billing/webhook"
	EntitlementPath     = "/entitlement"
	PointsRedeemPath    = "/points/redeem"

	AdminPath            = "/admin"
	AdminStatsPath       = "/stats"
	AdminUsersPath       = "/users"
	AdminUserProPath     = "/users/:id/pro"
	AdminUserPointsPath  = "/users/:id/points"
	AdminPromoCodesPath  = "/promo-codes"
	AdminPromoSyncPath   = "/promo-codes/sync"
	AdminMessagesPath    = "/messages"
	AdminMessageReadPath = "/messages/:id/read"
)
