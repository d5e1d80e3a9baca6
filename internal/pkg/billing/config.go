package billing

import (
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/FoxPass/internal/pkg/env"
)

const (
	// ProPeriod is the length of one paid billing cycle.
	ProPeriod = 7 * 24 * time.Hour
	// AdminGrantPeriod is applied when an administrator grants Pro manually.
	AdminGrantPeriod = 365 * 24 * time.Hour
	// PointsRedemptionPeriod is granted per points redemption.
	PointsRedemptionPeriod = 30 * 24 * time.Hour
	// PointsRedemptionCost is the number of points a redemption consumes.
	PointsRedemptionCost = 200

	defaultCurrency     = "usd"
	defaultWeeklyAmount = 1299
	defaultProductName  = "Pro Subscription"
	defaultProductDesc  = "Access to all locked content"
)

// Config holds the payment processor settings.
type Config struct {
	SecretKey          string
	WebhookSecret      string
	Currency           string
	WeeklyAmount       int64
	ProductName        string
	ProductDescription string
	PublicDomain       string
}

// ConfigFromEnv reads the billing configuration from the environment.
func ConfigFromEnv() Config {
	amount, err := strconv.ParseInt(strings.TrimSpace(env.GetEnv("STRIPE_WEEKLY_AMOUNT", "")), 10, 64)
	if err != nil || amount <= 0 {
		amount = defaultWeeklyAmount
	}
	return Config{
		SecretKey:          strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		WebhookSecret:      strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		Currency:           strings.ToLower(strings.TrimSpace(env.GetEnv("STRIPE_CURRENCY", defaultCurrency))),
		WeeklyAmount:       amount,
		ProductName:        strings.TrimSpace(env.GetEnv("STRIPE_PRODUCT_NAME", defaultProductName)),
		ProductDescription: strings.TrimSpace(env.GetEnv("STRIPE_PRODUCT_DESCRIPTION", defaultProductDesc)),
		PublicDomain:       strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/"),
	}
}

func (c Config) withDefaults() Config {
	if c.Currency == "" {
		c.Currency = defaultCurrency
	}
	if c.WeeklyAmount <= 0 {
		c.WeeklyAmount = defaultWeeklyAmount
	}
	if c.ProductName == "" {
		c.ProductName = defaultProductName
	}
	if c.ProductDescription == "" {
		c.ProductDescription = defaultProductDesc
	}
	return c
}
