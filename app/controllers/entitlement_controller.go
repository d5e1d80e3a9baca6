package controllers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/internal/pkg/billing"
	"github.com/ManuelReschke/FoxPass/internal/pkg/cache"
	"github.com/ManuelReschke/FoxPass/internal/pkg/entitlements"
	"github.com/ManuelReschke/FoxPass/internal/pkg/usercontext"
)

const defaultLongPollWait = 25 * time.Second

// EntitlementController serves the entitlement read, its long-poll variant
// and points redemption.
type EntitlementController struct {
	billing   *billing.Service
	snapshots *cache.EntitlementCache
}

// NewEntitlementController creates an entitlement controller.
func NewEntitlementController(svc *billing.Service, snapshots *cache.EntitlementCache) *EntitlementController {
	return &EntitlementController{billing: svc, snapshots: snapshots}
}

// HandleGetEntitlement returns the caller's entitlement snapshot. With
// since_version it blocks until a newer version exists or wait seconds pass.
func (ec *EntitlementController) HandleGetEntitlement(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return writeError(c, billing.ErrAuthentication)
	}
	load := func(ctx context.Context) (*models.Profile, error) {
		return ec.billing.FindProfile(ctx, userID)
	}

	var (
		snap *entitlements.Snapshot
		err  error
	)
	if raw := c.Query("since_version"); raw != "" {
		since, perr := strconv.ParseUint(raw, 10, 64)
		if perr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "since_version must be a non-negative integer"})
		}
		wait := time.Duration(c.QueryInt("wait", int(defaultLongPollWait/time.Second))) * time.Second
		if wait < 0 {
			wait = 0
		}
		snap, err = ec.snapshots.WaitForVersion(c.UserContext(), userID, since, wait, load)
	} else {
		snap, err = ec.snapshots.Snapshot(c.UserContext(), userID, load)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(snap)
}

// HandleRedeemPoints exchanges points for Pro time.
func (ec *EntitlementController) HandleRedeemPoints(c *fiber.Ctx) error {
	updated, err := ec.billing.RedeemPoints(c.UserContext(), usercontext.GetProfile(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":                 true,
		"points":                  updated.Points,
		"subscription_expires_at": formatTimePtr(updated.SubscriptionExpiresAt),
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
