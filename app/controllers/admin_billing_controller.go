package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/app/repository"
	"github.com/ManuelReschke/FoxPass/internal/pkg/billing"
	"github.com/ManuelReschke/FoxPass/internal/pkg/usercontext"
)

const promoSyncTimeout = 2 * time.Minute

// AdminBillingController holds the admin entitlement and promo code handlers
type AdminBillingController struct {
	billing *billing.Service
	repos   *repository.Repositories
}

// NewAdminBillingController creates a new admin billing controller
func NewAdminBillingController(svc *billing.Service, repos *repository.Repositories) *AdminBillingController {
	return &AdminBillingController{billing: svc, repos: repos}
}

type setProRequest struct {
	Grant *bool `json:"grant" validate:"required"`
}

type adjustPointsRequest struct {
	Delta int `json:"delta" validate:"required,ne=0"`
}

type createPromoCodeRequest struct {
	Code            string  `json:"code" validate:"required,min=3,max=64,alphanum"`
	DiscountPercent float64 `json:"discount_percent" validate:"gt=0,lte=100"`
	MaxUses         int     `json:"max_uses" validate:"gte=0"`
}

// HandleSetPro grants or revokes Pro for the user in :id
func (ac *AdminBillingController) HandleSetPro(c *fiber.Ctx) error {
	targetID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}
	var req setProRequest
	if err := bindBody(c, &req); err != nil {
		return writeError(c, err)
	}

	updated, err := ac.billing.SetPro(c.UserContext(), usercontext.GetUserID(c), targetID, *req.Grant)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(profileEntitlement(updated))
}

// HandleAdjustPoints changes the point balance of the user in :id
func (ac *AdminBillingController) HandleAdjustPoints(c *fiber.Ctx) error {
	targetID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}
	var req adjustPointsRequest
	if err := bindBody(c, &req); err != nil {
		return writeError(c, err)
	}

	updated, err := ac.billing.AdjustPoints(c.UserContext(), usercontext.GetUserID(c), targetID, req.Delta)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(profileEntitlement(updated))
}

// HandleSyncPromoCodes pushes the local promo codes to the processor
func (ac *AdminBillingController) HandleSyncPromoCodes(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), promoSyncTimeout)
	defer cancel()

	results, err := ac.billing.SyncPromoCodes(ctx, usercontext.GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"results": results})
}

// HandleListPromoCodes lists all local promo codes
func (ac *AdminBillingController) HandleListPromoCodes(c *fiber.Ctx) error {
	codes, err := ac.repos.PromoCode.GetAll()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"promo_codes": codes})
}

// HandleCreatePromoCode adds a code to the local allow-list
func (ac *AdminBillingController) HandleCreatePromoCode(c *fiber.Ctx) error {
	var req createPromoCodeRequest
	if err := bindBody(c, &req); err != nil {
		return writeError(c, err)
	}

	code := models.NormalizePromoCode(req.Code)
	if _, err := ac.repos.PromoCode.GetByCode(code); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Promo code already exists"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return writeError(c, err)
	}

	pc := &models.PromoCode{
		Code:            code,
		DiscountPercent: req.DiscountPercent,
		MaxUses:         req.MaxUses,
		IsActive:        true,
	}
	if err := ac.repos.PromoCode.Create(pc); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pc)
}

// HandleListAdminMessages returns unread admin inbox messages
func (ac *AdminBillingController) HandleListAdminMessages(c *fiber.Ctx) error {
	messages, err := ac.repos.AdminMessage.GetUnread(c.QueryInt("limit", 50))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// HandleMarkAdminMessageRead flags the message in :id as read
func (ac *AdminBillingController) HandleMarkAdminMessageRead(c *fiber.Ctx) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message id"})
	}
	if err := ac.repos.AdminMessage.MarkAsRead(id); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func profileEntitlement(p *models.Profile) fiber.Map {
	return fiber.Map{
		"id":                      p.ID,
		"is_pro":                  p.IsPro,
		"subscription_expires_at": formatTimePtr(p.SubscriptionExpiresAt),
		"subscription_started_at": formatTimePtr(p.SubscriptionStartedAt),
		"points":                  p.Points,
		"version":                 p.EntitlementVersion,
	}
}
