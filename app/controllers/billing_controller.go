package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/FoxPass/internal/pkg/billing"
	"github.com/ManuelReschke/FoxPass/internal/pkg/metrics"
	"github.com/ManuelReschke/FoxPass/internal/pkg/usercontext"
)

const (
	processorTimeout = 20 * time.Second
	webhookTimeout   = 15 * time.Second
)

// BillingController serves checkout, verification, cancellation and the
// processor webhook.
type BillingController struct {
	billing *billing.Service
}

// NewBillingController creates a billing controller on svc.
func NewBillingController(svc *billing.Service) *BillingController {
	return &BillingController{billing: svc}
}

type checkoutRequest struct {
	PromoCode *string `json:"promoCode" validate:"omitempty,max=64"`
}

type verifyRequest struct {
	SessionID string `json:"sessionId" validate:"omitempty,max=255"`
}

// HandleCheckout starts a hosted checkout and answers {url}.
func (bc *BillingController) HandleCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := bindBody(c, &req); err != nil {
		return writeError(c, err)
	}
	in := billing.CheckoutInput{Origin: c.Get(fiber.HeaderOrigin)}
	if req.PromoCode != nil {
		in.PromoCode = *req.PromoCode
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), processorTimeout)
	defer cancel()

	url, err := bc.billing.CreateCheckout(ctx, usercontext.GetProfile(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// HandleVerify re-derives the caller's entitlement from the processor.
func (bc *BillingController) HandleVerify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := bindBody(c, &req); err != nil {
		return writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), processorTimeout)
	defer cancel()

	res, err := bc.billing.Verify(ctx, usercontext.GetProfile(c), strings.TrimSpace(req.SessionID))
	if err != nil {
		return writeError(c, err)
	}
	body := fiber.Map{"success": res.Success, "message": res.Message}
	if res.Success {
		body["is_pro"] = res.IsPro
	}
	return c.JSON(body)
}

// HandleCancel cancels the caller's subscription and revokes Pro.
func (bc *BillingController) HandleCancel(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), processorTimeout)
	defer cancel()

	res, err := bc.billing.Cancel(ctx, usercontext.GetProfile(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":               true,
		"subscription_duration": res.Duration,
		"cancelled_at":          res.CancelledAt.UTC().Format(time.RFC3339),
	})
}

// HandleWebhook receives processor events. It answers 200 for every event
// that was recorded, including stale, unmatched and ignored ones, so the
// processor only retries deliveries that could not be processed.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	start := time.Now()
	rawBody := append([]byte(nil), c.BodyRaw()...)
	if len(rawBody) > billing.WebhookBodyLimit {
		metrics.WebhookRequestsTotal.WithLabelValues("unknown", "too_large").Inc()
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "Payload too large"})
	}
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	ctx, cancel := context.WithTimeout(c.UserContext(), webhookTimeout)
	defer cancel()

	res, err := bc.billing.HandleWebhook(ctx, rawBody, signature)
	eventType := "unknown"
	if res != nil && res.EventType != "" {
		eventType = res.EventType
	}
	defer func() {
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	if err != nil {
		switch {
		case errors.Is(err, billing.ErrConfiguration):
			metrics.WebhookRequestsTotal.WithLabelValues(eventType, "config_error").Inc()
			log.Error("[Webhook] STRIPE_WEBHOOK_SECRET is not configured, rejecting delivery")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgConfiguration})
		case errors.Is(err, billing.ErrSignatureVerification):
			metrics.WebhookRequestsTotal.WithLabelValues(eventType, "invalid_signature").Inc()
			log.Warnf("[Webhook] Rejected delivery: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid webhook signature"})
		default:
			metrics.WebhookRequestsTotal.WithLabelValues(eventType, "failed").Inc()
			log.Errorf("[Webhook] Processing %s failed: %v", eventType, err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Webhook processing failed"})
		}
	}

	status := res.Outcome
	if res.Duplicate {
		status = "duplicate"
	}
	metrics.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	return c.JSON(fiber.Map{"received": true, "duplicate": res.Duplicate})
}
