package controllers

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FoxPass/internal/pkg/billing"
)

const (
	msgAuthRequired   = "Authentication required"
	msgConfiguration  = "Payment system is not configured, please contact support"
	msgInternal       = "Internal server error"
	msgNoSubscription = "No active subscription found"
	msgInvalidBody    = "Invalid request body"
)

var (
	validate       = validator.New()
	errInvalidBody = errors.New("invalid request body")
)

// writeError maps service errors onto the API error taxonomy and answers
// with {error: message}.
func writeError(c *fiber.Ctx, err error) error {
	status, message := classifyError(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}

func classifyError(err error) (int, string) {
	var upstream *billing.UpstreamError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, billing.ErrAuthentication):
		return fiber.StatusUnauthorized, msgAuthRequired
	case errors.Is(err, billing.ErrConfiguration):
		return fiber.StatusInternalServerError, msgConfiguration
	case errors.As(err, &upstream):
		msg := upstream.Message
		if msg == "" {
			msg = "Payment processor request failed"
		}
		return fiber.StatusBadGateway, msg
	case errors.Is(err, billing.ErrSignatureVerification):
		return fiber.StatusBadRequest, "Invalid webhook signature"
	case errors.Is(err, billing.ErrInvalidPromoCode):
		return fiber.StatusBadRequest, "Invalid or expired promo code"
	case errors.Is(err, billing.ErrInsufficientPoints):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, billing.ErrNoActiveSubscription):
		return fiber.StatusNotFound, msgNoSubscription
	case errors.Is(err, billing.ErrProfileNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound, "Not found"
	case errors.Is(err, billing.ErrVersionConflict), errors.Is(err, billing.ErrSubscriptionMismatch):
		return fiber.StatusConflict, "The record was changed concurrently, please retry"
	case errors.Is(err, errInvalidBody):
		return fiber.StatusBadRequest, msgInvalidBody
	case errors.As(err, &validationErrs):
		return fiber.StatusBadRequest, validationErrs.Error()
	default:
		return fiber.StatusInternalServerError, msgInternal
	}
}

// bindBody decodes an optional JSON body into out and validates it.
func bindBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(out); err != nil {
			return errInvalidBody
		}
	}
	return validate.Struct(out)
}

func parseIDParam(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
