package controllers

import (
	"fmt"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FoxPass/internal/pkg/billing"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	now := time.Date(2024, 5, 1, 12, 34, 56, 0, time.Local)
	formatted := formatTimePtr(&now)
	assert.IsType(t, "", formatted)

	expected := now.UTC().Format(time.RFC3339)
	assert.Equal(t, expected, formatted)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{billing.ErrAuthentication, fiber.StatusUnauthorized, msgAuthRequired},
		{billing.ErrConfiguration, fiber.StatusInternalServerError, msgConfiguration},
		{&billing.UpstreamError{Op: "create checkout session", Message: "Your card was declined."}, fiber.StatusBadGateway, "Your card was declined."},
		{fmt.Errorf("wrapped: %w", billing.ErrNoActiveSubscription), fiber.StatusNotFound, msgNoSubscription},
		{billing.ErrInvalidPromoCode, fiber.StatusBadRequest, "Invalid or expired promo code"},
		{gorm.ErrRecordNotFound, fiber.StatusNotFound, "Not found"},
		{billing.ErrVersionConflict, fiber.StatusConflict, "The record was changed concurrently, please retry"},
		{fmt.Errorf("revoke entitlement: %w", billing.ErrSubscriptionMismatch), fiber.StatusConflict, "The record was changed concurrently, please retry"},
		{errInvalidBody, fiber.StatusBadRequest, msgInvalidBody},
		{fmt.Errorf("boom"), fiber.StatusInternalServerError, msgInternal},
	}
	for _, tt := range tests {
		status, message := classifyError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.message, message, tt.err.Error())
	}
}
