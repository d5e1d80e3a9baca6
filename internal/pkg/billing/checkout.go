package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// CreateCheckout starts a hosted checkout for the weekly Pro subscription and
// returns the redirect URL. The user id travels as client reference and in
// the session and subscription metadata.
func (s *Service) CreateCheckout(ctx context.Context, profile *models.Profile, in CheckoutInput) (string, error) {
	if profile == nil || profile.ID == 0 {
		return "", ErrAuthentication
	}
	if err := s.requireGateway(); err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues("config_error").Inc()
		return "", err
	}

	origin := strings.TrimRight(strings.TrimSpace(in.Origin), "/")
	if origin == "" {
		origin = s.cfg.PublicDomain
	}
	if origin == "" {
		metrics.CheckoutSessionsTotal.WithLabelValues("config_error").Inc()
		return "", ErrConfiguration
	}

	req := CheckoutRequest{
		UserID:            profile.ID,
		CustomerID:        profile.CustomerID(),
		Email:             profile.Email,
		SuccessURL:        origin + "?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         origin + "?canceled=true",
		Currency:          s.cfg.Currency,
		UnitAmount:        s.cfg.WeeklyAmount,
		ProductName:       s.cfg.ProductName,
		ProductDesc:       s.cfg.ProductDescription,
		RecurringInterval: "week",
	}

	if code := models.NormalizePromoCode(in.PromoCode); code != "" {
		promotionCodeID, err := s.resolvePromoCode(ctx, code)
		if err != nil {
			metrics.CheckoutSessionsTotal.WithLabelValues("invalid_promo").Inc()
			return "", err
		}
		req.PromoCode = code
		req.PromotionCodeID = promotionCodeID
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues("upstream_error").Inc()
		log.Errorf("[Billing] Checkout session for user %d failed: %v", profile.ID, err)
		return "", err
	}
	metrics.CheckoutSessionsTotal.WithLabelValues("created").Inc()
	log.Infof("[Billing] Checkout session %s created for user %d", session.ID, profile.ID)
	return session.URL, nil
}

// resolvePromoCode validates code against the local allow-list and returns
// the processor's promotion code id.
func (s *Service) resolvePromoCode(ctx context.Context, code string) (string, error) {
	pc, err := s.repo.FindPromoCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidPromoCode
		}
		return "", err
	}
	if !pc.Redeemable() {
		return "", ErrInvalidPromoCode
	}
	if pc.StripePromotionCodeID != "" {
		return pc.StripePromotionCodeID, nil
	}

	id, err := s.gateway.FindPromotionCode(ctx, code)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrInvalidPromoCode
	}
	return id, nil
}
