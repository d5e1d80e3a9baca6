package billing

import (
	"context"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/internal/pkg/entitlements"
	"github.com/ManuelReschke/FoxPass/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
)

const (
	verifySubscriptionLimit = 10
	verifySessionLimit      = 5

	MessageAlreadyPro      = "Already Pro"
	MessageProActivated    = "Pro activated successfully!"
	MessageNoSubscription  = "No active subscription found"
	MessageNoCustomer      = "No Stripe customer found"
	MessageSessionMismatch = "Checkout session does not belong to this account"
)

// Verify re-derives the entitlement directly from the processor, without
// waiting for webhook delivery. With a checkout session id the session is
// checked first; otherwise the stored customer's subscriptions and recent
// checkout sessions are searched.
func (s *Service) Verify(ctx context.Context, profile *models.Profile, sessionID string) (*VerifyResult, error) {
	if profile == nil || profile.ID == 0 {
		return nil, ErrAuthentication
	}
	now := s.now()
	if entitlements.IsActive(profile, now) {
		metrics.VerifyRequestsTotal.WithLabelValues("already_pro").Inc()
		return &VerifyResult{Success: true, IsPro: true, Message: MessageAlreadyPro}, nil
	}
	if err := s.requireGateway(); err != nil {
		return nil, err
	}

	customerID := profile.CustomerID()
	var (
		sub *Subscription
		err error
	)
	if sessionID != "" {
		var session *CheckoutSession
		session, err = s.gateway.GetCheckoutSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session.UserID() != profile.ID {
			metrics.VerifyRequestsTotal.WithLabelValues("session_mismatch").Inc()
			return &VerifyResult{Success: false, Message: MessageSessionMismatch}, nil
		}
		if session.Customer != "" {
			customerID = session.Customer
		}
		if session.Paid() && session.Subscription != "" {
			sub, err = s.entitlingSubscription(ctx, session.Subscription)
			if err != nil {
				return nil, err
			}
		}
	}

	if sub == nil {
		if customerID == "" {
			metrics.VerifyRequestsTotal.WithLabelValues("no_customer").Inc()
			return &VerifyResult{Success: false, Message: MessageNoCustomer}, nil
		}
		sub, err = s.findActiveSubscription(ctx, customerID)
		if err != nil {
			return nil, err
		}
	}
	if sub == nil {
		metrics.VerifyRequestsTotal.WithLabelValues("not_found").Inc()
		return &VerifyResult{Success: false, Message: MessageNoSubscription}, nil
	}

	if sub.Customer != "" {
		customerID = sub.Customer
	}
	eventAt := s.localEventTime(profile)
	m := Grant("verify", expiryFor(sub, eventAt), nil, sub.ID, customerID)
	updated, err := s.Apply(ctx, Selector{UserID: profile.ID}, m, eventAt)
	if err != nil {
		return nil, err
	}
	metrics.VerifyRequestsTotal.WithLabelValues("activated").Inc()
	log.Infof("[Billing] Verification activated Pro for user %d from subscription %s", profile.ID, sub.ID)
	return &VerifyResult{Success: true, IsPro: updated.IsPro, Message: MessageProActivated}, nil
}

func (s *Service) findActiveSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	subs, err := s.gateway.ListSubscriptions(ctx, customerID, verifySubscriptionLimit)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].Entitling() {
			return &subs[i], nil
		}
	}

	sessions, err := s.gateway.ListCheckoutSessions(ctx, customerID, verifySessionLimit)
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		if session.Paid() && session.Subscription != "" {
			return s.entitlingSubscription(ctx, session.Subscription)
		}
	}
	return nil, nil
}

func (s *Service) entitlingSubscription(ctx context.Context, id string) (*Subscription, error) {
	sub, err := s.gateway.GetSubscription(ctx, id)
	if err != nil {
		if IsResourceMissing(err) {
			return nil, nil
		}
		return nil, err
	}
	if !sub.Entitling() {
		return nil, nil
	}
	return sub, nil
}
