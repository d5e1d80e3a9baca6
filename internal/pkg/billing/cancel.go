package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
)

// Cancel cancels the user's processor subscription and revokes Pro. A
// processor failure other than "no such subscription" aborts before any
// local change, so the call can simply be retried.
func (s *Service) Cancel(ctx context.Context, profile *models.Profile) (*CancelResult, error) {
	if profile == nil || profile.ID == 0 {
		return nil, ErrAuthentication
	}
	subID := profile.SubscriptionID()
	if !profile.IsPro || subID == "" {
		metrics.CancellationsTotal.WithLabelValues("no_subscription").Inc()
		return nil, ErrNoActiveSubscription
	}
	if err := s.requireGateway(); err != nil {
		return nil, err
	}

	if err := s.gateway.CancelSubscription(ctx, subID); err != nil {
		if !IsResourceMissing(err) {
			metrics.CancellationsTotal.WithLabelValues("upstream_error").Inc()
			log.Errorf("[Billing] Cancelling subscription %s for user %d failed: %v", subID, profile.ID, err)
			return nil, err
		}
		log.Warnf("[Billing] Subscription %s already gone at processor, revoking locally", subID)
	}

	cancelledAt := s.localEventTime(profile)
	m := Revoke("cancel", true)
	m.Guard = SubscriptionGuard(subID)
	_, err := s.Apply(ctx, Selector{UserID: profile.ID}, m, cancelledAt)
	switch {
	case err == nil:
	case errors.Is(err, ErrSubscriptionMismatch):
		// The record moved on to another subscription; the cancelled one no
		// longer grants anything.
		log.Warnf("[Billing] Profile %d no longer references %s, leaving entitlement as is", profile.ID, subID)
	default:
		metrics.CancellationsTotal.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("revoke entitlement: %w", err)
	}

	duration := FormatSubscriptionDuration(profile.SubscriptionStartedAt, cancelledAt)
	if err := s.repo.CreateCancellation(ctx, &models.Cancellation{
		UserID:               profile.ID,
		Username:             profile.DisplayName(),
		SubscriptionID:       subID,
		CancelledAt:          cancelledAt,
		SubscriptionDuration: duration,
	}); err != nil {
		log.Errorf("[Billing] Failed to record cancellation for user %d: %v", profile.ID, err)
	}
	msg := fmt.Sprintf("User %s has cancelled their Pro subscription", profile.DisplayName())
	if err := s.repo.CreateAdminMessage(ctx, msg); err != nil {
		log.Errorf("[Billing] Failed to create admin message for user %d: %v", profile.ID, err)
	}

	metrics.CancellationsTotal.WithLabelValues("cancelled").Inc()
	log.Infof("[Billing] User %d cancelled subscription %s after %s", profile.ID, subID, duration)
	return &CancelResult{SubscriptionID: subID, Duration: duration, CancelledAt: cancelledAt}, nil
}
