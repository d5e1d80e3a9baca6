package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v82"
)

// WebhookBodyLimit caps accepted webhook payloads.
const WebhookBodyLimit = 1024 * 1024 // 1 MiB

// Handled event types.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
)

// HandleWebhook verifies, records and applies one processor event. Events
// already handled are acknowledged without being applied again; events that
// failed before are processed again.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	event, err := VerifyWebhookSignature(payload, signatureHeader, s.cfg.WebhookSecret)
	if err != nil {
		return nil, err
	}

	eventAt := s.now()
	if event.Created > 0 {
		eventAt = time.Unix(event.Created, 0)
	}
	res := &WebhookResult{EventID: event.ID, EventType: string(event.Type)}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        provider,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(payload),
		SignatureValid:  true,
		EventCreatedAt:  &eventAt,
	})
	if err != nil {
		return res, fmt.Errorf("record webhook event: %w", err)
	}
	if !created && stored.Handled() {
		res.Duplicate = true
		res.Outcome = stored.Outcome
		log.Infof("[Webhook] Duplicate delivery of %s (%s) acknowledged", event.ID, event.Type)
		return res, nil
	}

	outcome, procErr := s.dispatch(ctx, &event, eventAt)
	res.Outcome = outcome
	if err := s.MarkWebhookProcessed(ctx, stored.ID, outcome, procErr); err != nil {
		log.Errorf("[Webhook] Failed to mark event %s processed: %v", event.ID, err)
	}
	if procErr != nil {
		return res, procErr
	}
	return res, nil
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event, eventAt time.Time) (string, error) {
	if event.Data == nil {
		return models.WebhookOutcomeFailed, fmt.Errorf("%w: event has no data", ErrInvalidEvent)
	}
	raw := event.Data.Raw
	reason := string(event.Type)

	switch reason {
	case EventCheckoutSessionCompleted:
		var session CheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return models.WebhookOutcomeFailed, fmt.Errorf("%w: decode checkout.session: %v", ErrInvalidEvent, err)
		}
		return s.onCheckoutCompleted(ctx, reason, &session, eventAt)

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return models.WebhookOutcomeFailed, fmt.Errorf("%w: decode subscription: %v", ErrInvalidEvent, err)
		}
		switch reason {
		case EventSubscriptionCreated:
			return s.onSubscriptionCreated(ctx, reason, &sub, eventAt)
		case EventSubscriptionUpdated:
			return s.onSubscriptionUpdated(ctx, reason, &sub, eventAt)
		default:
			return s.onSubscriptionDeleted(ctx, reason, &sub, eventAt)
		}

	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		var inv Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return models.WebhookOutcomeFailed, fmt.Errorf("%w: decode invoice: %v", ErrInvalidEvent, err)
		}
		if reason == EventInvoicePaymentSucceeded {
			return s.onInvoicePaid(ctx, reason, &inv, eventAt)
		}
		return s.onInvoiceFailed(ctx, reason, &inv, eventAt)

	default:
		log.Infof("[Webhook] Ignoring unhandled event type %s (%s)", event.Type, event.ID)
		return models.WebhookOutcomeIgnored, nil
	}
}

func (s *Service) onCheckoutCompleted(ctx context.Context, reason string, session *CheckoutSession, eventAt time.Time) (string, error) {
	userID := session.UserID()
	if userID == 0 {
		log.Warnf("[Webhook] Checkout session %s carries no user id", session.ID)
		return models.WebhookOutcomeUnmatched, nil
	}
	if !session.Paid() {
		log.Infof("[Webhook] Checkout session %s not paid (mode=%s, payment_status=%s)", session.ID, session.Mode, session.PaymentStatus)
		return models.WebhookOutcomeIgnored, nil
	}

	m := Grant(reason, eventAt.Add(ProPeriod), &eventAt, session.Subscription, session.Customer)
	outcome, err := s.applyEvent(ctx, Selector{UserID: userID}, m, eventAt)
	if outcome == models.WebhookOutcomeApplied {
		if code := session.Metadata["promo_code"]; code != "" {
			if err := s.repo.IncrementPromoCodeUse(ctx, code); err != nil {
				log.Warnf("[Webhook] Failed to count promo code %s: %v", code, err)
			}
		}
	}
	return outcome, err
}

func (s *Service) onSubscriptionCreated(ctx context.Context, reason string, sub *Subscription, eventAt time.Time) (string, error) {
	if !sub.Entitling() {
		log.Infof("[Webhook] Subscription %s created with status %s, waiting for activation", sub.ID, sub.Status)
		return models.WebhookOutcomeIgnored, nil
	}
	m := Grant(reason, eventAt.Add(ProPeriod), &eventAt, sub.ID, sub.Customer)
	return s.applyEvent(ctx, Selector{CustomerID: sub.Customer, UserID: sub.UserID()}, m, eventAt)
}

func (s *Service) onSubscriptionUpdated(ctx context.Context, reason string, sub *Subscription, eventAt time.Time) (string, error) {
	switch {
	case sub.Status == subscriptionStatusActive:
		m := Grant(reason, expiryFor(sub, eventAt), nil, sub.ID, sub.Customer)
		m.Guard = SubscriptionGuard(sub.ID)
		return s.applyEvent(ctx, Selector{SubscriptionID: sub.ID, UserID: sub.UserID()}, m, eventAt)
	case isDelinquentStatus(sub.Status):
		m := Revoke(reason, false)
		return s.applyEvent(ctx, Selector{SubscriptionID: sub.ID}, m, eventAt)
	default:
		return models.WebhookOutcomeIgnored, nil
	}
}

func (s *Service) onSubscriptionDeleted(ctx context.Context, reason string, sub *Subscription, eventAt time.Time) (string, error) {
	m := Revoke(reason, true)
	m.Terminal = true
	return s.applyEvent(ctx, Selector{SubscriptionID: sub.ID}, m, eventAt)
}

func (s *Service) onInvoicePaid(ctx context.Context, reason string, inv *Invoice, eventAt time.Time) (string, error) {
	subID := inv.SubscriptionID()
	if subID == "" {
		return models.WebhookOutcomeIgnored, nil
	}
	pro := true
	m := Mutation{
		Reason:    reason,
		Pro:       &pro,
		ExpiresAt: timePtr(eventAt.Add(ProPeriod)),
	}
	sel := Selector{SubscriptionID: subID}
	if inv.BillingReason == billingReasonCreate {
		// The first invoice may arrive before the checkout event stored the
		// subscription, so fall back to the user id from its metadata.
		m.StartedAt = &eventAt
		m.SubscriptionID = subID
		m.CustomerID = inv.Customer
		sel.UserID = inv.UserID()
	}
	return s.applyEvent(ctx, sel, m, eventAt)
}

func (s *Service) onInvoiceFailed(ctx context.Context, reason string, inv *Invoice, eventAt time.Time) (string, error) {
	subID := inv.SubscriptionID()
	if subID == "" {
		return models.WebhookOutcomeIgnored, nil
	}
	pro := false
	m := Mutation{Reason: reason, Pro: &pro}
	return s.applyEvent(ctx, Selector{SubscriptionID: subID}, m, eventAt)
}

// applyEvent maps entitlement results onto webhook outcomes. Only storage
// failures are returned as errors so the processor retries them.
func (s *Service) applyEvent(ctx context.Context, sel Selector, m Mutation, eventAt time.Time) (string, error) {
	_, err := s.Apply(ctx, sel, m, eventAt)
	switch {
	case err == nil:
		return models.WebhookOutcomeApplied, nil
	case errors.Is(err, ErrStaleEvent):
		return models.WebhookOutcomeStale, nil
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrSubscriptionMismatch):
		log.Warnf("[Webhook] %s matched no profile (%+v)", m.Reason, sel)
		return models.WebhookOutcomeUnmatched, nil
	default:
		return models.WebhookOutcomeFailed, err
	}
}
