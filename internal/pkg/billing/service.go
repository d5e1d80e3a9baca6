package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Notifier is told about every entitlement write that changed a record.
type Notifier interface {
	EntitlementChanged(ctx context.Context, p *models.Profile)
}

// Service owns every entitlement write: webhook events, checkout
// verification, cancellation, points and admin changes all go through Apply.
type Service struct {
	repo     Repository
	gateway  Gateway
	cfg      Config
	notifier Notifier
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier registers a change notifier (cache invalidation, push).
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a billing service from an injected repository and
// gateway. A nil gateway turns processor calls into ErrConfiguration.
func NewService(repo Repository, gateway Gateway, cfg Config, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		gateway: gateway,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway Gateway, cfg Config, opts ...Option) *Service {
	return NewService(NewRepository(db), gateway, cfg, opts...)
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Repository exposes the underlying store for read paths.
func (s *Service) Repository() Repository {
	return s.repo
}

// FindProfile loads a profile by id.
func (s *Service) FindProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	return s.repo.FindProfile(ctx, Selector{UserID: userID})
}

// Apply folds m into the selected profile as of eventAt.
func (s *Service) Apply(ctx context.Context, sel Selector, m Mutation, eventAt time.Time) (*models.Profile, error) {
	p, changed, err := s.repo.ApplyMutation(ctx, sel, m, eventAt)
	outcome := transitionOutcome(changed, err)
	metrics.EntitlementTransitions.WithLabelValues(m.Reason, outcome).Inc()

	switch outcome {
	case "applied":
		log.Infof("[Billing] %s applied to profile %d (version %d, pro=%t)", m.Reason, p.ID, p.EntitlementVersion, p.IsPro)
		if s.notifier != nil {
			s.notifier.EntitlementChanged(ctx, p)
		}
	case "stale":
		log.Warnf("[Billing] %s ignored: event at %s is older than stored state", m.Reason, eventAt.UTC().Format(time.RFC3339))
	case "failed":
		log.Errorf("[Billing] %s failed: %v", m.Reason, err)
	}
	return p, err
}

func transitionOutcome(changed bool, err error) string {
	switch {
	case err == nil && changed:
		return "applied"
	case err == nil:
		return "unchanged"
	case errors.Is(err, ErrStaleEvent):
		return "stale"
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrSubscriptionMismatch):
		return "unmatched"
	case errors.Is(err, ErrNotExpired), errors.Is(err, ErrInsufficientPoints):
		return "rejected"
	default:
		return "failed"
	}
}

// localEventTime orders a locally initiated write after everything already
// folded into p, even when processor clocks run ahead of ours.
func (s *Service) localEventTime(p *models.Profile) time.Time {
	now := s.now()
	if p != nil && p.LastEventAt != nil && p.LastEventAt.After(now) {
		return *p.LastEventAt
	}
	return now
}

func (s *Service) requireGateway() error {
	if s.gateway == nil {
		return ErrConfiguration
	}
	return nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	p := strings.ToLower(strings.TrimSpace(in.Provider))
	if p == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        p,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
		EventCreatedAt:  in.EventCreatedAt,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed stores the outcome and an optional error of an event.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, outcome string, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, outcome, errMsg)
}
