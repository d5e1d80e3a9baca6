package poller

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/FoxPass/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 15

	StatusActive  = "active"
	StatusDelayed = "delayed"

	DelayedMessage = "Payment received! Your Pro access is taking longer than expected to activate. Please refresh the page in a moment."
)

// Source is where the poller reads entitlement state from.
type Source interface {
	// Verify asks the server to re-derive the entitlement from the payment
	// processor and reports whether the caller is Pro afterwards.
	Verify(ctx context.Context, sessionID string) (bool, error)
	// Fetch reads the stored entitlement.
	Fetch(ctx context.Context) (*entitlements.Snapshot, error)
}

// Result is the final state of a poll run.
type Result struct {
	Status   string
	Message  string
	Attempts int
	Snapshot *entitlements.Snapshot
}

// Poller bridges the gap between a finished checkout and webhook delivery:
// one synchronous verification, then at most MaxAttempts reads.
type Poller struct {
	Source      Source
	SessionID   string
	Interval    time.Duration
	MaxAttempts int

	// OnRefresh is called with every snapshot read.
	OnRefresh func(attempt int, snap *entitlements.Snapshot)
}

// New returns a poller with the default interval and attempt cap.
func New(source Source, sessionID string) *Poller {
	return &Poller{
		Source:      source,
		SessionID:   sessionID,
		Interval:    DefaultInterval,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Run polls until the entitlement is active, the attempts are used up or
// ctx is done. A cancelled ctx and ErrUnauthorized are returned as errors;
// other failed reads count as attempts.
func (p *Poller) Run(ctx context.Context) (Result, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	pro, err := p.Source.Verify(ctx, p.SessionID)
	if errors.Is(err, ErrUnauthorized) {
		return Result{}, err
	}
	if err != nil {
		log.Warnf("[Poller] Verification failed, falling back to polling: %v", err)
	} else if pro {
		return Result{Status: StatusActive}, nil
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	var last *entitlements.Snapshot
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Result{Attempts: attempt - 1, Snapshot: last}, ctx.Err()
		case <-timer.C:
		}

		snap, err := p.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Result{Attempts: attempt, Snapshot: last}, ctx.Err()
			}
			if errors.Is(err, ErrUnauthorized) {
				return Result{Attempts: attempt, Snapshot: last}, err
			}
			log.Warnf("[Poller] Attempt %d failed: %v", attempt, err)
		} else {
			last = snap
			if p.OnRefresh != nil {
				p.OnRefresh(attempt, snap)
			}
			if snap.Active {
				return Result{Status: StatusActive, Attempts: attempt, Snapshot: snap}, nil
			}
		}
		timer.Reset(interval)
	}

	return Result{Status: StatusDelayed, Message: DelayedMessage, Attempts: maxAttempts, Snapshot: last}, nil
}
