package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foxpass",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "foxpass",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// EntitlementTransitions counts entitlement writes by reason and outcome.
	EntitlementTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foxpass",
		Subsystem: "entitlement",
		Name:      "transitions_total",
		Help:      "Entitlement changes by reason and outcome (applied, unchanged, stale, unmatched, failed).",
	}, []string{"reason", "outcome"})

	// CheckoutSessionsTotal counts checkout session creation attempts.
	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foxpass",
		Subsystem: "billing",
		Name:      "checkout_sessions_total",
		Help:      "Checkout sessions by outcome.",
	}, []string{"outcome"})

	// CancellationsTotal counts user initiated cancellations.
	CancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foxpass",
		Subsystem: "billing",
		Name:      "cancellations_total",
		Help:      "Subscription cancellations by outcome.",
	}, []string{"outcome"})

	// VerifyRequestsTotal counts synchronous verification calls.
	VerifyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foxpass",
		Subsystem: "billing",
		Name:      "verify_requests_total",
		Help:      "Verification requests by result.",
	}, []string{"result"})

	// SweeperRevocations counts records revoked by the expiry sweep.
	SweeperRevocations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "foxpass",
		Subsystem: "entitlement",
		Name:      "sweeper_revocations_total",
		Help:      "Expired entitlements revoked by the sweeper.",
	})

	// LongPollWaiters tracks requests blocked on an entitlement change.
	LongPollWaiters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "foxpass",
		Subsystem: "entitlement",
		Name:      "long_poll_waiters",
		Help:      "Number of entitlement long-poll requests currently waiting.",
	})
)
