package billing

import (
	"errors"
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
)

// ErrSubscriptionMismatch is returned by SubscriptionGuard when the profile
// already references a different processor subscription.
var ErrSubscriptionMismatch = errors.New("profile references another subscription")

// ErrNotExpired is returned by ExpiredGuard when the record was renewed in
// the meantime.
var ErrNotExpired = errors.New("entitlement is not expired")

// Mutation describes the field assignments of one entitlement change. It is
// storage-agnostic; Reduce applies it to a profile.
type Mutation struct {
	Reason string

	Pro          *bool
	ExpiresAt    *time.Time
	ClearExpiry  bool
	ExtendExpiry time.Duration

	StartedAt         *time.Time
	StartIfUnset      bool
	SubscriptionID    string
	ClearSubscription bool
	CustomerID        string
	PointsDelta       int

	// Terminal mutations describe final processor states and apply even
	// when older than the stored state.
	Terminal bool

	// Guard runs against the current record before any assignment.
	Guard func(current models.Profile) error
}

// Grant activates Pro until expiresAt and stores the processor references.
func Grant(reason string, expiresAt time.Time, startedAt *time.Time, subscriptionID, customerID string) Mutation {
	pro := true
	return Mutation{
		Reason:         reason,
		Pro:            &pro,
		ExpiresAt:      &expiresAt,
		StartedAt:      startedAt,
		StartIfUnset:   startedAt == nil,
		SubscriptionID: subscriptionID,
		CustomerID:     customerID,
	}
}

// Revoke clears is_pro and the expiry. clearSubscription also drops the
// stored subscription reference.
func Revoke(reason string, clearSubscription bool) Mutation {
	pro := false
	return Mutation{
		Reason:            reason,
		Pro:               &pro,
		ClearExpiry:       true,
		ClearSubscription: clearSubscription,
	}
}

// SubscriptionGuard rejects records bound to a subscription other than id.
// Records without a stored subscription pass.
func SubscriptionGuard(id string) func(models.Profile) error {
	return func(p models.Profile) error {
		if stored := p.SubscriptionID(); stored != "" && stored != id {
			return ErrSubscriptionMismatch
		}
		return nil
	}
}

// ExpiredGuard rejects records that are no longer expired at now.
func ExpiredGuard(now time.Time) func(models.Profile) error {
	return func(p models.Profile) error {
		if !p.IsPro || p.SubscriptionExpiresAt == nil || p.SubscriptionExpiresAt.After(now) {
			return ErrNotExpired
		}
		return nil
	}
}

// Reduce applies m to current as of eventAt. Events older than the newest
// event already folded into current are rejected with ErrStaleEvent unless
// m is terminal. A replay of the newest event that changes nothing returns current as is.
func Reduce(current models.Profile, m Mutation, eventAt time.Time) (models.Profile, error) {
	eventAt = eventAt.Truncate(time.Second)
	if current.LastEventAt != nil && eventAt.Before(*current.LastEventAt) {
		if !m.Terminal {
			return current, ErrStaleEvent
		}
		eventAt = *current.LastEventAt
	}
	if m.Guard != nil {
		if err := m.Guard(current); err != nil {
			return current, err
		}
	}

	next := current
	if m.Pro != nil {
		next.IsPro = *m.Pro
	}

	switch {
	case m.ClearExpiry:
		next.SubscriptionExpiresAt = nil
	case m.ExtendExpiry > 0:
		base := eventAt
		if current.SubscriptionExpiresAt != nil && current.SubscriptionExpiresAt.After(base) {
			base = *current.SubscriptionExpiresAt
		}
		next.SubscriptionExpiresAt = timePtr(base.Add(m.ExtendExpiry))
	case m.ExpiresAt != nil:
		next.SubscriptionExpiresAt = timePtr(m.ExpiresAt.Truncate(time.Second))
	}

	if m.StartedAt != nil {
		next.SubscriptionStartedAt = timePtr(m.StartedAt.Truncate(time.Second))
	} else if m.StartIfUnset && current.SubscriptionStartedAt == nil {
		next.SubscriptionStartedAt = timePtr(eventAt)
	}

	if m.ClearSubscription {
		next.StripeSubscriptionID = nil
	} else if m.SubscriptionID != "" {
		next.StripeSubscriptionID = stringPtr(m.SubscriptionID)
	}
	if m.CustomerID != "" {
		next.StripeCustomerID = stringPtr(m.CustomerID)
	}

	if m.PointsDelta != 0 {
		if current.Points+m.PointsDelta < 0 {
			return current, ErrInsufficientPoints
		}
		next.Points = current.Points + m.PointsDelta
	}

	if sameEntitlement(current, next) && current.LastEventAt != nil && !eventAt.After(*current.LastEventAt) {
		return current, nil
	}

	next.LastEventAt = timePtr(eventAt)
	next.EntitlementVersion = current.EntitlementVersion + 1
	return next, nil
}

func sameEntitlement(a, b models.Profile) bool {
	return a.IsPro == b.IsPro &&
		equalTime(a.SubscriptionExpiresAt, b.SubscriptionExpiresAt) &&
		equalTime(a.SubscriptionStartedAt, b.SubscriptionStartedAt) &&
		a.SubscriptionID() == b.SubscriptionID() &&
		a.CustomerID() == b.CustomerID() &&
		a.Points == b.Points
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func stringPtr(s string) *string {
	return &s
}
