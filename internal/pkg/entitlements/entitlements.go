package entitlements

import (
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
)

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// IsActive reports whether p grants Pro access at now. A record whose
// expiry has passed is inactive even before the sweeper revokes it.
func IsActive(p *models.Profile, now time.Time) bool {
	if p == nil || !p.IsPro {
		return false
	}
	return p.SubscriptionExpiresAt == nil || p.SubscriptionExpiresAt.After(now)
}

// EffectivePlan maps the entitlement state to a plan.
func EffectivePlan(p *models.Profile, now time.Time) Plan {
	if IsActive(p, now) {
		return PlanPro
	}
	return PlanFree
}

// Snapshot is the client-facing view of a profile's entitlement.
type Snapshot struct {
	UserID                uint       `json:"user_id"`
	IsPro                 bool       `json:"is_pro"`
	Active                bool       `json:"active"`
	Plan                  Plan       `json:"plan"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at"`
	SubscriptionStartedAt *time.Time `json:"subscription_started_at"`
	Points                int        `json:"points"`
	Version               uint64     `json:"version"`
}

// NewSnapshot builds the view of p as of now.
func NewSnapshot(p *models.Profile, now time.Time) Snapshot {
	return Snapshot{
		UserID:                p.ID,
		IsPro:                 p.IsPro,
		Active:                IsActive(p, now),
		Plan:                  EffectivePlan(p, now),
		SubscriptionExpiresAt: p.SubscriptionExpiresAt,
		SubscriptionStartedAt: p.SubscriptionStartedAt,
		Points:                p.Points,
		Version:               p.EntitlementVersion,
	}
}

// Refresh recomputes the expiry dependent fields of a cached snapshot.
func (s Snapshot) Refresh(now time.Time) Snapshot {
	s.Active = s.IsPro && (s.SubscriptionExpiresAt == nil || s.SubscriptionExpiresAt.After(now))
	if s.Active {
		s.Plan = PlanPro
	} else {
		s.Plan = PlanFree
	}
	return s
}
