package entitlements

import (
	"testing"
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/stretchr/testify/assert"
)

func TestIsActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		p    *models.Profile
		want bool
	}{
		{name: "nil profile", p: nil, want: false},
		{name: "free", p: &models.Profile{}, want: false},
		{name: "pro without expiry", p: &models.Profile{IsPro: true}, want: true},
		{name: "pro until future", p: &models.Profile{IsPro: true, SubscriptionExpiresAt: &future}, want: true},
		{name: "pro expired", p: &models.Profile{IsPro: true, SubscriptionExpiresAt: &past}, want: false},
		{name: "pro expiring now", p: &models.Profile{IsPro: true, SubscriptionExpiresAt: &now}, want: false},
		{name: "not pro with future expiry", p: &models.Profile{SubscriptionExpiresAt: &future}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsActive(tt.p, now))
		})
	}
}

func TestNewSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(48 * time.Hour)
	p := &models.Profile{ID: 7, IsPro: true, SubscriptionExpiresAt: &expires, Points: 120, EntitlementVersion: 4}

	s := NewSnapshot(p, now)
	assert.Equal(t, uint(7), s.UserID)
	assert.True(t, s.Active)
	assert.Equal(t, PlanPro, s.Plan)
	assert.Equal(t, 120, s.Points)
	assert.Equal(t, uint64(4), s.Version)

	later := s.Refresh(expires.Add(time.Minute))
	assert.False(t, later.Active)
	assert.Equal(t, PlanFree, later.Plan)
	assert.True(t, later.IsPro, "refresh must not touch the stored flag")
}
