package billing

import (
	"context"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/gofiber/fiber/v2/log"
)

// SetPro grants (AdminGrantPeriod) or revokes Pro on behalf of an admin.
// The stored subscription reference is kept either way.
func (s *Service) SetPro(ctx context.Context, adminID, targetID uint, grant bool) (*models.Profile, error) {
	target, err := s.FindProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}
	eventAt := s.localEventTime(target)

	var m Mutation
	action := models.AdminActionRevokePro
	if grant {
		m = Grant("admin_grant", eventAt.Add(AdminGrantPeriod), nil, "", "")
		action = models.AdminActionGrantPro
	} else {
		m = Revoke("admin_revoke", false)
	}

	updated, err := s.Apply(ctx, Selector{UserID: targetID}, m, eventAt)
	if err != nil {
		return nil, err
	}
	s.recordAdminAction(ctx, models.NewAdminAction(adminID, action, &targetID, map[string]interface{}{
		"is_pro":                  updated.IsPro,
		"subscription_expires_at": updated.SubscriptionExpiresAt,
		"entitlement_version":     updated.EntitlementVersion,
	}))
	return updated, nil
}

// AdjustPoints changes a user's balance by delta, never below zero.
func (s *Service) AdjustPoints(ctx context.Context, adminID, targetID uint, delta int) (*models.Profile, error) {
	target, err := s.FindProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}
	m := Mutation{Reason: "admin_points", PointsDelta: delta}
	updated, err := s.Apply(ctx, Selector{UserID: targetID}, m, s.localEventTime(target))
	if err != nil {
		return nil, err
	}
	s.recordAdminAction(ctx, models.NewAdminAction(adminID, models.AdminActionAdjustPoints, &targetID, map[string]interface{}{
		"delta":  delta,
		"points": updated.Points,
	}))
	return updated, nil
}

func (s *Service) recordAdminAction(ctx context.Context, a *models.AdminAction) {
	if err := s.repo.CreateAdminAction(ctx, a); err != nil {
		log.Errorf("[Billing] Failed to record admin action %s: %v", a.ActionType, err)
	}
}
