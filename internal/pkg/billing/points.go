package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/gofiber/fiber/v2/log"
)

// RedeemPoints exchanges PointsRedemptionCost points for PointsRedemptionPeriod
// of Pro, extending from the later of now and the current expiry.
func (s *Service) RedeemPoints(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	if profile == nil || profile.ID == 0 {
		return nil, ErrAuthentication
	}
	pro := true
	m := Mutation{
		Reason:       "points_redeem",
		Pro:          &pro,
		ExtendExpiry: PointsRedemptionPeriod,
		StartIfUnset: true,
		PointsDelta:  -PointsRedemptionCost,
	}
	updated, err := s.Apply(ctx, Selector{UserID: profile.ID}, m, s.localEventTime(profile))
	if err != nil {
		if errors.Is(err, ErrInsufficientPoints) {
			balance := profile.Points
			if updated != nil {
				balance = updated.Points
			}
			return nil, fmt.Errorf("%w: you need %d points, you have %d", ErrInsufficientPoints, PointsRedemptionCost, balance)
		}
		return nil, err
	}
	log.Infof("[Billing] User %d redeemed %d points, Pro until %s", profile.ID, PointsRedemptionCost, updated.SubscriptionExpiresAt.Format("2006-01-02"))
	return updated, nil
}
