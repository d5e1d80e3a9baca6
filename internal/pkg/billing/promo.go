package billing

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/gofiber/fiber/v2/log"
)

// SyncPromoCodes creates a coupon and a promotion code at the processor for
// every active local promo code. Codes the processor already knows are
// reported as PromoSyncAlreadyExists. adminID 0 means the operator CLI.
func (s *Service) SyncPromoCodes(ctx context.Context, adminID uint) ([]PromoSyncResult, error) {
	if err := s.requireGateway(); err != nil {
		return nil, err
	}
	codes, err := s.repo.ListActivePromoCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list promo codes: %w", err)
	}

	results := make([]PromoSyncResult, 0, len(codes))
	for i := range codes {
		results = append(results, s.syncPromoCode(ctx, &codes[i]))
	}

	created := 0
	for _, r := range results {
		if r.Status == PromoSyncCreated {
			created++
		}
	}
	s.recordAdminAction(ctx, models.NewAdminAction(adminID, models.AdminActionSyncPromoCodes, nil, map[string]interface{}{
		"total":   len(results),
		"created": created,
	}))
	log.Infof("[Billing] Promo code sync finished: %d codes, %d created", len(results), created)
	return results, nil
}

func (s *Service) syncPromoCode(ctx context.Context, pc *models.PromoCode) PromoSyncResult {
	res := PromoSyncResult{Code: pc.Code}

	couponID := pc.StripeCouponID
	if couponID == "" {
		id, err := s.gateway.CreateCoupon(ctx, pc.Code, pc.DiscountPercent)
		if err != nil {
			res.Status = PromoSyncFailed
			res.Error = err.Error()
			return res
		}
		couponID = id
	}
	res.CouponID = couponID

	promotionCodeID, err := s.gateway.CreatePromotionCode(ctx, couponID, pc.Code, pc.MaxUses)
	switch {
	case err == nil:
		res.Status = PromoSyncCreated
	case IsAlreadyExists(err):
		res.Status = PromoSyncAlreadyExists
		promotionCodeID, err = s.gateway.FindPromotionCode(ctx, pc.Code)
		if err != nil {
			log.Warnf("[Billing] Promo code %s exists but lookup failed: %v", pc.Code, err)
		}
	default:
		res.Status = PromoSyncFailed
		res.Error = err.Error()
	}
	res.PromotionCodeID = promotionCodeID

	pc.StripeCouponID = couponID
	if promotionCodeID != "" {
		pc.StripePromotionCodeID = promotionCodeID
	}
	if err := s.repo.SavePromoCode(ctx, pc); err != nil {
		log.Errorf("[Billing] Failed to store processor ids for promo code %s: %v", pc.Code, err)
	}
	return res
}
