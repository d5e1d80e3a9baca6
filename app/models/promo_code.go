package models

import (
	"strings"
	"time"
)

// PromoCode is the local allow-list entry a checkout promo code must match
// before it is handed to the payment processor.
type PromoCode struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	Code                  string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"code" validate:"required,min=3,max=64,alphanum"`
	DiscountPercent       float64   `gorm:"not null" json:"discount_percent" validate:"gt=0,lte=100"`
	MaxUses               int       `gorm:"not null;default:0" json:"max_uses" validate:"gte=0"`
	TimesUsed             int       `gorm:"not null;default:0" json:"times_used"`
	IsActive              bool      `gorm:"default:true;index" json:"is_active"`
	StripeCouponID        string    `gorm:"type:varchar(191);default:''" json:"stripe_coupon_id"`
	StripePromotionCodeID string    `gorm:"type:varchar(191);default:''" json:"stripe_promotion_code_id"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NormalizePromoCode upper-cases and trims a user supplied code.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeemable reports whether the code may still be applied at checkout.
func (p *PromoCode) Redeemable() bool {
	if !p.IsActive {
		return false
	}
	return p.MaxUses == 0 || p.TimesUsed < p.MaxUses
}
