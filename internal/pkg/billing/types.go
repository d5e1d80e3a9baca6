package billing

import "time"

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
	EventCreatedAt  *time.Time
}

// WebhookResult summarizes one webhook delivery.
type WebhookResult struct {
	EventID   string
	EventType string
	Outcome   string
	Duplicate bool
}

// CheckoutInput carries the optional parts of a checkout request.
type CheckoutInput struct {
	PromoCode string
	Origin    string
}

// VerifyResult is the answer of the synchronous verification call.
type VerifyResult struct {
	Success bool
	IsPro   bool
	Message string
}

// CancelResult describes a completed cancellation.
type CancelResult struct {
	SubscriptionID string
	Duration       string
	CancelledAt    time.Time
}

// PromoSyncResult reports the processor side state of one local promo code.
type PromoSyncResult struct {
	Code            string `json:"code"`
	Status          string `json:"status"`
	CouponID        string `json:"couponId,omitempty"`
	PromotionCodeID string `json:"promotionCodeId,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Promo sync statuses.
const (
	PromoSyncCreated       = "created"
	PromoSyncAlreadyExists = "already_exists"
	PromoSyncFailed        = "failed"
)
