package models

import "time"

// Webhook processing outcomes stored on BillingWebhookEvent.Outcome.
const (
	WebhookOutcomeApplied   = "applied"
	WebhookOutcomeStale     = "stale"
	WebhookOutcomeUnmatched = "unmatched"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeFailed    = "failed"
)

// BillingWebhookEvent stores provider webhook payloads with deduplication
// metadata for idempotent processing.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	EventCreatedAt  *time.Time `gorm:"type:timestamp;default:null" json:"event_created_at,omitempty"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	Outcome         string     `gorm:"type:varchar(20);default:'';index" json:"outcome"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Handled reports whether a previous delivery finished without error, in
// which case a redelivery is acknowledged as a duplicate.
func (e *BillingWebhookEvent) Handled() bool {
	return e.ProcessedAt != nil && e.ProcessingError == "" && e.Outcome != WebhookOutcomeFailed
}
