package billing

import (
	"context"
	"strconv"
	"strings"
	"time"
)

const provider = "stripe"

// Processor-side statuses the service distinguishes.
const (
	subscriptionStatusActive   = "active"
	subscriptionStatusTrialing = "trialing"
	sessionModeSubscription    = "subscription"
	sessionPaymentStatusPaid   = "paid"
	billingReasonCreate        = "subscription_create"
)

// CheckoutSession is the minimal view of a processor checkout session. The
// JSON tags match webhook payloads; the gateway fills it from API objects.
type CheckoutSession struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Mode              string            `json:"mode"`
	PaymentStatus     string            `json:"payment_status"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// UserID resolves the acting user from metadata first, then from the
// client reference id. Zero means unresolvable.
func (s *CheckoutSession) UserID() uint {
	if id := parseUserID(s.Metadata["user_id"]); id != 0 {
		return id
	}
	return parseUserID(s.ClientReferenceID)
}

// Paid reports whether the session completed a paid subscription checkout.
func (s *CheckoutSession) Paid() bool {
	return s.Mode == sessionModeSubscription && s.PaymentStatus == sessionPaymentStatusPaid
}

// Subscription is the minimal view of a processor subscription.
type Subscription struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// SubscriptionItem carries the per-item billing period.
type SubscriptionItem struct {
	CurrentPeriodEnd int64 `json:"current_period_end"`
}

// PeriodEnd returns the end of the current billing period. Newer API
// versions carry it on the subscription items only.
func (s *Subscription) PeriodEnd() (time.Time, bool) {
	end := s.CurrentPeriodEnd
	for _, item := range s.Items.Data {
		if item.CurrentPeriodEnd > end {
			end = item.CurrentPeriodEnd
		}
	}
	if end <= 0 {
		return time.Time{}, false
	}
	return time.Unix(end, 0), true
}

// Entitling reports whether the status grants access.
func (s *Subscription) Entitling() bool {
	return isEntitlingStatus(s.Status)
}

// UserID returns the user id copied into subscription metadata at checkout.
func (s *Subscription) UserID() uint {
	return parseUserID(s.Metadata["user_id"])
}

// Invoice is the minimal view of a processor invoice.
type Invoice struct {
	ID            string `json:"id"`
	Customer      string `json:"customer"`
	Subscription  string `json:"subscription"`
	BillingReason string `json:"billing_reason"`
	Parent        struct {
		SubscriptionDetails struct {
			Subscription string            `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionID returns the subscription the invoice belongs to, from
// either payload shape.
func (i *Invoice) SubscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription
	}
	return i.Parent.SubscriptionDetails.Subscription
}

// UserID returns the user id carried by the parent subscription metadata.
func (i *Invoice) UserID() uint {
	return parseUserID(i.Parent.SubscriptionDetails.Metadata["user_id"])
}

// CheckoutRequest holds the parameters of a new checkout session.
type CheckoutRequest struct {
	UserID            uint
	CustomerID        string
	Email             string
	PromotionCodeID   string
	PromoCode         string
	SuccessURL        string
	CancelURL         string
	Currency          string
	UnitAmount        int64
	ProductName       string
	ProductDesc       string
	RecurringInterval string
}

// Gateway is the subset of the payment processor API the service uses.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	ListCheckoutSessions(ctx context.Context, customerID string, limit int) ([]CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	ListSubscriptions(ctx context.Context, customerID string, limit int) ([]Subscription, error)
	CancelSubscription(ctx context.Context, id string) error
	// FindPromotionCode returns the id of the active promotion code with the
	// given customer-facing code, or "" when there is none.
	FindPromotionCode(ctx context.Context, code string) (string, error)
	CreateCoupon(ctx context.Context, code string, percentOff float64) (string, error)
	CreatePromotionCode(ctx context.Context, couponID, code string, maxRedemptions int) (string, error)
}

func parseUserID(raw string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}
