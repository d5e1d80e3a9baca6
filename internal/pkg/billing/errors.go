package billing

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication        = errors.New("authentication required")
	ErrConfiguration         = errors.New("payment processing is not configured")
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	ErrNoActiveSubscription  = errors.New("no active subscription found")
	ErrInvalidPromoCode      = errors.New("invalid promo code")
	ErrInsufficientPoints    = errors.New("not enough points")
	ErrProfileNotFound       = errors.New("profile not found")
	ErrStaleEvent            = errors.New("event is older than the stored entitlement state")
	ErrVersionConflict       = errors.New("entitlement record changed concurrently")
	ErrInvalidEvent          = errors.New("invalid webhook event")
)

// UpstreamError is returned when the payment processor rejects a request.
// Message is safe to show to the end user.
type UpstreamError struct {
	Op      string
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsResourceMissing reports whether err is an upstream "no such object" error.
func IsResourceMissing(err error) bool {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	return ue.Code == "resource_missing" || ue.Status == 404
}

// IsAlreadyExists reports whether err is an upstream duplicate-object error.
func IsAlreadyExists(err error) bool {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	return ue.Code == "resource_already_exists"
}
