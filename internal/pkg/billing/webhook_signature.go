package billing

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// VerifyWebhookSignature checks the Stripe-Signature header against the
// shared secret and returns the parsed event. Verification is mandatory:
// a missing secret is a configuration error, a missing header a
// verification failure.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string) (stripe.Event, error) {
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return stripe.Event{}, ErrConfiguration
	}
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing signature header", ErrSignatureVerification)
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}
	return event, nil
}
