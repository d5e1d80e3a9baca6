package billing

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

type fakeGateway struct {
	mu sync.Mutex

	sessions      map[string]*CheckoutSession
	subscriptions map[string]*Subscription
	promotionIDs  map[string]string

	createErr error
	cancelErr error
	listErr   error

	checkoutRequests []CheckoutRequest
	cancelled        []string
	coupons          []string
	promotionCodes   map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sessions:       make(map[string]*CheckoutSession),
		subscriptions:  make(map[string]*Subscription),
		promotionIDs:   make(map[string]string),
		promotionCodes: make(map[string]bool),
	}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.checkoutRequests = append(g.checkoutRequests, req)
	return &CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/c/cs_test_1"}, nil
}

func (g *fakeGateway) GetCheckoutSession(_ context.Context, id string) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return nil, &UpstreamError{Op: "get checkout session", Code: "resource_missing", Status: 404, Message: "No such checkout.session"}
	}
	return s, nil
}

func (g *fakeGateway) ListCheckoutSessions(_ context.Context, customerID string, limit int) ([]CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	var out []CheckoutSession
	for _, s := range g.sessions {
		if s.Customer == customerID && len(out) < limit {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (g *fakeGateway) GetSubscription(_ context.Context, id string) (*Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.subscriptions[id]
	if !ok {
		return nil, &UpstreamError{Op: "get subscription", Code: "resource_missing", Status: 404, Message: "No such subscription"}
	}
	return s, nil
}

func (g *fakeGateway) ListSubscriptions(_ context.Context, customerID string, limit int) ([]Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	var out []Subscription
	for _, s := range g.subscriptions {
		if s.Customer == customerID && len(out) < limit {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancelled = append(g.cancelled, id)
	return nil
}

func (g *fakeGateway) FindPromotionCode(_ context.Context, code string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.promotionIDs[code], nil
}

func (g *fakeGateway) CreateCoupon(_ context.Context, code string, _ float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.coupons = append(g.coupons, code)
	return "coupon_" + code, nil
}

func (g *fakeGateway) CreatePromotionCode(_ context.Context, couponID, code string, _ int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.promotionCodes[code] {
		return "", &UpstreamError{Op: "create promotion code", Code: "resource_already_exists", Status: 400, Message: "already exists"}
	}
	g.promotionCodes[code] = true
	g.promotionIDs[code] = "promo_" + code
	return "promo_" + code, nil
}

func newTestService(t *testing.T, profiles ...models.Profile) (*Service, *MemoryRepository, *fakeGateway) {
	t.Helper()
	repo := NewMemoryRepository(profiles...)
	gw := newFakeGateway()
	svc := NewService(repo, gw, Config{
		WebhookSecret: testWebhookSecret,
		PublicDomain:  "https://foxpass.test",
	})
	return svc, repo, gw
}

// signedEvent builds a Stripe event envelope around object and signs it.
func signedEvent(t *testing.T, id, eventType string, created time.Time, object interface{}) ([]byte, string) {
	t.Helper()
	obj, err := json.Marshal(object)
	require.NoError(t, err)
	envelope := map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     created.Unix(),
		"api_version": "2025-03-31.basil",
		"data":        map[string]json.RawMessage{"object": obj},
	}
	payload, err := json.Marshal(envelope)
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func deliver(t *testing.T, svc *Service, id, eventType string, created time.Time, object interface{}) *WebhookResult {
	t.Helper()
	payload, header := signedEvent(t, id, eventType, created, object)
	res, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	return res
}

func checkoutObject(userID, customer, subscription string) map[string]interface{} {
	return map[string]interface{}{
		"id":                  "cs_" + subscription,
		"object":              "checkout.session",
		"mode":                "subscription",
		"payment_status":      "paid",
		"customer":            customer,
		"subscription":        subscription,
		"client_reference_id": userID,
		"metadata":            map[string]string{"user_id": userID},
	}
}

func subscriptionObject(id, customer, status string, periodEnd time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":       id,
		"object":   "subscription",
		"customer": customer,
		"status":   status,
		"items": map[string]interface{}{
			"data": []map[string]interface{}{
				{"current_period_end": periodEnd.Unix()},
			},
		},
	}
}

func invoiceObject(id, customer, subscription, reason string) map[string]interface{} {
	return map[string]interface{}{
		"id":             id,
		"object":         "invoice",
		"customer":       customer,
		"billing_reason": reason,
		"parent": map[string]interface{}{
			"subscription_details": map[string]interface{}{
				"subscription": subscription,
			},
		},
	}
}

func strPtr(s string) *string {
	return &s
}
