package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/internal/pkg/billing"
	"github.com/ManuelReschke/FoxPass/internal/pkg/cache"
	"github.com/ManuelReschke/FoxPass/internal/pkg/middleware"
	"github.com/ManuelReschke/FoxPass/internal/pkg/session"
)

const testWebhookSecret = "whsec_controller_test"

type stubGateway struct {
	subscriptions map[string]*billing.Subscription
	cancelErr     error
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	return &billing.CheckoutSession{ID: "cs_1", URL: "https://checkout.test/cs_1?user=" + req.Email}, nil
}

func (g *stubGateway) GetCheckoutSession(context.Context, string) (*billing.CheckoutSession, error) {
	return nil, &billing.UpstreamError{Op: "get checkout session", Code: "resource_missing", Status: 404, Message: "No such checkout.session"}
}

func (g *stubGateway) ListCheckoutSessions(context.Context, string, int) ([]billing.CheckoutSession, error) {
	return nil, nil
}

func (g *stubGateway) GetSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	if s, ok := g.subscriptions[id]; ok {
		return s, nil
	}
	return nil, &billing.UpstreamError{Op: "get subscription", Code: "resource_missing", Status: 404, Message: "No such subscription"}
}

func (g *stubGateway) ListSubscriptions(_ context.Context, customerID string, _ int) ([]billing.Subscription, error) {
	var out []billing.Subscription
	for _, s := range g.subscriptions {
		if s.Customer == customerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (g *stubGateway) CancelSubscription(context.Context, string) error {
	return g.cancelErr
}

func (g *stubGateway) FindPromotionCode(context.Context, string) (string, error) {
	return "", nil
}

func (g *stubGateway) CreateCoupon(_ context.Context, code string, _ float64) (string, error) {
	return "coupon_" + code, nil
}

func (g *stubGateway) CreatePromotionCode(_ context.Context, _ string, code string, _ int) (string, error) {
	return "promo_" + code, nil
}

type testAPI struct {
	app    *fiber.App
	repo   *billing.MemoryRepository
	gw     *stubGateway
	tokens *session.Manager
}

func newTestAPI(t *testing.T, withGateway bool) *testAPI {
	t.Helper()
	repo := billing.NewMemoryRepository(
		models.Profile{ID: 1, Username: "alice", Email: "alice@example.test", Status: models.STATUS_ACTIVE, Role: models.ROLE_USER, Points: 250},
		models.Profile{ID: 2, Username: "root", Status: models.STATUS_ACTIVE, Role: models.ROLE_ADMIN},
	)
	gw := &stubGateway{subscriptions: map[string]*billing.Subscription{}}
	var gateway billing.Gateway
	if withGateway {
		gateway = gw
	}
	svc := billing.NewService(repo, gateway, billing.Config{WebhookSecret: testWebhookSecret, PublicDomain: "https://foxpass.test"})
	tokens, err := session.NewManager("controller-secret", "", time.Hour)
	require.NoError(t, err)

	bc := NewBillingController(svc)
	ec := NewEntitlementController(svc, cache.NewEntitlementCache(nil))
	ac := NewAdminBillingController(svc, nil)

	app := fiber.New()
	auth := middleware.BearerAuth(tokens, svc)
	api := app.Group("/api/v1")
	api.Post("/billing/webhook", bc.HandleWebhook)
	api.Post("/billing/checkout", auth, bc.HandleCheckout)
	api.Post("/billing/verify", auth, bc.HandleVerify)
	api.Post("/billing/cancel", auth, bc.HandleCancel)
	api.Get("/entitlement", auth, ec.HandleGetEntitlement)
	api.Post("/points/redeem", auth, ec.HandleRedeemPoints)
	api.Post("/admin/users/:id/pro", auth, middleware.RequireAdmin, ac.HandleSetPro)
	api.Post("/admin/users/:id/points", auth, middleware.RequireAdmin, ac.HandleAdjustPoints)

	return &testAPI{app: app, repo: repo, gw: gw, tokens: tokens}
}

func (a *testAPI) call(t *testing.T, method, path string, userID uint, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if userID != 0 {
		token, err := a.tokens.Issue(userID, "")
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return a.do(t, req)
}

func (a *testAPI) do(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := a.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (a *testAPI) webhook(t *testing.T, id, eventType string, object map[string]interface{}, secret string) (int, map[string]interface{}) {
	t.Helper()
	obj, _ := json.Marshal(object)
	payload, _ := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     time.Now().Unix(),
		"api_version": "2025-03-31.basil",
		"data":        map[string]json.RawMessage{"object": obj},
	})
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/billing/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return a.do(t, req)
}

func paidCheckout(userID, customer, subscription string) map[string]interface{} {
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

func TestWebhookEndpoint(t *testing.T) {
	api := newTestAPI(t, true)

	status, body := api.webhook(t, "evt_1", "checkout.session.completed", paidCheckout("1", "cus_1", "sub_1"), testWebhookSecret)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])
	assert.Equal(t, false, body["duplicate"])

	p, _ := api.repo.Profile(1)
	assert.True(t, p.IsPro)

	status, body = api.webhook(t, "evt_1", "checkout.session.completed", paidCheckout("1", "cus_1", "sub_1"), testWebhookSecret)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])
}

func TestWebhookEndpoint_RejectsBadSignature(t *testing.T) {
	api := newTestAPI(t, true)
	before, _ := api.repo.Profile(1)

	status, body := api.webhook(t, "evt_2", "checkout.session.completed", paidCheckout("1", "cus_1", "sub_1"), "whsec_wrong")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid webhook signature", body["error"])

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/billing/webhook", bytes.NewReader([]byte(`{"id":"evt_3"}`)))
	status, _ = api.do(t, req)
	assert.Equal(t, fiber.StatusBadRequest, status)

	after, _ := api.repo.Profile(1)
	assert.Equal(t, before, after)
	assert.Empty(t, api.repo.Events())
}

func TestCheckoutEndpoint(t *testing.T) {
	api := newTestAPI(t, true)

	status, body := api.call(t, fiber.MethodPost, "/api/v1/billing/checkout", 1, map[string]interface{}{"promoCode": nil})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "https://checkout.test/cs_1?user=alice@example.test", body["url"])

	status, body = api.call(t, fiber.MethodPost, "/api/v1/billing/checkout", 1, map[string]interface{}{"promoCode": "NOPE"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid or expired promo code", body["error"])

	status, body = api.call(t, fiber.MethodPost, "/api/v1/billing/checkout", 0, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, msgAuthRequired, body["error"])
}

func TestCheckoutEndpoint_NotConfigured(t *testing.T) {
	api := newTestAPI(t, false)
	status, body := api.call(t, fiber.MethodPost, "/api/v1/billing/checkout", 1, nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, msgConfiguration, body["error"])
}

func TestVerifyAndCancelEndpoints(t *testing.T) {
	api := newTestAPI(t, true)
	p, _ := api.repo.Profile(1)
	started := time.Now().Add(-3 * 24 * time.Hour)
	customer := "cus_1"
	p.StripeCustomerID = &customer
	p.SubscriptionStartedAt = &started
	api.repo.PutProfile(p)
	api.gw.subscriptions["sub_1"] = &billing.Subscription{ID: "sub_1", Customer: "cus_1", Status: "active"}

	status, body := api.call(t, fiber.MethodPost, "/api/v1/billing/verify", 1, map[string]string{})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["is_pro"])
	assert.Equal(t, billing.MessageProActivated, body["message"])

	status, body = api.call(t, fiber.MethodPost, "/api/v1/billing/cancel", 1, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "3 days", body["subscription_duration"])

	status, body = api.call(t, fiber.MethodPost, "/api/v1/billing/cancel", 1, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, msgNoSubscription, body["error"])
}

func TestCancelEndpoint_UpstreamError(t *testing.T) {
	api := newTestAPI(t, true)
	p, _ := api.repo.Profile(1)
	sub := "sub_1"
	p.IsPro = true
	p.StripeSubscriptionID = &sub
	api.repo.PutProfile(p)
	api.gw.cancelErr = &billing.UpstreamError{Op: "cancel subscription", Code: "api_error", Status: 500, Message: "Something went wrong"}

	status, body := api.call(t, fiber.MethodPost, "/api/v1/billing/cancel", 1, nil)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, "Something went wrong", body["error"])

	after, _ := api.repo.Profile(1)
	assert.True(t, after.IsPro)
}

func TestEntitlementEndpoints(t *testing.T) {
	api := newTestAPI(t, true)

	status, body := api.call(t, fiber.MethodGet, "/api/v1/entitlement", 1, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["active"])
	assert.Equal(t, float64(250), body["points"])
	assert.Equal(t, float64(0), body["version"])

	status, body = api.call(t, fiber.MethodPost, "/api/v1/points/redeem", 1, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(50), body["points"])

	status, body = api.call(t, fiber.MethodGet, "/api/v1/entitlement?since_version=0&wait=1", 1, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, float64(1), body["version"])

	status, body = api.call(t, fiber.MethodPost, "/api/v1/points/redeem", 1, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"], "you have 50")

	status, _ = api.call(t, fiber.MethodGet, "/api/v1/entitlement?since_version=abc", 1, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestAdminEndpoints(t *testing.T) {
	api := newTestAPI(t, true)

	status, _ := api.call(t, fiber.MethodPost, "/api/v1/admin/users/1/pro", 1, map[string]bool{"grant": true})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := api.call(t, fiber.MethodPost, "/api/v1/admin/users/1/pro", 2, map[string]bool{"grant": true})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["is_pro"])

	status, _ = api.call(t, fiber.MethodPost, "/api/v1/admin/users/1/pro", 2, map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = api.call(t, fiber.MethodPost, "/api/v1/admin/users/1/points", 2, map[string]int{"delta": -300})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"], "not enough points")

	status, body = api.call(t, fiber.MethodPost, "/api/v1/admin/users/1/points", 2, map[string]int{"delta": 50})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(300), body["points"])

	status, _ = api.call(t, fiber.MethodPost, "/api/v1/admin/users/404/pro", 2, map[string]bool{"grant": false})
	assert.Equal(t, fiber.StatusNotFound, status)

	require.Len(t, api.repo.AdminActions, 2)
}
