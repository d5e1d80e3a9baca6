package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

func TestHandleWebhook_CheckoutThenFirstInvoiceGrantsPro(t *testing.T) {
	svc, repo, _ := newTestService(t, models.Profile{ID: 1, Username: "alice"})
	start := time.Now()

	deliver(t, svc, "evt_1", EventCheckoutSessionCompleted, start, checkoutObject("1", "cus_1", "sub_1"))
	res := deliver(t, svc, "evt_2", EventInvoicePaymentSucceeded, start, invoiceObject("in_1", "cus_1", "sub_1", "subscription_create"))
	assert.Equal(t, models.WebhookOutcomeApplied, res.Outcome)

	p, _ := repo.Profile(1)
	require.True(t, p.IsPro)
	require.NotNil(t, p.SubscriptionExpiresAt)
	assert.False(t, p.SubscriptionExpiresAt.Before(start.Truncate(time.Second)))
	assert.False(t, p.SubscriptionExpiresAt.After(time.Now().Add(ProPeriod)))
	assert.Equal(t, "sub_1", p.SubscriptionID())
	assert.Equal(t, "cus_1", p.CustomerID())
	assert.NotNil(t, p.SubscriptionStartedAt)
}

func TestHandleWebhook_InvoiceBeforeCheckoutResolvesByMetadata(t *testing.T) {
	svc, repo, _ := newTestService(t, models.Profile{ID: 3, Username: "carol"})
	now := time.Now()

	inv := invoiceObject("in_1", "cus_3", "sub_3", "subscription_create")
	inv["parent"].(map[string]interface{})["subscription_details"].(map[string]interface{})["metadata"] = map[string]string{"user_id": "3"}
	res := deliver(t, svc, "evt_1", EventInvoicePaymentSucceeded, now, inv)
	assert.Equal(t, models.WebhookOutcomeApplied, res.Outcome)

	p, _ := repo.Profile(3)
	assert.True(t, p.IsPro)
	assert.Equal(t, "sub_3", p.SubscriptionID())
}

func TestHandleWebhook_SubscriptionDeletedAlwaysRevokes(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)
	expires := now.Add(ProPeriod)

	states := []models.Profile{
		{ID: 1, IsPro: true, SubscriptionExpiresAt: &expires, StripeSubscriptionID: strPtr("sub_1")},
		{ID: 1, IsPro: false, StripeSubscriptionID: strPtr("sub_1")},
		// Newer state than the deletion event itself.
		{ID: 1, IsPro: true, SubscriptionExpiresAt: &expires, StripeSubscriptionID: strPtr("sub_1"), LastEventAt: &later, EntitlementVersion: 9},
	}
	for i, state := range states {
		svc, repo, _ := newTestService(t, state)
		deliver(t, svc, "evt_del", EventSubscriptionDeleted, now, subscriptionObject("sub_1", "cus_1", "canceled", now))

		p, _ := repo.Profile(1)
		assert.False(t, p.IsPro, "state %d", i)
		assert.Nil(t, p.StripeSubscriptionID, "state %d", i)
		assert.Nil(t, p.SubscriptionExpiresAt, "state %d", i)
	}
}

func TestHandleWebhook_DuplicateDeliveryIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(t, models.Profile{ID: 1})
	created := time.Now().Add(-time.Minute)
	payload, header := signedEvent(t, "evt_dup", EventCheckoutSessionCompleted, created, checkoutObject("1", "cus_1", "sub_1"))

	first, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	once, _ := repo.Profile(1)

	second, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	twice, _ := repo.Profile(1)

	assert.Equal(t, once, twice)
	assert.Len(t, repo.Events(), 1)
}

func TestHandleWebhook_RedeliveryAfterLogLossConverges(t *testing.T) {
	created := time.Now().Add(-time.Minute)
	svc, repo, _ := newTestService(t, models.Profile{ID: 1})
	deliver(t, svc, "evt_a", EventCheckoutSessionCompleted, created, checkoutObject("1", "cus_1", "sub_1"))
	once, _ := repo.Profile(1)

	// Same event under a new delivery id: the reducer alone must converge.
	deliver(t, svc, "evt_b", EventCheckoutSessionCompleted, created, checkoutObject("1", "cus_1", "sub_1"))
	twice, _ := repo.Profile(1)
	assert.Equal(t, once, twice)
}

func TestHandleWebhook_OutOfOrderFailureDoesNotRevoke(t *testing.T) {
	now := time.Now()
	svc, repo, _ := newTestService(t, models.Profile{ID: 1, StripeSubscriptionID: strPtr("sub_1"), StripeCustomerID: strPtr("cus_1")})

	deliver(t, svc, "evt_new", EventSubscriptionUpdated, now, subscriptionObject("sub_1", "cus_1", "active", now.Add(ProPeriod)))
	res := deliver(t, svc, "evt_old", EventInvoicePaymentFailed, now.Add(-10*time.Minute), invoiceObject("in_old", "cus_1", "sub_1", "subscription_cycle"))
	assert.Equal(t, models.WebhookOutcomeStale, res.Outcome)

	p, _ := repo.Profile(1)
	assert.True(t, p.IsPro)
	require.NotNil(t, p.SubscriptionExpiresAt)
	assert.Equal(t, now.Add(ProPeriod).Unix(), p.SubscriptionExpiresAt.Unix())
}

func TestHandleWebhook_SubscriptionUpdatedTransitions(t *testing.T) {
	now := time.Now()
	for _, status := range []string{"canceled", "unpaid", "past_due"} {
		expires := now.Add(ProPeriod)
		svc, repo, _ := newTestService(t, models.Profile{ID: 1, IsPro: true, SubscriptionExpiresAt: &expires, StripeSubscriptionID: strPtr("sub_1")})
		deliver(t, svc, "evt_"+status, EventSubscriptionUpdated, now, subscriptionObject("sub_1", "cus_1", status, now))

		p, _ := repo.Profile(1)
		assert.False(t, p.IsPro, status)
		assert.Nil(t, p.SubscriptionExpiresAt, status)
		assert.Equal(t, "sub_1", p.SubscriptionID(), status)
	}

	svc, repo, _ := newTestService(t, models.Profile{ID: 1, StripeSubscriptionID: strPtr("sub_1")})
	res := deliver(t, svc, "evt_incomplete", EventSubscriptionUpdated, now, subscriptionObject("sub_1", "cus_1", "incomplete", now))
	assert.Equal(t, models.WebhookOutcomeIgnored, res.Outcome)
	p, _ := repo.Profile(1)
	assert.Equal(t, uint64(0), p.EntitlementVersion)
}

func TestHandleWebhook_SubscriptionCreatedMatchesCustomer(t *testing.T) {
	now := time.Now()
	svc, repo, _ := newTestService(t, models.Profile{ID: 4, StripeCustomerID: strPtr("cus_4")})

	res := deliver(t, svc, "evt_trial", EventSubscriptionCreated, now, subscriptionObject("sub_4", "cus_4", "trialing", now.Add(ProPeriod)))
	assert.Equal(t, models.WebhookOutcomeApplied, res.Outcome)
	p, _ := repo.Profile(4)
	assert.True(t, p.IsPro)
	assert.Equal(t, "sub_4", p.SubscriptionID())

	res = deliver(t, svc, "evt_incomplete", EventSubscriptionCreated, now, subscriptionObject("sub_5", "cus_4", "incomplete", now))
	assert.Equal(t, models.WebhookOutcomeIgnored, res.Outcome)
}

func TestHandleWebhook_UpdateForOtherSubscriptionIsUnmatched(t *testing.T) {
	now := time.Now()
	svc, repo, _ := newTestService(t, models.Profile{ID: 1, StripeSubscriptionID: strPtr("sub_new")})

	obj := subscriptionObject("sub_old", "cus_1", "active", now.Add(ProPeriod))
	obj["metadata"] = map[string]string{"user_id": "1"}
	res := deliver(t, svc, "evt_old_sub", EventSubscriptionUpdated, now, obj)
	assert.Equal(t, models.WebhookOutcomeUnmatched, res.Outcome)

	p, _ := repo.Profile(1)
	assert.False(t, p.IsPro)
	assert.Equal(t, "sub_new", p.SubscriptionID())
}

func TestHandleWebhook_UnmatchedAndUnknownAreAcknowledged(t *testing.T) {
	svc, repo, _ := newTestService(t)
	now := time.Now()

	res := deliver(t, svc, "evt_nouser", EventCheckoutSessionCompleted, now, checkoutObject("99", "cus_x", "sub_x"))
	assert.Equal(t, models.WebhookOutcomeUnmatched, res.Outcome)

	res = deliver(t, svc, "evt_other", "customer.created", now, map[string]string{"id": "cus_x"})
	assert.Equal(t, models.WebhookOutcomeIgnored, res.Outcome)

	for _, e := range repo.Events() {
		assert.NotNil(t, e.ProcessedAt)
		assert.True(t, e.SignatureValid)
	}
}

func TestHandleWebhook_UnpaidCheckoutIgnored(t *testing.T) {
	svc, repo, _ := newTestService(t, models.Profile{ID: 1})
	obj := checkoutObject("1", "cus_1", "sub_1")
	obj["payment_status"] = "unpaid"

	res := deliver(t, svc, "evt_unpaid", EventCheckoutSessionCompleted, time.Now(), obj)
	assert.Equal(t, models.WebhookOutcomeIgnored, res.Outcome)
	p, _ := repo.Profile(1)
	assert.False(t, p.IsPro)
}

func TestHandleWebhook_InvalidSignatureLeavesStateUnchanged(t *testing.T) {
	svc, repo, _ := newTestService(t, models.Profile{ID: 1})
	before, _ := repo.Profile(1)

	payload, _ := signedEvent(t, "evt_forged", EventCheckoutSessionCompleted, time.Now(), checkoutObject("1", "cus_1", "sub_1"))
	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_wrong",
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	_, err := svc.HandleWebhook(context.Background(), forged.Payload, forged.Header)
	require.ErrorIs(t, err, ErrSignatureVerification)

	_, err = svc.HandleWebhook(context.Background(), payload, "")
	require.ErrorIs(t, err, ErrSignatureVerification)

	after, _ := repo.Profile(1)
	assert.Equal(t, before, after)
	assert.Empty(t, repo.Events())
}

func TestHandleWebhook_MissingSecretIsConfigurationError(t *testing.T) {
	repo := NewMemoryRepository(models.Profile{ID: 1})
	svc := NewService(repo, newFakeGateway(), Config{})
	payload, header := signedEvent(t, "evt_1", EventCheckoutSessionCompleted, time.Now(), checkoutObject("1", "cus_1", "sub_1"))

	_, err := svc.HandleWebhook(context.Background(), payload, header)
	require.True(t, errors.Is(err, ErrConfiguration))
	p, _ := repo.Profile(1)
	assert.False(t, p.IsPro)
}

func TestHandleWebhook_CountsPromoCodeUse(t *testing.T) {
	svc, repo, _ := newTestService(t, models.Profile{ID: 1})
	require.NoError(t, repo.SavePromoCode(context.Background(), &models.PromoCode{Code: "SPRING", DiscountPercent: 20, IsActive: true}))

	obj := checkoutObject("1", "cus_1", "sub_1")
	obj["metadata"] = map[string]string{"user_id": "1", "promo_code": "SPRING"}
	deliver(t, svc, "evt_promo", EventCheckoutSessionCompleted, time.Now(), obj)

	pc, err := repo.FindPromoCode(context.Background(), "spring")
	require.NoError(t, err)
	assert.Equal(t, 1, pc.TimesUsed)
}
