package billing

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/coupon"
	"github.com/stripe/stripe-go/v82/promotioncode"
	"github.com/stripe/stripe-go/v82/subscription"
)

// StripeGateway implements Gateway with the stripe-go package clients.
type StripeGateway struct {
	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getCheckoutSession    func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSubscription       func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	cancelSubscription    func(id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error)
	createCoupon          func(params *stripe.CouponParams) (*stripe.Coupon, error)
	createPromotionCode   func(params *stripe.PromotionCodeParams) (*stripe.PromotionCode, error)
}

// NewStripeGateway configures the global stripe key and returns a gateway.
// An empty key yields ErrConfiguration.
func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, ErrConfiguration
	}
	stripe.Key = key
	return &StripeGateway{
		createCheckoutSession: stripesession.New,
		getCheckoutSession:    stripesession.Get,
		getSubscription:       subscription.Get,
		cancelSubscription:    subscription.Cancel,
		createCoupon:          coupon.New,
		createPromotionCode:   promotioncode.New,
	}, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	userID := strconv.FormatUint(uint64(req.UserID), 10)
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.ProductName),
						Description: stripe.String(req.ProductDesc),
					},
					UnitAmount: stripe.Int64(req.UnitAmount),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(req.RecurringInterval),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(userID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	if req.PromoCode != "" {
		params.AddMetadata("promo_code", req.PromoCode)
	}
	switch {
	case req.CustomerID != "":
		params.Customer = stripe.String(req.CustomerID)
	case req.Email != "":
		params.CustomerEmail = stripe.String(req.Email)
	}
	if req.PromotionCodeID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{PromotionCode: stripe.String(req.PromotionCodeID)},
		}
	} else {
		params.AllowPromotionCodes = stripe.Bool(true)
	}

	s, err := g.createCheckoutSession(params)
	if err != nil {
		return nil, wrapStripeError("create checkout session", err)
	}
	return fromStripeSession(s), nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.getCheckoutSession(id, params)
	if err != nil {
		return nil, wrapStripeError("get checkout session", err)
	}
	return fromStripeSession(s), nil
}

func (g *StripeGateway) ListCheckoutSessions(ctx context.Context, customerID string, limit int) ([]CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))
	params.Single = true

	var out []CheckoutSession
	it := stripesession.List(params)
	for it.Next() && len(out) < limit {
		out = append(out, *fromStripeSession(it.CheckoutSession()))
	}
	if err := it.Err(); err != nil {
		return nil, wrapStripeError("list checkout sessions", err)
	}
	return out, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := g.getSubscription(id, params)
	if err != nil {
		return nil, wrapStripeError("get subscription", err)
	}
	return fromStripeSubscription(s), nil
}

func (g *StripeGateway) ListSubscriptions(ctx context.Context, customerID string, limit int) ([]Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))
	params.Single = true

	var out []Subscription
	it := subscription.List(params)
	for it.Next() && len(out) < limit {
		out = append(out, *fromStripeSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, wrapStripeError("list subscriptions", err)
	}
	return out, nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, id string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := g.cancelSubscription(id, params); err != nil {
		return wrapStripeError("cancel subscription", err)
	}
	return nil
}

func (g *StripeGateway) FindPromotionCode(ctx context.Context, code string) (string, error) {
	params := &stripe.PromotionCodeListParams{
		Code:   stripe.String(code),
		Active: stripe.Bool(true),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	it := promotioncode.List(params)
	if it.Next() {
		return it.PromotionCode().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", wrapStripeError("list promotion codes", err)
	}
	return "", nil
}

func (g *StripeGateway) CreateCoupon(ctx context.Context, code string, percentOff float64) (string, error) {
	params := &stripe.CouponParams{
		PercentOff: stripe.Float64(percentOff),
		Duration:   stripe.String(string(stripe.CouponDurationForever)),
		Name:       stripe.String(code),
	}
	params.Context = ctx
	c, err := g.createCoupon(params)
	if err != nil {
		return "", wrapStripeError("create coupon", err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreatePromotionCode(ctx context.Context, couponID, code string, maxRedemptions int) (string, error) {
	params := &stripe.PromotionCodeParams{
		Coupon: stripe.String(couponID),
		Code:   stripe.String(code),
	}
	if maxRedemptions > 0 {
		params.MaxRedemptions = stripe.Int64(int64(maxRedemptions))
	}
	params.Context = ctx
	pc, err := g.createPromotionCode(params)
	if err != nil {
		return "", wrapStripeError("create promotion code", err)
	}
	return pc.ID, nil
}

func fromStripeSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:                s.ID,
		URL:               s.URL,
		Mode:              string(s.Mode),
		PaymentStatus:     string(s.PaymentStatus),
		ClientReferenceID: s.ClientReferenceID,
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		out.Customer = s.Customer.ID
	}
	if s.Subscription != nil {
		out.Subscription = s.Subscription.ID
	}
	return out
}

func fromStripeSubscription(s *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:       s.ID,
		Status:   string(s.Status),
		Metadata: s.Metadata,
	}
	if s.Customer != nil {
		out.Customer = s.Customer.ID
	}
	if s.Items != nil {
		for _, item := range s.Items.Data {
			out.Items.Data = append(out.Items.Data, SubscriptionItem{CurrentPeriodEnd: item.CurrentPeriodEnd})
		}
	}
	return out
}

func wrapStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		msg := strings.TrimSpace(se.Msg)
		if msg == "" {
			msg = "payment processor rejected the request"
		}
		return &UpstreamError{Op: op, Code: string(se.Code), Status: se.HTTPStatusCode, Message: msg, Err: err}
	}
	return &UpstreamError{Op: op, Message: "payment processor unavailable", Err: err}
}
