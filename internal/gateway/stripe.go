package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// KindSubscription reads a customer's subscription. Like the data kinds it
// degrades instead of failing: any error reports an inactive subscription.
const KindSubscription Kind = "subscription"

// CheckoutRequest starts a subscription checkout.
type CheckoutRequest struct {
	PriceID       string `json:"price_id"`
	UserID        string `json:"user_id"`
	CustomerID    string `json:"customer_id,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

// Session is a hosted payment page the user is redirected to.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Subscription is the billing state of a customer.
type Subscription struct {
	ID                string `json:"id,omitempty"`
	Status            string `json:"status"`
	PriceID           string `json:"price_id,omitempty"`
	CurrentPeriodEnd  int64  `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end,omitempty"`
}

// SubscriptionInactive is reported when no subscription can be read.
const SubscriptionInactive = "inactive"

func (g *Gateway) stripeDo(ctx context.Context, method, path string, form url.Values, out any) error {
	if g.cfg.StripeSecretKey == "" {
		return fmt.Errorf("stripe: %w", ErrCredentialsMissing)
	}
	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, g.cfg.StripeBaseURL+path+"?"+form.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, g.cfg.StripeBaseURL+path, strings.NewReader(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return fmt.Errorf("stripe: build request: %w", err)
	}
	req.SetBasicAuth(g.cfg.StripeSecretKey, "")
	return g.do(req, "stripe", out)
}

func (g *Gateway) action(ctx context.Context, kind Kind, fn func() (Session, error)) (Session, error) {
	s, err := fn()
	if err == nil && s.URL == "" {
		err = malformed("stripe", errors.New("session without url"))
	}
	if err != nil {
		g.metrics.RecordProviderCall(string(kind), "error")
		g.logger.ErrorContext(ctx, "payment action failed", "kind", kind, "error", err)
		return Session{}, fmt.Errorf("%s: %w: %w", kind, ErrActionFailed, err)
	}
	g.metrics.RecordProviderCall(string(kind), "ok")
	return s, nil
}

// CreateCheckoutSession creates a hosted subscription checkout. The user is
// sent back to the dashboard on success and to pricing on cancel.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	return g.action(ctx, KindCheckout, func() (Session, error) {
		if req.PriceID == "" || req.UserID == "" {
			return Session{}, fmt.Errorf("%w: price and user are required", ErrInvalidParams)
		}
		form := url.Values{}
		form.Set("mode", "subscription")
		form.Set("line_items[0][price]", req.PriceID)
		form.Set("line_items[0][quantity]", "1")
		form.Set("success_url", g.cfg.AppURL+"/dashboard?success=true")
		form.Set("cancel_url", g.cfg.AppURL+"/pricing?canceled=true")
		form.Set("client_reference_id", req.UserID)
		form.Set("metadata[user_id]", req.UserID)
		switch {
		case req.CustomerID != "":
			form.Set("customer", req.CustomerID)
		case req.CustomerEmail != "":
			form.Set("customer_email", req.CustomerEmail)
		}
		var s Session
		err := g.stripeDo(ctx, http.MethodPost, "/v1/checkout/sessions", form, &s)
		return s, err
	})
}

// CreatePortalSession opens the self-service billing portal for a customer.
func (g *Gateway) CreatePortalSession(ctx context.Context, customerID string) (Session, error) {
	return g.action(ctx, KindBillingPortal, func() (Session, error) {
		if customerID == "" {
			return Session{}, fmt.Errorf("%w: customer is required", ErrInvalidParams)
		}
		form := url.Values{}
		form.Set("customer", customerID)
		form.Set("return_url", g.cfg.AppURL+"/dashboard")
		var s Session
		err := g.stripeDo(ctx, http.MethodPost, "/v1/billing_portal/sessions", form, &s)
		return s, err
	})
}

type stripeSubscriptions struct {
	Data *[]struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		CurrentPeriodEnd  int64  `json:"current_period_end"`
		CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
		Items             struct {
			Data []struct {
				Price struct {
					ID string `json:"id"`
				} `json:"price"`
			} `json:"data"`
		} `json:"items"`
	} `json:"data"`
}

// SubscriptionStatus returns the customer's most recent subscription.
func (g *Gateway) SubscriptionStatus(ctx context.Context, customerID string) Result[Subscription] {
	return fetch(ctx, g, KindSubscription, "", 0, func(ctx context.Context) (Subscription, error) {
		if customerID == "" {
			return Subscription{}, fmt.Errorf("%w: customer is required", ErrInvalidParams)
		}
		q := url.Values{}
		q.Set("customer", customerID)
		q.Set("status", "all")
		q.Set("limit", "1")
		var resp stripeSubscriptions
		if err := g.stripeDo(ctx, http.MethodGet, "/v1/subscriptions", q, &resp); err != nil {
			return Subscription{}, err
		}
		if resp.Data == nil {
			return Subscription{}, malformed("stripe", errors.New("missing data"))
		}
		if len(*resp.Data) == 0 {
			return Subscription{Status: SubscriptionInactive}, nil
		}
		s := (*resp.Data)[0]
		sub := Subscription{
			ID:                s.ID,
			Status:            s.Status,
			CurrentPeriodEnd:  s.CurrentPeriodEnd,
			CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		}
		if len(s.Items.Data) > 0 {
			sub.PriceID = s.Items.Data[0].Price.ID
		}
		return sub, nil
	}, func() Subscription { return Subscription{Status: SubscriptionInactive} })
}
