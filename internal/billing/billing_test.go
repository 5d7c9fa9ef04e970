package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tripplanner/internal/domain"
	"tripplanner/internal/gateway"
	"tripplanner/internal/observability"
	"tripplanner/internal/storage"
)

type fakePayments struct {
	checkout gateway.CheckoutRequest
	portal   string
	sub      gateway.Result[gateway.Subscription]
	err      error
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, req gateway.CheckoutRequest) (gateway.Session, error) {
	f.checkout = req
	if f.err != nil {
		return gateway.Session{}, f.err
	}
	return gateway.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil
}

func (f *fakePayments) CreatePortalSession(_ context.Context, customerID string) (gateway.Session, error) {
	f.portal = customerID
	return gateway.Session{ID: "bps_1", URL: "https://pay.example/portal"}, nil
}

func (f *fakePayments) SubscriptionStatus(context.Context, string) gateway.Result[gateway.Subscription] {
	return f.sub
}

func newService(t *testing.T, cfg Config) (*Service, *storage.MemoryStore, *fakePayments) {
	t.Helper()
	store := storage.NewMemoryStore()
	pay := &fakePayments{}
	return NewService(cfg, store, pay, observability.Discard()), store, pay
}

func newProfile(t *testing.T, store *storage.MemoryStore, plan domain.Plan) domain.Profile {
	t.Helper()
	p, err := store.CreateProfile(context.Background(), domain.Profile{Email: fmt.Sprintf("%s-%d@example.com", plan, time.Now().UnixNano()), Plan: plan})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCatalog(t *testing.T) {
	c := NewCatalog(DefaultConfig())
	plans := c.Plans()
	if len(plans) != 2 || plans[0].ID != domain.PlanFree || plans[1].ID != domain.PlanPro {
		t.Fatalf("plans = %+v", plans)
	}
	if !plans[1].Price.Equal(decimal.RequireFromString("19.00")) || plans[1].Price.StringFixed(2) != "19.00" {
		t.Errorf("pro price = %s", plans[1].Price)
	}
	if plans[0].MonthlyTrips != 3 || plans[0].Has(FeaturePDFExport) || plans[0].Has(FeatureSharing) {
		t.Errorf("free plan = %+v", plans[0])
	}
	for _, f := range []Feature{FeatureUnlimitedTrips, FeaturePDFExport, FeatureSharing} {
		if !plans[1].Has(f) {
			t.Errorf("pro plan missing %s", f)
		}
	}
	if c.Lookup("enterprise").ID != domain.PlanFree {
		t.Error("unknown plans should resolve to free")
	}
	if p, ok := c.PlanForPrice("price_1234567890"); !ok || p.ID != domain.PlanPro {
		t.Errorf("PlanForPrice = %+v, %v", p, ok)
	}
	if _, ok := c.PlanForPrice(""); ok {
		t.Error("empty price should not match")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STRIPE_PRO_PRICE_ID", "price_pro")
	t.Setenv("TRIPPLANNER_FREE_MONTHLY_TRIPS", "5")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ProPriceID != "price_pro" || cfg.FreeMonthlyTrips != 5 || cfg.WebhookTolerance != 5*time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
	t.Setenv("TRIPPLANNER_FREE_MONTHLY_TRIPS", "-1")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("expected error for negative quota")
	}
}

func TestCreateTripQuota(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(t, DefaultConfig())
	free := newProfile(t, store, domain.PlanFree)

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateTrip(ctx, free.ID, domain.TripInput{Destination: "Rome"}); err != nil {
			t.Fatalf("trip %d: %v", i+1, err)
		}
	}
	if _, err := svc.CreateTrip(ctx, free.ID, domain.TripInput{Destination: "Rome"}); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("fourth trip err = %v, want ErrQuotaExceeded", err)
	}

	pro := newProfile(t, store, domain.PlanPro)
	for i := 0; i < 5; i++ {
		if _, err := svc.CreateTrip(ctx, pro.ID, domain.TripInput{}); err != nil {
			t.Fatalf("pro trip %d: %v", i+1, err)
		}
	}

	if _, err := svc.CreateTrip(ctx, "", domain.TripInput{}); !errors.Is(err, storage.ErrNotAuthenticated) {
		t.Errorf("anonymous err = %v", err)
	}
	if _, err := svc.CreateTrip(ctx, "ghost", domain.TripInput{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown profile err = %v", err)
	}
}

func TestRequire(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(t, DefaultConfig())
	free := newProfile(t, store, domain.PlanFree)
	pro := newProfile(t, store, domain.PlanPro)

	if err := svc.Require(ctx, free.ID, FeaturePDFExport); !errors.Is(err, ErrFeatureLocked) {
		t.Errorf("free pdf export err = %v", err)
	}
	if err := svc.Require(ctx, pro.ID, FeatureSharing); err != nil {
		t.Errorf("pro sharing err = %v", err)
	}
}

func TestCheckoutPortalSubscription(t *testing.T) {
	ctx := context.Background()
	svc, store, pay := newService(t, DefaultConfig())
	p := newProfile(t, store, domain.PlanFree)

	s, err := svc.Checkout(ctx, p)
	if err != nil || s.URL == "" {
		t.Fatalf("Checkout = %+v, %v", s, err)
	}
	if pay.checkout.PriceID != "price_1234567890" || pay.checkout.UserID != p.ID || pay.checkout.CustomerEmail != p.Email {
		t.Errorf("checkout request = %+v", pay.checkout)
	}

	if _, err := svc.Portal(ctx, p); !errors.Is(err, ErrNoCustomer) {
		t.Errorf("portal without customer err = %v", err)
	}
	p.CustomerID = "cus_1"
	if _, err := svc.Portal(ctx, p); err != nil || pay.portal != "cus_1" {
		t.Errorf("portal err = %v customer = %q", err, pay.portal)
	}

	pay.sub = gateway.Result[gateway.Subscription]{Data: gateway.Subscription{Status: gateway.SubscriptionInactive}, Fallback: true}
	view := svc.Subscription(ctx, p)
	if view.Subscription.Status != gateway.SubscriptionInactive || !view.Degraded || view.Plan.ID != domain.PlanFree {
		t.Errorf("view = %+v", view)
	}
	p.CustomerID = ""
	if view := svc.Subscription(ctx, p); view.Degraded || view.Subscription.Status != gateway.SubscriptionInactive {
		t.Errorf("view without customer = %+v", view)
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1_700_000_000, 0)
	header := SignatureHeader(payload, "whsec", now)

	if err := VerifySignature(payload, header, "whsec", 5*time.Minute, now.Add(time.Minute)); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
	tests := map[string]struct {
		payload []byte
		header  string
		secret  string
		at      time.Time
	}{
		"tampered":     {[]byte(`{"id":"evt_2"}`), header, "whsec", now},
		"wrong secret": {payload, header, "other", now},
		"no secret":    {payload, header, "", now},
		"stale":        {payload, header, "whsec", now.Add(10 * time.Minute)},
		"malformed":    {payload, "garbage", "whsec", now},
		"bad hex":      {payload, "t=1700000000,v1=zz", "whsec", now},
	}
	for name, tt := range tests {
		if err := VerifySignature(tt.payload, tt.header, tt.secret, 5*time.Minute, tt.at); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("%s: err = %v, want ErrInvalidSignature", name, err)
		}
	}
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.WebhookSecret = "whsec"
	svc, store, _ := newService(t, cfg)
	p := newProfile(t, store, domain.PlanFree)
	now := time.Now()

	send := func(body string) (Event, error) {
		return svc.HandleWebhook(ctx, []byte(body), SignatureHeader([]byte(body), "whsec", now), now)
	}

	completed := fmt.Sprintf(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"client_reference_id":%q,"customer":"cus_9"}}}`, p.ID)
	if _, err := send(completed); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetProfile(ctx, p.ID)
	if got.Plan != domain.PlanPro || got.CustomerID != "cus_9" {
		t.Errorf("after checkout profile = %+v", got)
	}

	if _, err := send(`{"id":"evt_2","type":"customer.subscription.updated","data":{"object":{"customer":"cus_9","status":"past_due"}}}`); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetProfile(ctx, p.ID)
	if got.Plan != domain.PlanFree {
		t.Errorf("past_due should downgrade, plan = %s", got.Plan)
	}

	if _, err := send(`{"id":"evt_3","type":"customer.subscription.updated","data":{"object":{"customer":"cus_9","status":"active","items":{"data":[{"price":{"id":"price_1234567890"}}]}}}}`); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetProfile(ctx, p.ID)
	if got.Plan != domain.PlanPro {
		t.Errorf("active should upgrade, plan = %s", got.Plan)
	}

	if _, err := send(`{"id":"evt_4","type":"customer.subscription.deleted","data":{"object":{"customer":"cus_9"}}}`); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetProfile(ctx, p.ID)
	if got.Plan != domain.PlanFree {
		t.Errorf("after deletion plan = %s", got.Plan)
	}

	ev, err := send(`{"id":"evt_5","type":"invoice.paid","data":{"object":{}}}`)
	if err != nil || ev.Type != "invoice.paid" {
		t.Errorf("ignored event = %+v, %v", ev, err)
	}

	if _, err := send(`{"id":"evt_6","type":"customer.subscription.deleted","data":{"object":{"customer":"cus_unknown"}}}`); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown customer err = %v", err)
	}
	if _, err := send(`{"id":"evt_7","type":"checkout.session.completed","data":{"object":{}}}`); err == nil {
		t.Error("checkout without user reference should fail")
	}
	if _, err := svc.HandleWebhook(ctx, []byte(completed), "t=1,v1=00", now); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("bad signature err = %v", err)
	}
}
