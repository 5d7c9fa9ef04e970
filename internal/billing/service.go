package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tripplanner/internal/domain"
	"tripplanner/internal/gateway"
	"tripplanner/internal/observability"
	"tripplanner/internal/storage"
)

// Payments is the payment provider surface billing uses.
type Payments interface {
	CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (gateway.Session, error)
	CreatePortalSession(ctx context.Context, customerID string) (gateway.Session, error)
	SubscriptionStatus(ctx context.Context, customerID string) gateway.Result[gateway.Subscription]
}

// Store is the persistence billing needs.
type Store interface {
	storage.ProfileStore
	CreateTrip(ctx context.Context, ownerID string, in domain.TripInput) (domain.Trip, error)
	TripStats(ctx context.Context, ownerID string) (domain.TripStats, error)
}

// Service enforces plans and talks to the payment provider.
type Service struct {
	cfg      Config
	catalog  *Catalog
	store    Store
	payments Payments
	logger   observability.Logger

	// createMu serializes quota checks with trip creation.
	createMu sync.Mutex
}

// NewService creates a billing Service.
func NewService(cfg Config, store Store, payments Payments, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &Service{
		cfg:      cfg,
		catalog:  NewCatalog(cfg),
		store:    store,
		payments: payments,
		logger:   logger.WithComponent("billing"),
	}
}

// Catalog returns the plan catalogue.
func (s *Service) Catalog() *Catalog { return s.catalog }

// PlanOf returns the plan of the profile with id.
func (s *Service) PlanOf(ctx context.Context, ownerID string) (Plan, error) {
	if ownerID == "" {
		return Plan{}, storage.ErrNotAuthenticated
	}
	p, err := s.store.GetProfile(ctx, ownerID)
	if err != nil {
		return Plan{}, err
	}
	return s.catalog.Lookup(p.Plan), nil
}

// Require returns ErrFeatureLocked unless the owner's plan includes f.
func (s *Service) Require(ctx context.Context, ownerID string, f Feature) error {
	plan, err := s.PlanOf(ctx, ownerID)
	if err != nil {
		return err
	}
	if !plan.Has(f) {
		return fmt.Errorf("%s: %w", f, ErrFeatureLocked)
	}
	return nil
}

// checkQuota must be called with createMu held.
func (s *Service) checkQuota(ctx context.Context, ownerID string) error {
	plan, err := s.PlanOf(ctx, ownerID)
	if err != nil {
		return err
	}
	if plan.Has(FeatureUnlimitedTrips) || plan.MonthlyTrips == 0 {
		return nil
	}
	stats, err := s.store.TripStats(ctx, ownerID)
	if err != nil {
		return err
	}
	if stats.CreatedThisMonth >= plan.MonthlyTrips {
		return fmt.Errorf("%d of %d trips used: %w", stats.CreatedThisMonth, plan.MonthlyTrips, ErrQuotaExceeded)
	}
	return nil
}

// CreateTrip creates a trip when the owner's plan allows another one this
// month.
func (s *Service) CreateTrip(ctx context.Context, ownerID string, in domain.TripInput) (domain.Trip, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()
	if err := s.checkQuota(ctx, ownerID); err != nil {
		return domain.Trip{}, err
	}
	return s.store.CreateTrip(ctx, ownerID, in)
}

// Checkout starts a pro subscription checkout for the profile.
func (s *Service) Checkout(ctx context.Context, p domain.Profile) (gateway.Session, error) {
	return s.payments.CreateCheckoutSession(ctx, gateway.CheckoutRequest{
		PriceID:       s.cfg.ProPriceID,
		UserID:        p.ID,
		CustomerID:    p.CustomerID,
		CustomerEmail: p.Email,
	})
}

// Portal opens the billing portal for the profile.
func (s *Service) Portal(ctx context.Context, p domain.Profile) (gateway.Session, error) {
	if p.CustomerID == "" {
		return gateway.Session{}, ErrNoCustomer
	}
	return s.payments.CreatePortalSession(ctx, p.CustomerID)
}

// SubscriptionView is the billing state shown to a user.
type SubscriptionView struct {
	Plan         Plan                 `json:"plan"`
	Subscription gateway.Subscription `json:"subscription"`
	Degraded     bool                 `json:"degraded,omitempty"`
}

// Subscription reports the profile's plan and provider subscription.
func (s *Service) Subscription(ctx context.Context, p domain.Profile) SubscriptionView {
	view := SubscriptionView{
		Plan:         s.catalog.Lookup(p.Plan),
		Subscription: gateway.Subscription{Status: gateway.SubscriptionInactive},
	}
	if p.CustomerID == "" {
		return view
	}
	res := s.payments.SubscriptionStatus(ctx, p.CustomerID)
	view.Subscription = res.Data
	view.Degraded = res.Fallback
	return view
}

// setPlan changes the profile's plan, recording the customer when known.
func (s *Service) setPlan(ctx context.Context, profileID string, plan domain.Plan, customerID string) (domain.Profile, error) {
	patch := domain.ProfilePatch{Plan: &plan}
	if customerID != "" {
		patch.CustomerID = &customerID
	}
	p, err := s.store.UpdateProfile(ctx, profileID, patch)
	if err != nil {
		return domain.Profile{}, err
	}
	s.logger.InfoContext(ctx, "plan changed", "profile_id", profileID, "plan", plan)
	return p, nil
}

func (s *Service) profileForCustomer(ctx context.Context, customerID string) (domain.Profile, error) {
	p, err := s.store.GetProfileByCustomerID(ctx, customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Profile{}, fmt.Errorf("customer %s: %w", customerID, storage.ErrNotFound)
	}
	return p, err
}
