// Package billing holds the plan catalogue, the monthly trip quota and
// subscription webhooks.
package billing

import (
	"errors"

	"github.com/shopspring/decimal"

	"tripplanner/internal/domain"
)

var (
	// ErrQuotaExceeded is returned when a free account has used its monthly
	// trips.
	ErrQuotaExceeded = errors.New("monthly trip quota exceeded")
	// ErrFeatureLocked is returned when the account's plan lacks a feature.
	ErrFeatureLocked = errors.New("feature requires the pro plan")
	// ErrNoCustomer is returned for portal requests by accounts that never
	// subscribed.
	ErrNoCustomer = errors.New("account has no billing customer")
)

// Feature is a capability gated by plan.
type Feature string

const (
	FeatureUnlimitedTrips Feature = "unlimited_trips"
	FeaturePDFExport      Feature = "pdf_export"
	FeatureSharing        Feature = "sharing"
)

// Plan describes a subscription tier.
type Plan struct {
	ID          domain.Plan     `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Period      string          `json:"period"`
	PriceID     string          `json:"price_id,omitempty"`
	// MonthlyTrips limits trip creation per calendar month; 0 is unlimited.
	MonthlyTrips int       `json:"monthly_trips"`
	Gates        []Feature `json:"gates"`
	Highlights   []string  `json:"features"`
}

// Has reports whether the plan includes f.
func (p Plan) Has(f Feature) bool {
	for _, g := range p.Gates {
		if g == f {
			return true
		}
	}
	return false
}

// Catalog is the set of plans on offer.
type Catalog struct {
	plans []Plan
}

// NewCatalog builds the free and pro plans from cfg.
func NewCatalog(cfg Config) *Catalog {
	return &Catalog{plans: []Plan{
		{
			ID:           domain.PlanFree,
			Name:         "Free",
			Description:  "Perfect for trying out our AI travel assistant",
			Price:        decimal.Zero,
			Period:       "month",
			MonthlyTrips: cfg.FreeMonthlyTrips,
			Highlights: []string{
				"3 trips per month",
				"Basic AI chat support",
				"Standard itinerary generation",
				"Basic maps integration",
			},
		},
		{
			ID:          domain.PlanPro,
			Name:        "Pro",
			Description: "Everything you need for unlimited travel planning",
			Price:       decimal.New(1900, -2),
			Period:      "month",
			PriceID:     cfg.ProPriceID,
			Gates:       []Feature{FeatureUnlimitedTrips, FeaturePDFExport, FeatureSharing},
			Highlights: []string{
				"Unlimited trips",
				"Advanced AI with real-time data",
				"PDF export & trip sharing",
				"Real-time flight & hotel prices",
				"Weather forecasts & safety alerts",
			},
		},
	}}
}

// Plans returns every plan, cheapest first.
func (c *Catalog) Plans() []Plan {
	return append([]Plan(nil), c.plans...)
}

// Lookup returns the plan with id. Unknown ids resolve to the free plan.
func (c *Catalog) Lookup(id domain.Plan) Plan {
	for _, p := range c.plans {
		if p.ID == id {
			return p
		}
	}
	return c.plans[0]
}

// PlanForPrice maps a payment provider price to a plan.
func (c *Catalog) PlanForPrice(priceID string) (Plan, bool) {
	for _, p := range c.plans {
		if p.PriceID != "" && p.PriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}
