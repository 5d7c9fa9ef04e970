package domain

import "time"

// Plan is a subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// IsValidPlan reports whether p is a known plan.
func IsValidPlan(p Plan) bool {
	return p == PlanFree || p == PlanPro
}

// Profile is an application user.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Plan         Plan      `json:"plan"`
	CustomerID   string    `json:"customer_id,omitempty"`
	PasswordHash string    `json:"-"`
	OIDCIssuer   string    `json:"-"`
	OIDCSubject  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProfilePatch holds a partial profile update.
type ProfilePatch struct {
	DisplayName *string `json:"display_name,omitempty"`
	Plan        *Plan   `json:"-"`
	CustomerID  *string `json:"-"`
}
