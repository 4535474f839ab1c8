package model

import "time"

// Subscription plans.
const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// Subscription is a user's current billing plan.
type Subscription struct {
	UserID    string     `json:"userId"`
	Plan      string     `json:"plan"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Active reports whether the subscription grants paid access at t.
func (s *Subscription) Active(t time.Time) bool {
	if s == nil || s.Plan == PlanFree || s.Status != "active" {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(t)
}
