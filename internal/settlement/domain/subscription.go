package domain

import "time"

const PlanFree = "free"

type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionPastDue SubscriptionStatus = "past_due"
)

// Subscription tracks a seller's billing plan. A past-due subscription
// keeps its features until GracePeriodEnd; the sweep downgrades it to
// the free plan once that elapses.
type Subscription struct {
	ID             int64
	SellerID       int64
	Plan           string
	Status         SubscriptionStatus
	GracePeriodEnd *time.Time
	UpdatedAt      time.Time
}

// GraceExpired reports whether the grace window has elapsed.
func (s *Subscription) GraceExpired(now time.Time) bool {
	return s.Status == SubscriptionPastDue && s.GracePeriodEnd != nil && now.After(*s.GracePeriodEnd)
}
