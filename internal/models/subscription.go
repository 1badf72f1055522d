package models

import "time"

type PlanType string

const (
	PlanTypeMonthly PlanType = "monthly"
	PlanTypeYearly  PlanType = "yearly"
)

func (p PlanType) Valid() bool {
	return p == PlanTypeMonthly || p == PlanTypeYearly
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is one row of the immutable payment audit trail. The users
// table references the latest record by id; the record itself is never
// rewritten apart from the cancelled marker.
type Subscription struct {
	ID          string
	UserID      string
	PlanType    PlanType
	Amount      int64 // smallest currency unit (paise)
	Status      SubscriptionStatus
	StartDate   time.Time
	EndDate     time.Time
	OrderID     string
	PaymentID   string
	Signature   string
	CancelledAt *time.Time
	CreatedAt   time.Time
}
