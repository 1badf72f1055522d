package models

import "time"

type UserRole string

const (
	UserRoleCustomer   UserRole = "customer"
	UserRoleSeller     UserRole = "seller"
	UserRoleRestaurant UserRole = "restaurant"
	UserRoleFreelancer UserRole = "freelancer"
	UserRoleAdmin      UserRole = "admin"
)

// BusinessRoles maps the roles that own a public listing, and therefore
// participate in the trial/subscription lifecycle, to their listing kind.
var BusinessRoles = map[UserRole]ListingKind{
	UserRoleSeller:     ListingKindStore,
	UserRoleRestaurant: ListingKindRestaurant,
	UserRoleFreelancer: ListingKindFreelancer,
}

func (r UserRole) IsBusiness() bool {
	_, ok := BusinessRoles[r]
	return ok
}

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleCustomer, UserRoleSeller, UserRoleRestaurant, UserRoleFreelancer, UserRoleAdmin:
		return true
	}
	return false
}

// SubscriptionState is the per-account subscription sub-record embedded in
// the users table. HasUsedTrial flips false->true exactly once, when the
// account first adopts a business role; it never resets.
type SubscriptionState struct {
	IsSubscribed   bool
	HasUsedTrial   bool
	TrialEndsAt    *time.Time
	ExpiresAt      *time.Time
	CancelledAt    *time.Time
	SubscriptionID *string
}

// VisibleAt reports whether listings owned by this account may be shown
// publicly at the given instant. Paid access runs to ExpiresAt even after a
// cancellation: cancelling only stops renewal, it does not revoke time
// already paid for, so IsSubscribed plays no part here. An unexpired trial
// grants access on its own. The expiry sweep and the visibility gate both
// derive from this one function.
func (s SubscriptionState) VisibleAt(now time.Time) bool {
	if s.ExpiresAt != nil && s.ExpiresAt.After(now) {
		return true
	}
	return s.TrialEndsAt != nil && s.TrialEndsAt.After(now)
}

// TrialActiveAt reports whether the one-time trial grant is still running.
func (s SubscriptionState) TrialActiveAt(now time.Time) bool {
	return s.TrialEndsAt != nil && s.TrialEndsAt.After(now)
}

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	GoogleID     *string
	DisplayName  string
	Phone        string
	City         string
	State        string
	Role         UserRole
	IsActive     bool
	Subscription SubscriptionState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	ID               string
	UserID           string
	DeviceID         string
	DeviceName       string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}
