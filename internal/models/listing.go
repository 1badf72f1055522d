package models

import "time"

type ListingKind string

const (
	ListingKindStore      ListingKind = "store"
	ListingKindRestaurant ListingKind = "restaurant"
	ListingKindFreelancer ListingKind = "freelancer"
)

// ListingKinds enumerates every variant, in the order the expiry sweep
// processes them.
var ListingKinds = []ListingKind{ListingKindStore, ListingKindRestaurant, ListingKindFreelancer}

func (k ListingKind) Valid() bool {
	switch k {
	case ListingKindStore, ListingKindRestaurant, ListingKindFreelancer:
		return true
	}
	return false
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// Listing is a business-facing storefront, restaurant, or freelancer
// profile. One account owns at most one listing per kind.
//
// SubscriptionActive is derived from the owner's subscription state; only
// payment verification and the expiry sweep write it, never the owner.
// Rating and TotalReviews are maintained by the review subsystem and are
// read-only here.
type Listing struct {
	ID                 string
	OwnerID            string
	Kind               ListingKind
	Name               string
	Category           string
	Description        string
	Address            string
	City               string
	State              string
	Pincode            string
	Phone              string
	Whatsapp           string
	LogoURL            *string
	BannerURL          *string
	Location           Point
	IsActive           bool
	SubscriptionActive bool
	Rating             float64
	TotalReviews       int
	DistanceMeters     *float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
