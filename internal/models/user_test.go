package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestSubscriptionStateVisibleAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := timePtr(now.Add(24 * time.Hour))
	past := timePtr(now.Add(-24 * time.Hour))

	tests := []struct {
		name    string
		state   SubscriptionState
		visible bool
	}{
		{
			name:    "no trial no subscription",
			state:   SubscriptionState{},
			visible: false,
		},
		{
			name:    "active trial",
			state:   SubscriptionState{HasUsedTrial: true, TrialEndsAt: future},
			visible: true,
		},
		{
			name:    "expired trial",
			state:   SubscriptionState{HasUsedTrial: true, TrialEndsAt: past},
			visible: false,
		},
		{
			name:    "active paid subscription",
			state:   SubscriptionState{IsSubscribed: true, ExpiresAt: future},
			visible: true,
		},
		{
			name:    "paid subscription past expiry",
			state:   SubscriptionState{IsSubscribed: true, ExpiresAt: past},
			visible: false,
		},
		{
			name:    "subscribed flag set but no expiry recorded",
			state:   SubscriptionState{IsSubscribed: true},
			visible: false,
		},
		{
			name:    "expired trial with active paid subscription",
			state:   SubscriptionState{HasUsedTrial: true, TrialEndsAt: past, IsSubscribed: true, ExpiresAt: future},
			visible: true,
		},
		{
			name:    "active trial with lapsed paid subscription",
			state:   SubscriptionState{HasUsedTrial: true, TrialEndsAt: future, IsSubscribed: true, ExpiresAt: past},
			visible: true,
		},
		{
			name:    "cancelled but not yet expired",
			state:   SubscriptionState{IsSubscribed: false, ExpiresAt: future, CancelledAt: past},
			visible: true,
		},
		{
			name:    "cancelled and expired",
			state:   SubscriptionState{IsSubscribed: false, ExpiresAt: past, CancelledAt: past},
			visible: false,
		},
		{
			name:    "expiry exactly now",
			state:   SubscriptionState{IsSubscribed: true, ExpiresAt: timePtr(now)},
			visible: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.visible, tc.state.VisibleAt(now))
		})
	}
}

func TestSubscriptionStateTrialActiveAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, SubscriptionState{}.TrialActiveAt(now))
	assert.True(t, SubscriptionState{TrialEndsAt: timePtr(now.Add(time.Minute))}.TrialActiveAt(now))
	assert.False(t, SubscriptionState{TrialEndsAt: timePtr(now)}.TrialActiveAt(now))
	assert.False(t, SubscriptionState{TrialEndsAt: timePtr(now.Add(-time.Minute))}.TrialActiveAt(now))
}

func TestUserRoleIsBusiness(t *testing.T) {
	assert.True(t, UserRoleSeller.IsBusiness())
	assert.True(t, UserRoleRestaurant.IsBusiness())
	assert.True(t, UserRoleFreelancer.IsBusiness())
	assert.False(t, UserRoleCustomer.IsBusiness())
	assert.False(t, UserRoleAdmin.IsBusiness())
}

func TestBusinessRolesCoverEveryListingKind(t *testing.T) {
	kinds := make(map[ListingKind]bool)
	for _, kind := range BusinessRoles {
		kinds[kind] = true
	}
	for _, kind := range ListingKinds {
		assert.True(t, kinds[kind], "no business role maps to kind %s", kind)
	}
}
