package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"localmart/api/internal/models"
)

type deactivatorMock struct {
	mock.Mock
}

func (m *deactivatorMock) DeactivateExpiredByKind(ctx context.Context, kind models.ListingKind, now time.Time) (int64, error) {
	args := m.Called(ctx, kind, now)
	return args.Get(0).(int64), args.Error(1)
}

func alwaysLock(acquired bool, err error) LockFunc {
	return func(ctx context.Context, key string, ttl time.Duration) (bool, error) {
		return acquired, err
	}
}

func TestSweepProcessesEveryVariant(t *testing.T) {
	listings := &deactivatorMock{}
	for _, kind := range models.ListingKinds {
		listings.On("DeactivateExpiredByKind", mock.Anything, kind, mock.Anything).Return(int64(2), nil).Once()
	}

	sweep := NewExpirySweep(listings, alwaysLock(true, nil), time.Hour, zerolog.Nop())
	sweep.Run(context.Background())

	listings.AssertExpectations(t)
}

func TestSweepVariantFailureDoesNotStopOthers(t *testing.T) {
	listings := &deactivatorMock{}
	listings.On("DeactivateExpiredByKind", mock.Anything, models.ListingKindStore, mock.Anything).
		Return(int64(0), assert.AnError).Once()
	listings.On("DeactivateExpiredByKind", mock.Anything, models.ListingKindRestaurant, mock.Anything).
		Return(int64(1), nil).Once()
	listings.On("DeactivateExpiredByKind", mock.Anything, models.ListingKindFreelancer, mock.Anything).
		Return(int64(3), nil).Once()

	sweep := NewExpirySweep(listings, alwaysLock(true, nil), time.Hour, zerolog.Nop())
	sweep.Run(context.Background())

	listings.AssertExpectations(t)
}

func TestSweepSkipsWhenAnotherReplicaHoldsLock(t *testing.T) {
	listings := &deactivatorMock{}

	sweep := NewExpirySweep(listings, alwaysLock(false, nil), time.Hour, zerolog.Nop())
	sweep.Run(context.Background())

	listings.AssertNotCalled(t, "DeactivateExpiredByKind", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepRunsWhenLockIsUnavailable(t *testing.T) {
	// Redis down must not stop the sweep; a duplicate run is harmless because
	// the update is idempotent.
	listings := &deactivatorMock{}
	for _, kind := range models.ListingKinds {
		listings.On("DeactivateExpiredByKind", mock.Anything, kind, mock.Anything).Return(int64(0), nil).Once()
	}

	sweep := NewExpirySweep(listings, alwaysLock(false, assert.AnError), time.Hour, zerolog.Nop())
	sweep.Run(context.Background())

	listings.AssertExpectations(t)
}

func TestSweepWithoutLockFuncRuns(t *testing.T) {
	listings := &deactivatorMock{}
	for _, kind := range models.ListingKinds {
		listings.On("DeactivateExpiredByKind", mock.Anything, kind, mock.Anything).Return(int64(0), nil).Once()
	}

	sweep := NewExpirySweep(listings, nil, time.Hour, zerolog.Nop())
	sweep.Run(context.Background())

	listings.AssertExpectations(t)
}

// fakeListingStore evaluates the sweep's hide predicate over seeded owner
// states, the way the SQL does over the users table: hide a still-shown
// listing exactly when its owner fails the visibility predicate.
type fakeListingStore struct {
	owners   map[string]models.SubscriptionState
	listings []*fakeListing
	writes   int
}

type fakeListing struct {
	ID                 string
	OwnerID            string
	Kind               models.ListingKind
	SubscriptionActive bool
}

func (f *fakeListingStore) DeactivateExpiredByKind(_ context.Context, kind models.ListingKind, now time.Time) (int64, error) {
	var hidden int64
	for _, l := range f.listings {
		if l.Kind != kind || !l.SubscriptionActive {
			continue
		}
		if !f.owners[l.OwnerID].VisibleAt(now) {
			l.SubscriptionActive = false
			f.writes++
			hidden++
		}
	}
	return hidden, nil
}

func TestSweepHidesExactlyTheLapsedOwners(t *testing.T) {
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	future := asOf.Add(24 * time.Hour)
	past := asOf.Add(-24 * time.Hour)

	store := &fakeListingStore{
		owners: map[string]models.SubscriptionState{
			"trial-active":   {HasUsedTrial: true, TrialEndsAt: &future},
			"trial-lapsed":   {HasUsedTrial: true, TrialEndsAt: &past},
			"paid-active":    {IsSubscribed: true, ExpiresAt: &future},
			"paid-lapsed":    {IsSubscribed: true, ExpiresAt: &past},
			"trial-carrying": {IsSubscribed: true, ExpiresAt: &past, HasUsedTrial: true, TrialEndsAt: &future},
			"never-started":  {},
			"cancelled-paid": {IsSubscribed: false, ExpiresAt: &future, CancelledAt: &past, HasUsedTrial: true, TrialEndsAt: &past},
		},
		listings: []*fakeListing{
			{ID: "l1", OwnerID: "trial-active", Kind: models.ListingKindStore, SubscriptionActive: true},
			{ID: "l2", OwnerID: "trial-lapsed", Kind: models.ListingKindStore, SubscriptionActive: true},
			{ID: "l3", OwnerID: "paid-active", Kind: models.ListingKindRestaurant, SubscriptionActive: true},
			{ID: "l4", OwnerID: "paid-lapsed", Kind: models.ListingKindRestaurant, SubscriptionActive: true},
			{ID: "l5", OwnerID: "trial-carrying", Kind: models.ListingKindFreelancer, SubscriptionActive: true},
			{ID: "l6", OwnerID: "never-started", Kind: models.ListingKindFreelancer, SubscriptionActive: true},
			{ID: "l7", OwnerID: "cancelled-paid", Kind: models.ListingKindStore, SubscriptionActive: true},
		},
	}

	sweep := NewExpirySweep(store, nil, time.Hour, zerolog.Nop())
	sweep.now = func() time.Time { return asOf }
	sweep.Run(context.Background())

	// After the sweep every flag agrees with what the gate would re-derive
	// from the owner's state.
	for _, l := range store.listings {
		want := store.owners[l.OwnerID].VisibleAt(asOf)
		assert.Equal(t, want, l.SubscriptionActive, "listing %s", l.ID)
	}
	assert.Equal(t, 3, store.writes, "expected l2, l4 and l6 hidden")
}

func TestSweepSecondRunWritesNothing(t *testing.T) {
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := asOf.Add(-24 * time.Hour)

	store := &fakeListingStore{
		owners: map[string]models.SubscriptionState{
			"lapsed": {HasUsedTrial: true, TrialEndsAt: &past},
		},
		listings: []*fakeListing{
			{ID: "l1", OwnerID: "lapsed", Kind: models.ListingKindStore, SubscriptionActive: true},
			{ID: "l2", OwnerID: "lapsed", Kind: models.ListingKindFreelancer, SubscriptionActive: true},
		},
	}

	sweep := NewExpirySweep(store, nil, time.Hour, zerolog.Nop())
	sweep.now = func() time.Time { return asOf }

	sweep.Run(context.Background())
	assert.Equal(t, 2, store.writes)

	sweep.Run(context.Background())
	assert.Equal(t, 2, store.writes, "repeat run must be write-free")
}

func TestSweepUsesSingleTimestampForAllVariants(t *testing.T) {
	listings := &deactivatorMock{}
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, kind := range models.ListingKinds {
		listings.On("DeactivateExpiredByKind", mock.Anything, kind, asOf).Return(int64(0), nil).Once()
	}

	sweep := NewExpirySweep(listings, nil, time.Hour, zerolog.Nop())
	sweep.now = func() time.Time { return asOf }
	sweep.Run(context.Background())

	listings.AssertExpectations(t)
}
