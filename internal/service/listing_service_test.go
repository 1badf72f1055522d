package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"localmart/api/internal/models"
	"localmart/api/internal/repository"
)

type listingRepoMock struct {
	mock.Mock
}

func (m *listingRepoMock) Create(ctx context.Context, listing models.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *listingRepoMock) GetByID(ctx context.Context, id string) (models.Listing, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Listing), args.Error(1)
}

func (m *listingRepoMock) Update(ctx context.Context, listing models.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *listingRepoMock) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *listingRepoMock) SetMediaURLs(ctx context.Context, id string, logoURL, bannerURL *string) error {
	args := m.Called(ctx, id, logoURL, bannerURL)
	return args.Error(0)
}

func (m *listingRepoMock) ExistsByOwnerKind(ctx context.Context, ownerID string, kind models.ListingKind) (bool, error) {
	args := m.Called(ctx, ownerID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *listingRepoMock) SetSubscriptionActiveForOwner(ctx context.Context, ownerID string, active bool) error {
	args := m.Called(ctx, ownerID, active)
	return args.Error(0)
}

type stateProviderMock struct {
	mock.Mock
}

func (m *stateProviderMock) State(ctx context.Context, userID string) (models.SubscriptionState, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.SubscriptionState), args.Error(1)
}

type mediaStoreMock struct {
	mock.Mock
}

func (m *mediaStoreMock) UploadImage(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, objectKey, reader, size, contentType)
	return args.String(0), args.Error(1)
}

type listingFixture struct {
	svc    *ListingService
	repo   *listingRepoMock
	states *stateProviderMock
	media  *mediaStoreMock
	now    time.Time
}

func newListingFixture() *listingFixture {
	f := &listingFixture{
		repo:   &listingRepoMock{},
		states: &stateProviderMock{},
		media:  &mediaStoreMock{},
		now:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	f.svc = NewListingService(f.repo, f.states, f.media, zerolog.Nop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestGetHidesSoftDeletedListings(t *testing.T) {
	f := newListingFixture()
	f.repo.On("GetByID", mock.Anything, "l1").
		Return(models.Listing{ID: "l1", OwnerID: "u1", IsActive: false}, nil).Once()

	_, err := f.svc.Get(context.Background(), "l1")

	assert.ErrorIs(t, err, repository.ErrListingNotFound)
	f.states.AssertNotCalled(t, "State", mock.Anything, mock.Anything)
}

func TestGetServesVisibleListing(t *testing.T) {
	f := newListingFixture()
	f.repo.On("GetByID", mock.Anything, "l1").
		Return(models.Listing{ID: "l1", OwnerID: "u1", IsActive: true, SubscriptionActive: true}, nil).Once()
	f.states.On("State", mock.Anything, "u1").
		Return(models.SubscriptionState{IsSubscribed: true, ExpiresAt: timePtr(f.now.Add(time.Hour))}, nil).Once()

	result, err := f.svc.Get(context.Background(), "l1")

	assert.NoError(t, err)
	assert.False(t, result.Expired)
	assert.Equal(t, "l1", result.Listing.ID)
	f.repo.AssertNotCalled(t, "SetSubscriptionActiveForOwner", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetExpiredOwnerYieldsPartialProjection(t *testing.T) {
	// Flag still says visible but the owner lapsed since the last sweep; the
	// gate must catch it and correct the flag in passing.
	f := newListingFixture()
	f.repo.On("GetByID", mock.Anything, "l1").
		Return(models.Listing{ID: "l1", OwnerID: "u1", Name: "Corner Store", IsActive: true, SubscriptionActive: true}, nil).Once()
	f.states.On("State", mock.Anything, "u1").
		Return(models.SubscriptionState{HasUsedTrial: true, TrialEndsAt: timePtr(f.now.Add(-time.Hour))}, nil).Once()
	f.repo.On("SetSubscriptionActiveForOwner", mock.Anything, "u1", false).Return(nil).Once()

	result, err := f.svc.Get(context.Background(), "l1")

	assert.NoError(t, err)
	assert.True(t, result.Expired)
	assert.Equal(t, "Corner Store", result.Listing.Name)
	assert.False(t, result.Listing.SubscriptionActive)
	f.repo.AssertExpectations(t)
}

func TestGetHealsStaleHiddenFlag(t *testing.T) {
	// The reverse direction: sweep hid the listing, owner has since paid.
	f := newListingFixture()
	f.repo.On("GetByID", mock.Anything, "l1").
		Return(models.Listing{ID: "l1", OwnerID: "u1", IsActive: true, SubscriptionActive: false}, nil).Once()
	f.states.On("State", mock.Anything, "u1").
		Return(models.SubscriptionState{IsSubscribed: true, ExpiresAt: timePtr(f.now.Add(time.Hour))}, nil).Once()
	f.repo.On("SetSubscriptionActiveForOwner", mock.Anything, "u1", true).Return(nil).Once()

	result, err := f.svc.Get(context.Background(), "l1")

	assert.NoError(t, err)
	assert.False(t, result.Expired)
	assert.True(t, result.Listing.SubscriptionActive)
	f.repo.AssertExpectations(t)
}

func TestGetHealFailureStillGates(t *testing.T) {
	f := newListingFixture()
	f.repo.On("GetByID", mock.Anything, "l1").
		Return(models.Listing{ID: "l1", OwnerID: "u1", IsActive: true, SubscriptionActive: true}, nil).Once()
	f.states.On("State", mock.Anything, "u1").
		Return(models.SubscriptionState{}, nil).Once()
	f.repo.On("SetSubscriptionActiveForOwner", mock.Anything, "u1", false).Return(assert.AnError).Once()

	result, err := f.svc.Get(context.Background(), "l1")

	assert.NoError(t, err)
	assert.True(t, result.Expired)
}

func TestCreateDerivesInitialVisibility(t *testing.T) {
	f := newListingFixture()
	owner := models.User{ID: "u1", Role: models.UserRoleSeller}

	f.repo.On("ExistsByOwnerKind", mock.Anything, "u1", models.ListingKindStore).Return(false, nil).Once()
	f.states.On("State", mock.Anything, "u1").
		Return(models.SubscriptionState{HasUsedTrial: true, TrialEndsAt: timePtr(f.now.Add(time.Hour))}, nil).Once()
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(l models.Listing) bool {
		return l.OwnerID == "u1" && l.Kind == models.ListingKindStore && l.SubscriptionActive && l.IsActive
	})).Return(nil).Once()

	listing, err := f.svc.Create(context.Background(), owner, ListingInput{Name: "Corner Store"})

	assert.NoError(t, err)
	assert.NotEmpty(t, listing.ID)
	assert.True(t, listing.SubscriptionActive)
	f.repo.AssertExpectations(t)
}

func TestCreateWithLapsedOwnerStartsHidden(t *testing.T) {
	f := newListingFixture()
	owner := models.User{ID: "u1", Role: models.UserRoleFreelancer}

	f.repo.On("ExistsByOwnerKind", mock.Anything, "u1", models.ListingKindFreelancer).Return(false, nil).Once()
	f.states.On("State", mock.Anything, "u1").Return(models.SubscriptionState{HasUsedTrial: true}, nil).Once()
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(l models.Listing) bool {
		return !l.SubscriptionActive && l.IsActive
	})).Return(nil).Once()

	listing, err := f.svc.Create(context.Background(), owner, ListingInput{Name: "Plumber"})

	assert.NoError(t, err)
	assert.False(t, listing.SubscriptionActive)
}

func TestCreateRejectsSecondListingOfSameKind(t *testing.T) {
	f := newListingFixture()
	owner := models.User{ID: "u1", Role: models.UserRoleSeller}

	f.repo.On("ExistsByOwnerKind", mock.Anything, "u1", models.ListingKindStore).Return(true, nil).Once()

	_, err := f.svc.Create(context.Background(), owner, ListingInput{Name: "Second Store"})

	assert.ErrorIs(t, err, ErrListingExists)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateRejectsNonBusinessOwner(t *testing.T) {
	f := newListingFixture()

	_, err := f.svc.Create(context.Background(), models.User{ID: "u1", Role: models.UserRoleCustomer}, ListingInput{})

	assert.ErrorIs(t, err, ErrRoleMismatch)
}

func TestUpdateRejectsNonOwner(t *testing.T) {
	f := newListingFixture()
	f.repo.On("GetByID", mock.Anything, "l1").
		Return(models.Listing{ID: "l1", OwnerID: "someone-else", IsActive: true}, nil).Once()

	_, err := f.svc.Update(context.Background(), models.User{ID: "u1"}, "l1", ListingInput{})

	assert.ErrorIs(t, err, ErrNotOwner)
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDeleteSoftDeletes(t *testing.T) {
	f := newListingFixture()
	f.repo.On("GetByID", mock.Anything, "l1").
		Return(models.Listing{ID: "l1", OwnerID: "u1", IsActive: true}, nil).Once()
	f.repo.On("SetActive", mock.Anything, "l1", false).Return(nil).Once()

	err := f.svc.Delete(context.Background(), models.User{ID: "u1"}, "l1")

	assert.NoError(t, err)
	f.repo.AssertExpectations(t)
}

func TestUploadImageRejectsUnknownSlot(t *testing.T) {
	f := newListingFixture()

	_, err := f.svc.UploadImage(context.Background(), models.User{ID: "u1"}, "l1", "poster", strings.NewReader("x"), 1, "image/png")

	assert.Error(t, err)
	f.media.AssertNotCalled(t, "UploadImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadImageStoresLogoURL(t *testing.T) {
	f := newListingFixture()
	f.repo.On("GetByID", mock.Anything, "l1").
		Return(models.Listing{ID: "l1", OwnerID: "u1", IsActive: true}, nil).Once()
	f.media.On("UploadImage", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "listings/l1/logo-")
	}), mock.Anything, int64(3), "image/png").Return("https://cdn.example/logo.png", nil).Once()
	url := "https://cdn.example/logo.png"
	f.repo.On("SetMediaURLs", mock.Anything, "l1", &url, (*string)(nil)).Return(nil).Once()

	got, err := f.svc.UploadImage(context.Background(), models.User{ID: "u1"}, "l1", "logo", strings.NewReader("png"), 3, "image/png")

	assert.NoError(t, err)
	assert.Equal(t, url, got)
	f.repo.AssertExpectations(t)
	f.media.AssertExpectations(t)
}
