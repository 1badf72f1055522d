package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"localmart/api/internal/config"
	"localmart/api/internal/models"
	"localmart/api/internal/repository"
)

type searcherMock struct {
	mock.Mock
}

func (m *searcherMock) SearchNearby(ctx context.Context, q repository.NearbyQuery) ([]models.Listing, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *searcherMock) SearchByFilters(ctx context.Context, filters repository.SearchFilters, limit, offset int) ([]models.Listing, error) {
	args := m.Called(ctx, filters, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func makeListings(n int) []models.Listing {
	listings := make([]models.Listing, n)
	for i := range listings {
		listings[i] = models.Listing{ID: string(rune('a' + i)), Kind: models.ListingKindStore}
	}
	return listings
}

func radiusMatcher(meters float64) interface{} {
	return mock.MatchedBy(func(q repository.NearbyQuery) bool {
		return q.RadiusMeters == meters
	})
}

func newSearchService(searcher *searcherMock, cfg config.SearchConfig) *SearchService {
	return NewSearchService(searcher, cfg, zerolog.Nop())
}

var searchCfg = config.SearchConfig{
	RadiusLadderKm: []float64{2, 5, 10},
	MinResults:     3,
	MaxPageSize:    100,
}

func TestSearchStopsAtFirstSufficientRadius(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(2000)).Return(makeListings(1), nil).Once()
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(5000)).Return(makeListings(4), nil).Once()

	svc := newSearchService(searcher, searchCfg)
	result, err := svc.Search(context.Background(), SearchInput{
		Origin: &models.Point{Lat: 12.97, Lng: 77.59},
		Limit:  20,
	})

	assert.NoError(t, err)
	assert.Len(t, result.Listings, 4)
	if assert.NotNil(t, result.RadiusKm) {
		assert.Equal(t, 5.0, *result.RadiusKm)
	}
	searcher.AssertNotCalled(t, "SearchNearby", mock.Anything, radiusMatcher(10000))
	searcher.AssertNotCalled(t, "SearchByFilters", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchExhaustsLadderAndServesWidestStep(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(2000)).Return(makeListings(0), nil).Once()
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(5000)).Return(makeListings(1), nil).Once()
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(10000)).Return(makeListings(2), nil).Once()

	svc := newSearchService(searcher, searchCfg)
	result, err := svc.Search(context.Background(), SearchInput{
		Origin: &models.Point{Lat: 12.97, Lng: 77.59},
		Limit:  20,
	})

	assert.NoError(t, err)
	assert.Len(t, result.Listings, 2)
	if assert.NotNil(t, result.RadiusKm) {
		assert.Equal(t, 10.0, *result.RadiusKm)
	}
}

func TestSearchZeroMinResultsStopsImmediately(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(2000)).Return(makeListings(0), nil).Once()

	cfg := searchCfg
	cfg.MinResults = 0
	svc := newSearchService(searcher, cfg)
	result, err := svc.Search(context.Background(), SearchInput{
		Origin: &models.Point{Lat: 12.97, Lng: 77.59},
		Limit:  20,
	})

	assert.NoError(t, err)
	assert.Empty(t, result.Listings)
	if assert.NotNil(t, result.RadiusKm) {
		assert.Equal(t, 2.0, *result.RadiusKm)
	}
	searcher.AssertNumberOfCalls(t, "SearchNearby", 1)
}

func TestSearchWithoutOriginUsesFilterPath(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchByFilters", mock.Anything, mock.Anything, 20, 0).Return(makeListings(2), nil).Once()

	svc := newSearchService(searcher, searchCfg)
	result, err := svc.Search(context.Background(), SearchInput{Limit: 20})

	assert.NoError(t, err)
	assert.Len(t, result.Listings, 2)
	assert.Nil(t, result.RadiusKm)
	searcher.AssertNotCalled(t, "SearchNearby", mock.Anything, mock.Anything)
}

func TestSearchMalformedOriginFallsBackToFilters(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchByFilters", mock.Anything, mock.Anything, 20, 0).Return(makeListings(1), nil).Once()

	svc := newSearchService(searcher, searchCfg)
	result, err := svc.Search(context.Background(), SearchInput{
		Origin: &models.Point{Lat: 120, Lng: 200},
		Limit:  20,
	})

	assert.NoError(t, err)
	assert.Nil(t, result.RadiusKm)
	searcher.AssertNotCalled(t, "SearchNearby", mock.Anything, mock.Anything)
}

func TestSearchFirstStepFailureFallsBackToFilters(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(2000)).Return(nil, assert.AnError).Once()
	searcher.On("SearchByFilters", mock.Anything, mock.Anything, 20, 0).Return(makeListings(1), nil).Once()

	svc := newSearchService(searcher, searchCfg)
	result, err := svc.Search(context.Background(), SearchInput{
		Origin: &models.Point{Lat: 12.97, Lng: 77.59},
		Limit:  20,
	})

	assert.NoError(t, err)
	assert.Len(t, result.Listings, 1)
	assert.Nil(t, result.RadiusKm)
}

func TestSearchLaterStepFailureServesPreviousStep(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(2000)).Return(makeListings(2), nil).Once()
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(5000)).Return(nil, assert.AnError).Once()

	svc := newSearchService(searcher, searchCfg)
	result, err := svc.Search(context.Background(), SearchInput{
		Origin: &models.Point{Lat: 12.97, Lng: 77.59},
		Limit:  20,
	})

	assert.NoError(t, err)
	assert.Len(t, result.Listings, 2)
	if assert.NotNil(t, result.RadiusKm) {
		assert.Equal(t, 2.0, *result.RadiusKm)
	}
	searcher.AssertNotCalled(t, "SearchNearby", mock.Anything, radiusMatcher(10000))
	searcher.AssertNotCalled(t, "SearchByFilters", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchStepTimeoutServesPreviousStep(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(2000)).Return(makeListings(2), nil).Once()
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(5000)).Return(nil, context.DeadlineExceeded).Once()

	cfg := searchCfg
	cfg.StepTimeout = 50 * time.Millisecond
	svc := newSearchService(searcher, cfg)
	result, err := svc.Search(context.Background(), SearchInput{
		Origin: &models.Point{Lat: 12.97, Lng: 77.59},
		Limit:  20,
	})

	assert.NoError(t, err)
	assert.Len(t, result.Listings, 2)
	if assert.NotNil(t, result.RadiusKm) {
		assert.Equal(t, 2.0, *result.RadiusKm)
	}
}

func TestSearchEmptyLadderUsesFilterPath(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchByFilters", mock.Anything, mock.Anything, 20, 0).Return(makeListings(1), nil).Once()

	cfg := searchCfg
	cfg.RadiusLadderKm = nil
	svc := newSearchService(searcher, cfg)
	result, err := svc.Search(context.Background(), SearchInput{
		Origin: &models.Point{Lat: 12.97, Lng: 77.59},
		Limit:  20,
	})

	assert.NoError(t, err)
	assert.Nil(t, result.RadiusKm)
}

func TestSearchPaginatesChosenStep(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(2000)).Return(makeListings(5), nil).Once()

	cfg := searchCfg
	cfg.MinResults = 3
	svc := newSearchService(searcher, cfg)
	result, err := svc.Search(context.Background(), SearchInput{
		Origin: &models.Point{Lat: 12.97, Lng: 77.59},
		Page:   2,
		Limit:  2,
	})

	assert.NoError(t, err)
	assert.Len(t, result.Listings, 2)
	assert.Equal(t, "c", result.Listings[0].ID)
	assert.Equal(t, "d", result.Listings[1].ID)
	assert.Equal(t, 2, result.Page)
}

func TestSearchDeepPageReachesBeyondMaxPageSize(t *testing.T) {
	// The page size cap must not cap the step's fetch window: page 6 of 20
	// needs rows 101-120, past MaxPageSize.
	all := makeListings(150)
	searcher := &searcherMock{}
	searcher.On("SearchNearby", mock.Anything, mock.MatchedBy(func(q repository.NearbyQuery) bool {
		return q.RadiusMeters == 2000 && q.Limit >= 120
	})).Return(all, nil).Once()

	svc := newSearchService(searcher, searchCfg)
	result, err := svc.Search(context.Background(), SearchInput{
		Origin: &models.Point{Lat: 12.97, Lng: 77.59},
		Page:   6,
		Limit:  20,
	})

	assert.NoError(t, err)
	if assert.Len(t, result.Listings, 20) {
		assert.Equal(t, all[100].ID, result.Listings[0].ID)
		assert.Equal(t, all[119].ID, result.Listings[19].ID)
	}
	searcher.AssertExpectations(t)
}

func TestStepFetchLimit(t *testing.T) {
	svc := newSearchService(&searcherMock{}, searchCfg)

	tests := []struct {
		name  string
		page  int
		limit int
		want  int
	}{
		{"shallow page keeps the floor", 1, 20, searchCfg.MaxPageSize},
		{"window covers the requested page", 6, 20, 120},
		{"depth is bounded", 1 << 30, 100, maxStepFetch},
		{"overflowing product is bounded", 1 << 62, 1 << 10, maxStepFetch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, svc.stepFetchLimit(tc.page, tc.limit))
		})
	}
}

func TestSearchPageBeyondResultsIsEmpty(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchNearby", mock.Anything, radiusMatcher(2000)).Return(makeListings(5), nil).Once()

	svc := newSearchService(searcher, searchCfg)
	result, err := svc.Search(context.Background(), SearchInput{
		Origin: &models.Point{Lat: 12.97, Lng: 77.59},
		Page:   4,
		Limit:  2,
	})

	assert.NoError(t, err)
	assert.Empty(t, result.Listings)
}

func TestSearchClampsPageAndLimit(t *testing.T) {
	searcher := &searcherMock{}
	searcher.On("SearchByFilters", mock.Anything, mock.Anything, searchCfg.MaxPageSize, 0).
		Return(makeListings(1), nil).Once()

	svc := newSearchService(searcher, searchCfg)
	result, err := svc.Search(context.Background(), SearchInput{Page: -3, Limit: 10000})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, searchCfg.MaxPageSize, result.Limit)
}
