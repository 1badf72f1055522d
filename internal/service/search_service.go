package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"localmart/api/internal/config"
	"localmart/api/internal/models"
	"localmart/api/internal/repository"
)

// ListingSearcher is the slice of the listing store the discovery path needs.
type ListingSearcher interface {
	SearchNearby(ctx context.Context, q repository.NearbyQuery) ([]models.Listing, error)
	SearchByFilters(ctx context.Context, filters repository.SearchFilters, limit, offset int) ([]models.Listing, error)
}

type SearchInput struct {
	Origin       *models.Point
	Filters      repository.SearchFilters
	SortByRating bool
	Page         int
	Limit        int
}

// SearchResult is one page of discovery results. RadiusKm is the ladder step
// the results came from; nil means the unbounded filter path was used
// (no origin, or geo degradation).
type SearchResult struct {
	Listings []models.Listing
	RadiusKm *float64
	Page     int
	Limit    int
}

// SearchService implements progressive-radius discovery: try each radius of
// the configured ladder in order, each step a fresh superset query, and stop
// at the first step that yields enough results. The returned page always
// comes from exactly one step, never a union across steps.
type SearchService struct {
	listings ListingSearcher
	cfg      config.SearchConfig
	log      zerolog.Logger
}

func NewSearchService(listings ListingSearcher, cfg config.SearchConfig, log zerolog.Logger) *SearchService {
	return &SearchService{
		listings: listings,
		cfg:      cfg,
		log:      log,
	}
}

func (s *SearchService) Search(ctx context.Context, input SearchInput) (SearchResult, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit < 1 || limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}

	origin := input.Origin
	if origin != nil && !validCoordinates(*origin) {
		s.log.Warn().
			Float64("lat", origin.Lat).
			Float64("lng", origin.Lng).
			Msg("malformed search origin, falling back to filter search")
		origin = nil
	}

	if origin == nil {
		return s.filterSearch(ctx, input.Filters, page, limit)
	}

	var (
		best       []models.Listing
		bestRadius float64
		haveStep   bool
	)

	fetchLimit := s.stepFetchLimit(page, limit)
	for _, radiusKm := range s.cfg.RadiusLadderKm {
		results, err := s.searchStep(ctx, *origin, radiusKm, input, fetchLimit)
		if err != nil {
			if haveStep && isTimeout(err) {
				// Abandon the remaining ladder and serve the best step so far.
				s.log.Warn().Err(err).
					Float64("radius_km", radiusKm).
					Msg("search step timed out, returning previous step")
				break
			}
			if haveStep {
				s.log.Warn().Err(err).
					Float64("radius_km", radiusKm).
					Msg("search step failed, returning previous step")
				break
			}
			s.log.Warn().Err(err).
				Float64("radius_km", radiusKm).
				Msg("geo search failed, falling back to filter search")
			return s.filterSearch(ctx, input.Filters, page, limit)
		}

		best = results
		bestRadius = radiusKm
		haveStep = true

		if len(results) >= s.cfg.MinResults {
			break
		}
	}

	if !haveStep {
		// Empty ladder; treat like a missing origin.
		return s.filterSearch(ctx, input.Filters, page, limit)
	}

	radius := bestRadius
	return SearchResult{
		Listings: paginate(best, page, limit),
		RadiusKm: &radius,
		Page:     page,
		Limit:    limit,
	}, nil
}

// maxStepFetch bounds how many rows one ladder step pulls into memory, and
// with it the deepest reachable page of a geo search.
const maxStepFetch = 10000

// stepFetchLimit sizes a step's fetch window so the requested page lies
// inside it. MaxPageSize caps one page, not the step's result set.
func (s *SearchService) stepFetchLimit(page, limit int) int {
	need := page * limit
	if need/limit != page || need > maxStepFetch {
		need = maxStepFetch
	}
	if need < s.cfg.MaxPageSize {
		need = s.cfg.MaxPageSize
	}
	return need
}

func (s *SearchService) searchStep(ctx context.Context, origin models.Point, radiusKm float64, input SearchInput, fetchLimit int) ([]models.Listing, error) {
	stepCtx := ctx
	if s.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, s.cfg.StepTimeout)
		defer cancel()
	}

	return s.listings.SearchNearby(stepCtx, repository.NearbyQuery{
		Origin:       origin,
		RadiusMeters: radiusKm * 1000,
		Filters:      input.Filters,
		SortByRating: input.SortByRating,
		Limit:        fetchLimit,
	})
}

func (s *SearchService) filterSearch(ctx context.Context, filters repository.SearchFilters, page, limit int) (SearchResult, error) {
	offset := (page - 1) * limit
	results, err := s.listings.SearchByFilters(ctx, filters, limit, offset)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{
		Listings: results,
		RadiusKm: nil,
		Page:     page,
		Limit:    limit,
	}, nil
}

func paginate(listings []models.Listing, page, limit int) []models.Listing {
	offset := (page - 1) * limit
	if offset >= len(listings) {
		return nil
	}
	end := offset + limit
	if end > len(listings) {
		end = len(listings)
	}
	return listings[offset:end]
}

func validCoordinates(p models.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
