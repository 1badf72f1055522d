package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"localmart/api/internal/models"
)

var ErrListingNotFound = errors.New("listing not found")

// SearchFilters narrows both the geo and the non-geo search paths. Empty
// fields are skipped; Search matches the listing name case-insensitively.
type SearchFilters struct {
	Kind     *models.ListingKind
	City     string
	State    string
	Category string
	Search   string
}

// NearbyQuery is one radius step of the distance-expanding search against
// the PostGIS index on listings.location.
type NearbyQuery struct {
	Origin       models.Point
	RadiusMeters float64
	Filters      SearchFilters
	SortByRating bool
	Limit        int
}

const listingColumns = `
	id, owner_id, kind, name, category, description, address, city, state, pincode,
	phone, whatsapp, logo_url, banner_url,
	ST_Y(location::geometry), ST_X(location::geometry),
	is_active, subscription_active, rating, total_reviews, created_at, updated_at
`

type ListingRepository struct {
	pool *pgxpool.Pool
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func (r *ListingRepository) Create(ctx context.Context, listing models.Listing) error {
	const query = `
		INSERT INTO listings (
			id, owner_id, kind, name, category, description, address, city, state, pincode,
			phone, whatsapp, logo_url, banner_url, location,
			is_active, subscription_active, rating, total_reviews, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, ST_SetSRID(ST_MakePoint($15, $16), 4326)::geography,
			$17, $18, 0, 0, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		listing.ID,
		listing.OwnerID,
		listing.Kind,
		listing.Name,
		listing.Category,
		listing.Description,
		listing.Address,
		listing.City,
		listing.State,
		listing.Pincode,
		listing.Phone,
		listing.Whatsapp,
		listing.LogoURL,
		listing.BannerURL,
		listing.Location.Lng,
		listing.Location.Lat,
		listing.IsActive,
		listing.SubscriptionActive,
	)
	return err
}

func (r *ListingRepository) GetByID(ctx context.Context, id string) (models.Listing, error) {
	const query = `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	return scanListing(r.pool.QueryRow(ctx, query, id))
}

func (r *ListingRepository) ExistsByOwnerKind(ctx context.Context, ownerID string, kind models.ListingKind) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM listings WHERE owner_id = $1 AND kind = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, ownerID, kind).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ListingRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error) {
	const query = `SELECT ` + listingColumns + ` FROM listings WHERE owner_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectListings(rows)
}

// Update applies owner edits. Visibility is deliberately not part of this
// statement; only payment verification and the expiry sweep write it.
func (r *ListingRepository) Update(ctx context.Context, listing models.Listing) error {
	const query = `
		UPDATE listings
		SET name = $2, category = $3, description = $4, address = $5, city = $6, state = $7,
		    pincode = $8, phone = $9, whatsapp = $10,
		    location = ST_SetSRID(ST_MakePoint($11, $12), 4326)::geography,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query,
		listing.ID,
		listing.Name,
		listing.Category,
		listing.Description,
		listing.Address,
		listing.City,
		listing.State,
		listing.Pincode,
		listing.Phone,
		listing.Whatsapp,
		listing.Location.Lng,
		listing.Location.Lat,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE listings SET is_active = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) SetMediaURLs(ctx context.Context, id string, logoURL, bannerURL *string) error {
	const query = `
		UPDATE listings
		SET logo_url = COALESCE($2, logo_url),
		    banner_url = COALESCE($3, banner_url),
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, logoURL, bannerURL)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrListingNotFound
	}
	return nil
}

// SearchNearby runs a single radius step: every visible listing within
// RadiusMeters of the origin, nearest-first. SortByRating replaces the
// nearest-first ordering entirely; the two are never combined.
func (r *ListingRepository) SearchNearby(ctx context.Context, q NearbyQuery) ([]models.Listing, error) {
	query := `
		SELECT ` + listingColumns + `,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
		FROM listings
		WHERE is_active = TRUE
		  AND subscription_active = TRUE
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
	`
	args := []any{q.Origin.Lng, q.Origin.Lat, q.RadiusMeters}
	query, args = appendFilters(query, args, q.Filters)

	if q.SortByRating {
		query += ` ORDER BY rating DESC, total_reviews DESC`
	} else {
		query += ` ORDER BY distance ASC`
	}
	args = append(args, q.Limit)
	query += ` LIMIT $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		listing, err := scanListingWithDistance(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

// SearchByFilters is the no-origin path: plain equality/pattern filtering
// over visible listings, newest first.
func (r *ListingRepository) SearchByFilters(ctx context.Context, filters SearchFilters, limit, offset int) ([]models.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE is_active = TRUE
		  AND subscription_active = TRUE
	`
	var args []any
	query, args = appendFilters(query, args, filters)

	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectListings(rows)
}

// SetSubscriptionActiveForOwner re-materializes visibility for every listing
// of one owner, across all kinds. Used after payment verification and by the
// visibility gate's self-heal path.
func (r *ListingRepository) SetSubscriptionActiveForOwner(ctx context.Context, ownerID string, active bool) error {
	const query = `
		UPDATE listings
		SET subscription_active = $2, updated_at = NOW()
		WHERE owner_id = $1 AND subscription_active <> $2
	`
	_, err := r.pool.Exec(ctx, query, ownerID, active)
	return err
}

// DeactivateExpiredByKind is one variant's pass of the expiry sweep: hide
// every still-shown listing of this kind whose owner fails the visibility
// predicate at the given instant. The subscription_active = TRUE guard keeps
// repeat runs write-free.
func (r *ListingRepository) DeactivateExpiredByKind(ctx context.Context, kind models.ListingKind, now time.Time) (int64, error) {
	const query = `
		UPDATE listings
		SET subscription_active = FALSE, updated_at = NOW()
		WHERE kind = $1
		  AND subscription_active = TRUE
		  AND owner_id IN (
			SELECT id FROM users
			WHERE (expires_at IS NULL OR expires_at <= $2)
			  AND (trial_ends_at IS NULL OR trial_ends_at <= $2)
		  )
	`
	cmd, err := r.pool.Exec(ctx, query, kind, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func appendFilters(query string, args []any, filters SearchFilters) (string, []any) {
	if filters.Kind != nil {
		args = append(args, *filters.Kind)
		query += ` AND kind = $` + itoa(len(args))
	}
	if filters.City != "" {
		args = append(args, filters.City)
		query += ` AND city = $` + itoa(len(args))
	}
	if filters.State != "" {
		args = append(args, filters.State)
		query += ` AND state = $` + itoa(len(args))
	}
	if filters.Category != "" {
		args = append(args, filters.Category)
		query += ` AND category = $` + itoa(len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		query += ` AND name ILIKE $` + itoa(len(args))
	}
	return query, args
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func scanListing(row pgx.Row) (models.Listing, error) {
	var listing models.Listing
	if err := row.Scan(
		&listing.ID,
		&listing.OwnerID,
		&listing.Kind,
		&listing.Name,
		&listing.Category,
		&listing.Description,
		&listing.Address,
		&listing.City,
		&listing.State,
		&listing.Pincode,
		&listing.Phone,
		&listing.Whatsapp,
		&listing.LogoURL,
		&listing.BannerURL,
		&listing.Location.Lat,
		&listing.Location.Lng,
		&listing.IsActive,
		&listing.SubscriptionActive,
		&listing.Rating,
		&listing.TotalReviews,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Listing{}, ErrListingNotFound
		}
		return models.Listing{}, err
	}
	return listing, nil
}

func scanListingWithDistance(row pgx.Row) (models.Listing, error) {
	var listing models.Listing
	var distance float64
	if err := row.Scan(
		&listing.ID,
		&listing.OwnerID,
		&listing.Kind,
		&listing.Name,
		&listing.Category,
		&listing.Description,
		&listing.Address,
		&listing.City,
		&listing.State,
		&listing.Pincode,
		&listing.Phone,
		&listing.Whatsapp,
		&listing.LogoURL,
		&listing.BannerURL,
		&listing.Location.Lat,
		&listing.Location.Lng,
		&listing.IsActive,
		&listing.SubscriptionActive,
		&listing.Rating,
		&listing.TotalReviews,
		&listing.CreatedAt,
		&listing.UpdatedAt,
		&distance,
	); err != nil {
		return models.Listing{}, err
	}
	listing.DistanceMeters = &distance
	return listing, nil
}

func collectListings(rows pgx.Rows) ([]models.Listing, error) {
	var listings []models.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}
