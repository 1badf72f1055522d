package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"localmart/api/internal/ids"
	"localmart/api/internal/models"
	"localmart/api/internal/repository"
)

var (
	ErrListingExists = errors.New("account already owns a listing of this kind")
	ErrRoleMismatch  = errors.New("role does not allow this listing kind")
	ErrNotOwner      = errors.New("listing is owned by another account")
)

type ListingRepo interface {
	Create(ctx context.Context, listing models.Listing) error
	GetByID(ctx context.Context, id string) (models.Listing, error)
	Update(ctx context.Context, listing models.Listing) error
	SetActive(ctx context.Context, id string, active bool) error
	SetMediaURLs(ctx context.Context, id string, logoURL, bannerURL *string) error
	ExistsByOwnerKind(ctx context.Context, ownerID string, kind models.ListingKind) (bool, error)
	SetSubscriptionActiveForOwner(ctx context.Context, ownerID string, active bool) error
}

// StateProvider yields the owner's live subscription state for the
// visibility gate.
type StateProvider interface {
	State(ctx context.Context, userID string) (models.SubscriptionState, error)
}

type MediaStore interface {
	UploadImage(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error)
}

type ListingService struct {
	listings ListingRepo
	states   StateProvider
	media    MediaStore
	log      zerolog.Logger
	now      func() time.Time
}

func NewListingService(listings ListingRepo, states StateProvider, media MediaStore, log zerolog.Logger) *ListingService {
	return &ListingService{
		listings: listings,
		states:   states,
		media:    media,
		log:      log,
		now:      time.Now,
	}
}

type ListingInput struct {
	Name        string
	Category    string
	Description string
	Address     string
	City        string
	State       string
	Pincode     string
	Phone       string
	Whatsapp    string
	Location    models.Point
}

// Create adds the owner's listing for their current business role. One
// listing per (owner, kind); the initial visibility flag is derived from the
// owner's live subscription state.
func (s *ListingService) Create(ctx context.Context, owner models.User, input ListingInput) (models.Listing, error) {
	kind, ok := models.BusinessRoles[owner.Role]
	if !ok {
		return models.Listing{}, ErrRoleMismatch
	}

	exists, err := s.listings.ExistsByOwnerKind(ctx, owner.ID, kind)
	if err != nil {
		return models.Listing{}, err
	}
	if exists {
		return models.Listing{}, ErrListingExists
	}

	state, err := s.states.State(ctx, owner.ID)
	if err != nil {
		return models.Listing{}, err
	}

	listing := models.Listing{
		ID:                 ids.New(),
		OwnerID:            owner.ID,
		Kind:               kind,
		Name:               input.Name,
		Category:           input.Category,
		Description:        input.Description,
		Address:            input.Address,
		City:               input.City,
		State:              input.State,
		Pincode:            input.Pincode,
		Phone:              input.Phone,
		Whatsapp:           input.Whatsapp,
		Location:           input.Location,
		IsActive:           true,
		SubscriptionActive: state.VisibleAt(s.now()),
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		return models.Listing{}, err
	}

	s.log.Info().
		Str("listing_id", listing.ID).
		Str("owner_id", owner.ID).
		Str("kind", string(kind)).
		Msg("listing created")

	return listing, nil
}

// GateResult is what a direct listing fetch yields. When Expired is set the
// caller must only expose the id and name; the full record stays hidden.
type GateResult struct {
	Listing models.Listing
	Expired bool
}

// Get is the visibility gate. Unlike search, which trusts the materialized
// subscription_active flag, a direct fetch re-derives visibility from the
// owner's live subscription state, because the nightly sweep may lag a
// lapse by up to a day. A stale materialized flag is corrected in passing.
func (s *ListingService) Get(ctx context.Context, id string) (GateResult, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return GateResult{}, err
	}
	if !listing.IsActive {
		// Soft-deleted listings are indistinguishable from absent ones.
		return GateResult{}, repository.ErrListingNotFound
	}

	state, err := s.states.State(ctx, listing.OwnerID)
	if err != nil {
		return GateResult{}, err
	}

	visible := state.VisibleAt(s.now())
	if visible != listing.SubscriptionActive {
		if healErr := s.listings.SetSubscriptionActiveForOwner(ctx, listing.OwnerID, visible); healErr != nil {
			s.log.Warn().Err(healErr).
				Str("listing_id", listing.ID).
				Msg("failed to heal stale visibility flag")
		}
		listing.SubscriptionActive = visible
	}

	if !visible {
		return GateResult{Listing: listing, Expired: true}, nil
	}
	return GateResult{Listing: listing}, nil
}

func (s *ListingService) Update(ctx context.Context, owner models.User, id string, input ListingInput) (models.Listing, error) {
	listing, err := s.ownedListing(ctx, owner, id)
	if err != nil {
		return models.Listing{}, err
	}

	listing.Name = input.Name
	listing.Category = input.Category
	listing.Description = input.Description
	listing.Address = input.Address
	listing.City = input.City
	listing.State = input.State
	listing.Pincode = input.Pincode
	listing.Phone = input.Phone
	listing.Whatsapp = input.Whatsapp
	listing.Location = input.Location

	if err := s.listings.Update(ctx, listing); err != nil {
		return models.Listing{}, err
	}
	return listing, nil
}

// Delete soft-deletes: the record stays for reactivation and audit.
func (s *ListingService) Delete(ctx context.Context, owner models.User, id string) error {
	if _, err := s.ownedListing(ctx, owner, id); err != nil {
		return err
	}
	return s.listings.SetActive(ctx, id, false)
}

// UploadImage stores a logo or banner in the object store and records its
// public URL on the listing.
func (s *ListingService) UploadImage(ctx context.Context, owner models.User, id string, slot string, reader io.Reader, size int64, contentType string) (string, error) {
	if slot != "logo" && slot != "banner" {
		return "", fmt.Errorf("unknown image slot %q", slot)
	}

	listing, err := s.ownedListing(ctx, owner, id)
	if err != nil {
		return "", err
	}

	objectKey := fmt.Sprintf("listings/%s/%s-%d", listing.ID, slot, s.now().UnixMilli())
	url, err := s.media.UploadImage(ctx, objectKey, reader, size, contentType)
	if err != nil {
		return "", fmt.Errorf("upload listing image: %w", err)
	}

	var logoURL, bannerURL *string
	if slot == "logo" {
		logoURL = &url
	} else {
		bannerURL = &url
	}
	if err := s.listings.SetMediaURLs(ctx, listing.ID, logoURL, bannerURL); err != nil {
		return "", err
	}
	return url, nil
}

func (s *ListingService) ownedListing(ctx context.Context, owner models.User, id string) (models.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return models.Listing{}, err
	}
	if listing.OwnerID != owner.ID {
		return models.Listing{}, ErrNotOwner
	}
	return listing, nil
}
