package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"localmart/api/internal/models"
)

var (
	ErrInvalidRole = errors.New("invalid role")
)

type AccountUserRepo interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	StartTrial(ctx context.Context, id string, role models.UserRole, trialEndsAt time.Time) (bool, error)
}

type AccountListingRepo interface {
	ExistsByOwnerKind(ctx context.Context, ownerID string, kind models.ListingKind) (bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error)
}

type StatusInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// AccountService handles role transitions, including the one-time trial
// grant consumed when a customer first adopts a business role.
type AccountService struct {
	users       AccountUserRepo
	listings    AccountListingRepo
	status      StatusInvalidator
	trialPeriod time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

func NewAccountService(
	users AccountUserRepo,
	listings AccountListingRepo,
	status StatusInvalidator,
	trialPeriod time.Duration,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		users:       users,
		listings:    listings,
		status:      status,
		trialPeriod: trialPeriod,
		log:         log,
		now:         time.Now,
	}
}

type RoleChangeResult struct {
	TrialStarted       bool
	TrialActive        bool
	TrialDaysRemaining int
	User               models.User
}

// ChangeRole updates the account's role. The first time a business role is
// adopted it also starts the trial; the has_used_trial guard (enforced in
// the same update statement) makes this fire at most once per account
// lifetime, however often the role is toggled afterwards.
func (s *AccountService) ChangeRole(ctx context.Context, userID string, role models.UserRole) (RoleChangeResult, error) {
	if !role.Valid() || role == models.UserRoleAdmin {
		return RoleChangeResult{}, ErrInvalidRole
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return RoleChangeResult{}, err
	}

	now := s.now()
	trialStarted := false

	if role.IsBusiness() && !user.Subscription.HasUsedTrial {
		trialEndsAt := now.Add(s.trialPeriod)
		started, err := s.users.StartTrial(ctx, userID, role, trialEndsAt)
		if err != nil {
			return RoleChangeResult{}, err
		}
		if started {
			trialStarted = true
			user.Subscription.HasUsedTrial = true
			user.Subscription.TrialEndsAt = &trialEndsAt
			s.log.Info().
				Str("user_id", userID).
				Str("role", string(role)).
				Time("trial_ends_at", trialEndsAt).
				Msg("trial started on role adoption")
		} else {
			// Lost a race with another adoption; the trial was already
			// consumed, so this becomes a plain role change.
			if err := s.users.UpdateRole(ctx, userID, role); err != nil {
				return RoleChangeResult{}, err
			}
			// The winner wrote trial state this request never saw. Reload so
			// the response reports the running trial, not the stale snapshot.
			user, err = s.users.GetByID(ctx, userID)
			if err != nil {
				return RoleChangeResult{}, err
			}
		}
	} else {
		if err := s.users.UpdateRole(ctx, userID, role); err != nil {
			return RoleChangeResult{}, err
		}
	}
	user.Role = role

	if err := s.status.Invalidate(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("status cache invalidation failed")
	}

	return RoleChangeResult{
		TrialStarted:       trialStarted,
		TrialActive:        user.Subscription.TrialActiveAt(now),
		TrialDaysRemaining: trialDaysRemaining(user.Subscription, now),
		User:               user,
	}, nil
}

// CanBecome reports whether the account may still create a listing of the
// given kind: one account owns at most one listing per kind.
func (s *AccountService) CanBecome(ctx context.Context, userID string, kind models.ListingKind) (bool, string, error) {
	if !kind.Valid() {
		return false, "", ErrInvalidRole
	}

	exists, err := s.listings.ExistsByOwnerKind(ctx, userID, kind)
	if err != nil {
		return false, "", err
	}
	if exists {
		return false, "account already has a " + string(kind) + " listing", nil
	}
	return true, "", nil
}

type AccountStatus struct {
	User     models.User
	Listings []models.Listing
}

func (s *AccountService) Status(ctx context.Context, userID string) (AccountStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return AccountStatus{}, err
	}
	listings, err := s.listings.ListByOwner(ctx, userID)
	if err != nil {
		return AccountStatus{}, err
	}
	return AccountStatus{User: user, Listings: listings}, nil
}

func trialDaysRemaining(state models.SubscriptionState, now time.Time) int {
	if state.TrialEndsAt == nil || !state.TrialEndsAt.After(now) {
		return 0
	}
	remaining := state.TrialEndsAt.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}
