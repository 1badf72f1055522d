package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"localmart/api/internal/ids"
	"localmart/api/internal/models"
	"localmart/api/internal/payment"
)

var (
	ErrInvalidPlan          = errors.New("invalid plan type")
	ErrNotBusinessRole      = errors.New("role has no subscription plan")
	ErrInvalidSignature     = errors.New("invalid payment signature")
	ErrPaymentReplayed      = errors.New("payment already processed")
	ErrNoActiveSubscription = errors.New("no active subscription")
)

// Pricing per role and plan, in paise.
var planPricing = map[models.UserRole]map[models.PlanType]int64{
	models.UserRoleFreelancer: {models.PlanTypeMonthly: 10000, models.PlanTypeYearly: 100000},
	models.UserRoleSeller:     {models.PlanTypeMonthly: 20000, models.PlanTypeYearly: 200000},
	models.UserRoleRestaurant: {models.PlanTypeMonthly: 20000, models.PlanTypeYearly: 200000},
}

func planDuration(plan models.PlanType) time.Duration {
	if plan == models.PlanTypeYearly {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

type SubscriptionUserRepo interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	ActivateSubscription(ctx context.Context, id string, subscriptionID string, expiresAt time.Time) error
	CancelSubscription(ctx context.Context, id string, cancelledAt time.Time) error
}

type SubscriptionAuditRepo interface {
	Create(ctx context.Context, sub models.Subscription) error
	ExistsByPayment(ctx context.Context, orderID, paymentID string) (bool, error)
	MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) error
}

type ListingVisibilityRepo interface {
	SetSubscriptionActiveForOwner(ctx context.Context, ownerID string, active bool) error
}

type OrderProvider interface {
	CreateOrder(ctx context.Context, req payment.CreateOrderRequest) (*payment.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*payment.Order, error)
	KeyID() string
}

type StatusStore interface {
	Get(ctx context.Context, userID string) (models.SubscriptionState, bool, error)
	Set(ctx context.Context, userID string, state models.SubscriptionState) error
	Invalidate(ctx context.Context, userID string) error
}

// SubscriptionService owns the trial/paid state machine transitions driven
// by payment events, and serves the live subscription state the visibility
// gate reads.
type SubscriptionService struct {
	users     SubscriptionUserRepo
	audit     SubscriptionAuditRepo
	listings  ListingVisibilityRepo
	provider  OrderProvider
	status    StatusStore
	keySecret string
	log       zerolog.Logger
	now       func() time.Time
}

func NewSubscriptionService(
	users SubscriptionUserRepo,
	audit SubscriptionAuditRepo,
	listings ListingVisibilityRepo,
	provider OrderProvider,
	status StatusStore,
	keySecret string,
	log zerolog.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		users:     users,
		audit:     audit,
		listings:  listings,
		provider:  provider,
		status:    status,
		keySecret: keySecret,
		log:       log,
		now:       time.Now,
	}
}

type OrderHandle struct {
	OrderID  string
	Amount   int64
	Currency string
	KeyID    string
}

func (s *SubscriptionService) CreateOrder(ctx context.Context, user models.User, plan models.PlanType) (OrderHandle, error) {
	if !plan.Valid() {
		return OrderHandle{}, ErrInvalidPlan
	}
	rolePricing, ok := planPricing[user.Role]
	if !ok {
		return OrderHandle{}, ErrNotBusinessRole
	}
	amount := rolePricing[plan]

	order, err := s.provider.CreateOrder(ctx, payment.CreateOrderRequest{
		Amount:   amount,
		Currency: "INR",
		Receipt:  fmt.Sprintf("sub_%d", s.now().UnixMilli()),
		Notes: map[string]string{
			"userId":   user.ID,
			"planType": string(plan),
			"userRole": string(user.Role),
		},
	})
	if err != nil {
		// Payment errors are always surfaced, never retried silently.
		return OrderHandle{}, fmt.Errorf("create subscription order: %w", err)
	}

	s.log.Info().
		Str("user_id", user.ID).
		Str("order_id", order.ID).
		Int64("amount", order.Amount).
		Msg("subscription order created")

	return OrderHandle{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    s.provider.KeyID(),
	}, nil
}

type VerifyPaymentInput struct {
	OrderID   string
	PaymentID string
	Signature string
}

// VerifyPayment checks the provider signature and, only then, records the
// payment and applies the Paid transition: audit record, account state,
// listing visibility, cache invalidation. An invalid or replayed request
// mutates nothing.
func (s *SubscriptionService) VerifyPayment(ctx context.Context, user models.User, input VerifyPaymentInput) error {
	if !payment.VerifySignature(s.keySecret, input.OrderID, input.PaymentID, input.Signature) {
		s.log.Warn().
			Str("user_id", user.ID).
			Str("order_id", input.OrderID).
			Str("payment_id", input.PaymentID).
			Msg("payment signature verification failed")
		return ErrInvalidSignature
	}

	replayed, err := s.audit.ExistsByPayment(ctx, input.OrderID, input.PaymentID)
	if err != nil {
		return err
	}
	if replayed {
		return ErrPaymentReplayed
	}

	order, err := s.provider.FetchOrder(ctx, input.OrderID)
	if err != nil {
		return fmt.Errorf("fetch order for verification: %w", err)
	}

	plan := models.PlanType(order.Notes["planType"])
	if !plan.Valid() {
		plan = models.PlanTypeYearly
	}
	role := models.UserRole(order.Notes["userRole"])
	if !role.Valid() {
		role = user.Role
	}
	if expected := planPricing[role][plan]; expected != 0 && order.Amount != expected {
		s.log.Error().
			Str("order_id", order.ID).
			Int64("expected", expected).
			Int64("received", order.Amount).
			Msg("order amount does not match plan pricing")
	}

	start := s.now()
	end := start.Add(planDuration(plan))

	sub := models.Subscription{
		ID:        ids.New(),
		UserID:    user.ID,
		PlanType:  plan,
		Amount:    order.Amount,
		Status:    models.SubscriptionStatusActive,
		StartDate: start,
		EndDate:   end,
		OrderID:   input.OrderID,
		PaymentID: input.PaymentID,
		Signature: input.Signature,
	}
	if err := s.audit.Create(ctx, sub); err != nil {
		return fmt.Errorf("record subscription: %w", err)
	}

	if err := s.users.ActivateSubscription(ctx, user.ID, sub.ID, end); err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}

	if err := s.listings.SetSubscriptionActiveForOwner(ctx, user.ID, true); err != nil {
		// The daily sweep cannot fix a false negative here, but the gate's
		// self-heal path will on the next direct fetch.
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to re-show listings after payment")
	}

	if err := s.status.Invalidate(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("status cache invalidation failed")
	}

	s.log.Info().
		Str("user_id", user.ID).
		Str("subscription_id", sub.ID).
		Str("plan", string(plan)).
		Time("expires_at", end).
		Msg("subscription activated")

	return nil
}

// Cancel records a do-not-renew request. Access continues until the natural
// expiry date; nothing about listing visibility changes here, the sweep
// hides the listings after expires_at passes.
func (s *SubscriptionService) Cancel(ctx context.Context, user models.User) error {
	if !user.Subscription.IsSubscribed {
		return ErrNoActiveSubscription
	}

	now := s.now()
	if err := s.users.CancelSubscription(ctx, user.ID, now); err != nil {
		return err
	}

	if user.Subscription.SubscriptionID != nil {
		if err := s.audit.MarkCancelled(ctx, *user.Subscription.SubscriptionID, now); err != nil {
			s.log.Warn().Err(err).
				Str("subscription_id", *user.Subscription.SubscriptionID).
				Msg("failed to mark audit record cancelled")
		}
	}

	if err := s.status.Invalidate(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("status cache invalidation failed")
	}

	s.log.Info().Str("user_id", user.ID).Msg("subscription cancelled, access until expiry")
	return nil
}

// State returns the account's subscription sub-record, served from the
// short-TTL cache when possible. Cache entries are invalidated on every
// transition, so this is the live state the gate requires.
func (s *SubscriptionService) State(ctx context.Context, userID string) (models.SubscriptionState, error) {
	state, ok, err := s.status.Get(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("status cache read failed")
	} else if ok {
		return state, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.SubscriptionState{}, err
	}

	if err := s.status.Set(ctx, userID, user.Subscription); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("status cache write failed")
	}
	return user.Subscription, nil
}

type SubscriptionStatus struct {
	IsSubscribed  bool
	IsTrialActive bool
	TrialEndsAt   *time.Time
	ExpiresAt     *time.Time
}

func (s *SubscriptionService) Status(ctx context.Context, userID string) (SubscriptionStatus, error) {
	state, err := s.State(ctx, userID)
	if err != nil {
		return SubscriptionStatus{}, err
	}

	now := s.now()
	return SubscriptionStatus{
		IsSubscribed:  state.IsSubscribed && state.ExpiresAt != nil && state.ExpiresAt.After(now),
		IsTrialActive: state.TrialActiveAt(now),
		TrialEndsAt:   state.TrialEndsAt,
		ExpiresAt:     state.ExpiresAt,
	}, nil
}
