package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/infrastructure/lemonsqueezy"
)

const checkoutReturnPath = "/dashboard/billing?checkout=success"

type Service interface {
	// Get returns nil, nil when the organization has no subscription yet.
	Get(ctx context.Context, userID string) (*domain.Subscription, error)
	Checkout(ctx context.Context, userID, plan string) (string, error)

	EarlyAdopterStatus(ctx context.Context, userID string) (*domain.EarlyAdopterStatus, error)
	ClaimEarlyAdopter(ctx context.Context, userID string) (*domain.ClaimResult, error)
}

type profileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	CountActiveByOrganization(ctx context.Context, orgID string) (int, error)
}

type subscriptionStore interface {
	Get(ctx context.Context, orgID string) (*domain.Subscription, error)
	PutIfAbsent(ctx context.Context, s *domain.Subscription) error
}

type slotStore interface {
	Claim(ctx context.Context, orgID, userID string, total int) error
	Status(ctx context.Context, orgID string, total int) (*domain.EarlyAdopterStatus, error)
}

type checkoutCreator interface {
	CreateCheckout(ctx context.Context, req lemonsqueezy.CheckoutRequest) (string, error)
}

type service struct {
	profiles      profileStore
	subscriptions subscriptionStore
	slots         slotStore
	payments      checkoutCreator
	variants      map[string]string
	appURL        string
	totalSlots    int
	now           func() time.Time
}

type ServiceDeps struct {
	ProfileRepo      profileStore
	SubscriptionRepo subscriptionStore
	EarlyAdopterRepo slotStore
	Payments         checkoutCreator
	PlanVariants     map[string]string
	AppURL           string
	TotalSlots       int
}

func NewService(deps ServiceDeps) Service {
	return &service{
		profiles:      deps.ProfileRepo,
		subscriptions: deps.SubscriptionRepo,
		slots:         deps.EarlyAdopterRepo,
		payments:      deps.Payments,
		variants:      deps.PlanVariants,
		appURL:        deps.AppURL,
		totalSlots:    deps.TotalSlots,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) profile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("profile not found: %w", domain.ErrUnauthorized)
	}
	return p, err
}

func (s *service) member(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.OrgID() == "" || !p.IsActive {
		return nil, fmt.Errorf("no organization: %w", domain.ErrForbidden)
	}
	return p, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	p, err := s.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subscriptions.Get(ctx, p.OrgID())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	users, err := s.profiles.CountActiveByOrganization(ctx, p.OrgID())
	if err != nil {
		return nil, err
	}
	sub.UsersCount = users
	return sub, nil
}

// Checkout creates a hosted checkout for plan and returns its URL.
func (s *service) Checkout(ctx context.Context, userID, plan string) (string, error) {
	if !domain.IsPaidPlan(plan) {
		return "", fmt.Errorf("unknown plan %q: %w", plan, domain.ErrBadRequest)
	}
	p, err := s.member(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := domain.CanBill(p.Role); err != nil {
		return "", err
	}
	variant, ok := s.variants[plan]
	if !ok || variant == "" {
		return "", fmt.Errorf("plan %s is not configured: %w", plan, domain.ErrUnavailable)
	}
	url, err := s.payments.CreateCheckout(ctx, lemonsqueezy.CheckoutRequest{
		VariantID:      variant,
		OrganizationID: p.OrgID(),
		UserID:         p.UserID,
		RedirectURL:    s.appURL + checkoutReturnPath,
	})
	if err != nil {
		slog.Error("checkout creation failed", "organization_id", p.OrgID(), "plan", plan, "err", err)
		return "", err
	}
	return url, nil
}

func (s *service) EarlyAdopterStatus(ctx context.Context, userID string) (*domain.EarlyAdopterStatus, error) {
	p, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	orgID := ""
	if p.IsActive {
		orgID = p.OrgID()
	}
	return s.slots.Status(ctx, orgID, s.totalSlots)
}

// ClaimEarlyAdopter takes one slot for the caller's organization and grants the free plan.
// Exhausted slots and repeat claims come back as wrapped domain.ErrConflict.
func (s *service) ClaimEarlyAdopter(ctx context.Context, userID string) (*domain.ClaimResult, error) {
	p, err := s.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := domain.CanClaimEarlyAdopter(p.Role); err != nil {
		return nil, err
	}
	orgID := p.OrgID()
	if err := s.slots.Claim(ctx, orgID, p.UserID, s.totalSlots); err != nil {
		return nil, err
	}

	sub := domain.NewSubscription(orgID, domain.PlanFree, s.now())
	if err := s.subscriptions.PutIfAbsent(ctx, sub); err != nil && !errors.Is(err, domain.ErrConflict) {
		slog.Error("failed to create early adopter subscription", "organization_id", orgID, "err", err)
	}
	return &domain.ClaimResult{Success: true, Message: "Early adopter slot claimed"}, nil
}
