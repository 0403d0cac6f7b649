package organization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/infrastructure/smtp"
	"github.com/sealdrop-api/internal/pkg/id"
	"github.com/sealdrop-api/internal/pkg/token"
)

const fieldRole = "role"

// Service manages membership and invitations. Every call re-reads the
// caller's profile, so role changes apply immediately.
type Service interface {
	ListMembers(ctx context.Context, userID string) ([]domain.Profile, error)
	ChangeRole(ctx context.Context, userID, memberID string, role domain.Role) (*domain.Profile, error)
	RemoveMember(ctx context.Context, userID, memberID string) error

	ListInvitations(ctx context.Context, userID string) ([]domain.OrganizationInvitation, error)
	Invite(ctx context.Context, userID string, req domain.CreateInvitationRequest) (*domain.OrganizationInvitation, error)
	CancelInvitation(ctx context.Context, userID, invitationID string) error
	AcceptInvitation(ctx context.Context, userID, token string) (*domain.Profile, error)
}

type profileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	ListByOrganization(ctx context.Context, orgID string) ([]domain.Profile, error)
	CountActiveByOrganization(ctx context.Context, orgID string) (int, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	RemoveFromOrganization(ctx context.Context, userID string) error
	JoinOrganization(ctx context.Context, userID, orgID string, role domain.Role) error
}

type organizationStore interface {
	Get(ctx context.Context, orgID string) (*domain.Organization, error)
}

type invitationStore interface {
	Put(ctx context.Context, inv *domain.OrganizationInvitation) error
	Get(ctx context.Context, invitationID string) (*domain.OrganizationInvitation, error)
	GetByTokenHash(ctx context.Context, hash string) (*domain.OrganizationInvitation, error)
	ListPending(ctx context.Context, orgID string) ([]domain.OrganizationInvitation, error)
	MarkAccepted(ctx context.Context, invitationID string) error
	Delete(ctx context.Context, invitationID string) error
}

type subscriptionStore interface {
	Get(ctx context.Context, orgID string) (*domain.Subscription, error)
}

type notifier interface {
	SendInvitation(to string, d smtp.InvitationData) error
}

type service struct {
	profiles      profileStore
	organizations organizationStore
	invitations   invitationStore
	subscriptions subscriptionStore
	notifier      notifier
	now           func() time.Time
}

type ServiceDeps struct {
	ProfileRepo      profileStore
	OrganizationRepo organizationStore
	InvitationRepo   invitationStore
	SubscriptionRepo subscriptionStore
	Notifier         notifier
}

func NewService(deps ServiceDeps) Service {
	return &service{
		profiles:      deps.ProfileRepo,
		organizations: deps.OrganizationRepo,
		invitations:   deps.InvitationRepo,
		subscriptions: deps.SubscriptionRepo,
		notifier:      deps.Notifier,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// actor returns the caller's profile, which must belong to an organization.
func (s *service) actor(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("profile not found: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if p.OrgID() == "" || !p.IsActive {
		return nil, fmt.Errorf("no organization: %w", domain.ErrForbidden)
	}
	return p, nil
}

// colleague loads memberID and hides anyone outside orgID behind ErrNotFound.
func (s *service) colleague(ctx context.Context, orgID, memberID string) (*domain.Profile, error) {
	p, err := s.profiles.Get(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if !p.InOrganization(orgID) {
		return nil, fmt.Errorf("member not found: %w", domain.ErrNotFound)
	}
	return p, nil
}

func (s *service) ListMembers(ctx context.Context, userID string) ([]domain.Profile, error) {
	a, err := s.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.profiles.ListByOrganization(ctx, a.OrgID())
}

func (s *service) ChangeRole(ctx context.Context, userID, memberID string, role domain.Role) (*domain.Profile, error) {
	a, err := s.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	target, err := s.colleague(ctx, a.OrgID(), memberID)
	if err != nil {
		return nil, err
	}
	if err := domain.CanChangeRole(a.Role, target.Role, role, a.UserID == target.UserID); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(ctx, target.UserID, map[string]interface{}{fieldRole: string(role)}); err != nil {
		return nil, err
	}
	target.Role = role
	return target, nil
}

func (s *service) RemoveMember(ctx context.Context, userID, memberID string) error {
	a, err := s.actor(ctx, userID)
	if err != nil {
		return err
	}
	target, err := s.colleague(ctx, a.OrgID(), memberID)
	if err != nil {
		return err
	}
	if err := domain.CanRemoveMember(a.Role, target.Role, a.UserID == target.UserID); err != nil {
		return err
	}
	return s.profiles.RemoveFromOrganization(ctx, target.UserID)
}

func (s *service) ListInvitations(ctx context.Context, userID string) ([]domain.OrganizationInvitation, error) {
	a, err := s.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := domain.CanManageInvitations(a.Role); err != nil {
		return nil, err
	}
	return s.invitations.ListPending(ctx, a.OrgID())
}

func (s *service) Invite(ctx context.Context, userID string, req domain.CreateInvitationRequest) (*domain.OrganizationInvitation, error) {
	a, err := s.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := domain.CanManageInvitations(a.Role); err != nil {
		return nil, err
	}
	if !req.Role.Assignable() {
		return nil, fmt.Errorf("role must be member or admin: %w", domain.ErrBadRequest)
	}
	orgID := a.OrgID()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if existing, err := s.profiles.GetByEmail(ctx, email); err == nil && existing.InOrganization(orgID) {
		return nil, fmt.Errorf("%s is already a member: %w", email, domain.ErrConflict)
	}
	pending, err := s.invitations.ListPending(ctx, orgID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	open := 0
	for _, inv := range pending {
		if inv.ExpiresAt.Before(now) {
			continue
		}
		if strings.EqualFold(inv.Email, email) {
			return nil, fmt.Errorf("%s already has a pending invitation: %w", email, domain.ErrConflict)
		}
		open++
	}
	if err := s.checkSeats(ctx, orgID, open); err != nil {
		return nil, err
	}

	tok, err := token.NewOpaque()
	if err != nil {
		return nil, err
	}
	inv := &domain.OrganizationInvitation{
		InvitationID:   id.New(),
		OrganizationID: orgID,
		Email:          email,
		Role:           req.Role,
		InvitedBy:      a.UserID,
		TokenHash:      token.Hash(tok),
		ExpiresAt:      now.Add(domain.InvitationTTL),
		CreatedAt:      now,
	}
	if err := s.invitations.Put(ctx, inv); err != nil {
		return nil, err
	}
	s.sendInvitation(ctx, a, inv, tok)
	return inv, nil
}

// checkSeats refuses an invitation that could push membership past the plan's user limit.
func (s *service) checkSeats(ctx context.Context, orgID string, pending int) error {
	sub, err := s.subscriptions.Get(ctx, orgID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sub.UsersLimit == 0 {
		return nil
	}
	members, err := s.profiles.CountActiveByOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if members+pending >= sub.UsersLimit {
		return fmt.Errorf("plan allows %d users: %w", sub.UsersLimit, domain.ErrQuotaExceeded)
	}
	return nil
}

func (s *service) sendInvitation(ctx context.Context, inviter *domain.Profile, inv *domain.OrganizationInvitation, tok string) {
	orgName := "your team"
	if org, err := s.organizations.Get(ctx, inv.OrganizationID); err == nil {
		orgName = org.Name
	}
	inviterName := inviter.FullName
	if inviterName == "" {
		inviterName = inviter.Email
	}
	err := s.notifier.SendInvitation(inv.Email, smtp.InvitationData{
		OrganizationName: orgName,
		InviterName:      inviterName,
		Role:             string(inv.Role),
		Token:            tok,
		ExpiresOn:        inv.ExpiresAt.Format("2006-01-02"),
	})
	if err != nil {
		slog.Warn("failed to email invitation", "invitation_id", inv.InvitationID, "err", err)
	}
}

func (s *service) CancelInvitation(ctx context.Context, userID, invitationID string) error {
	a, err := s.actor(ctx, userID)
	if err != nil {
		return err
	}
	if err := domain.CanManageInvitations(a.Role); err != nil {
		return err
	}
	inv, err := s.invitations.Get(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.OrganizationID != a.OrgID() {
		return fmt.Errorf("invitation not found: %w", domain.ErrNotFound)
	}
	return s.invitations.Delete(ctx, invitationID)
}

// AcceptInvitation joins the caller to the inviting organization with the invited role.
func (s *service) AcceptInvitation(ctx context.Context, userID, tok string) (*domain.Profile, error) {
	inv, err := s.invitations.GetByTokenHash(ctx, token.Hash(tok))
	if err != nil {
		return nil, err
	}
	if inv.Accepted {
		return nil, fmt.Errorf("invitation already accepted: %w", domain.ErrConflict)
	}
	if !s.now().Before(inv.ExpiresAt) {
		return nil, fmt.Errorf("invitation expired: %w", domain.ErrForbidden)
	}
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(p.Email), inv.Email) {
		return nil, fmt.Errorf("invitation was sent to another email: %w", domain.ErrForbidden)
	}
	if p.IsActive && p.OrgID() != "" {
		return nil, fmt.Errorf("already a member of an organization: %w", domain.ErrConflict)
	}
	if err := s.invitations.MarkAccepted(ctx, inv.InvitationID); err != nil {
		return nil, err
	}
	if err := s.profiles.JoinOrganization(ctx, p.UserID, inv.OrganizationID, inv.Role); err != nil {
		return nil, err
	}
	orgID := inv.OrganizationID
	p.OrganizationID = &orgID
	p.Role = inv.Role
	p.IsActive = true
	return p, nil
}
