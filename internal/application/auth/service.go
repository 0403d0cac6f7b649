package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/infrastructure/google"
	"github.com/sealdrop-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// Result is what a successful sign-up or sign-in hands back to the client.
type Result struct {
	Token   string
	Profile *domain.Profile
}

type Service interface {
	SignUp(ctx context.Context, req domain.SignUpRequest) (*Result, error)
	SignIn(ctx context.Context, req domain.SignInRequest) (*Result, error)
	GoogleSignIn(ctx context.Context, idToken string) (*Result, error)
	SignOut(ctx context.Context, sessionID string) error
	GetUser(ctx context.Context, userID string) (*domain.Profile, error)
}

type profileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	GetByGoogleSub(ctx context.Context, sub string) (*domain.Profile, error)
	Put(ctx context.Context, p *domain.Profile) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type organizationStore interface {
	Put(ctx context.Context, o *domain.Organization) error
}

type sessionStarter interface {
	Start(ctx context.Context, userID string) (string, error)
	End(ctx context.Context, sessionID string) error
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Identity, error)
}

type service struct {
	profiles      profileStore
	organizations organizationStore
	sessions      sessionStarter
	google        googleVerifier
}

type ServiceDeps struct {
	ProfileRepo      profileStore
	OrganizationRepo organizationStore
	Sessions         sessionStarter
	Google           googleVerifier
}

func NewService(deps ServiceDeps) Service {
	return &service{
		profiles:      deps.ProfileRepo,
		organizations: deps.OrganizationRepo,
		sessions:      deps.Sessions,
		google:        deps.Google,
	}
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (s *service) SignUp(ctx context.Context, req domain.SignUpRequest) (*Result, error) {
	email := normalizeEmail(req.Email)
	if _, err := s.profiles.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p := &domain.Profile{
		UserID:       id.New(),
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(hash),
		AuthProvider: domain.AuthProviderLocal,
		Role:         domain.RoleMember,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.OrganizationName != nil {
		org := &domain.Organization{
			OrganizationID: id.New(),
			Name:           strings.TrimSpace(*req.OrganizationName),
			OwnerID:        p.UserID,
			CreatedAt:      now,
		}
		if err := s.organizations.Put(ctx, org); err != nil {
			return nil, fmt.Errorf("create organization: %w", err)
		}
		p.OrganizationID = &org.OrganizationID
		p.Role = domain.RoleOwner
	}
	if err := s.profiles.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return s.startSession(ctx, p)
}

func (s *service) SignIn(ctx context.Context, req domain.SignInRequest) (*Result, error) {
	p, err := s.profiles.GetByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if p.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)) != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	// Removed members have no organization and may still sign in to accept a new invitation.
	if !p.IsActive && p.OrganizationID != nil {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}
	return s.startSession(ctx, p)
}

// GoogleSignIn signs in the profile linked to the Google subject. An existing
// email-only profile is linked on first use; otherwise a new profile is created.
func (s *service) GoogleSignIn(ctx context.Context, idToken string) (*Result, error) {
	ident, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.GetByGoogleSub(ctx, ident.Sub)
	if err == nil {
		return s.startSession(ctx, p)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	p, err = s.profiles.GetByEmail(ctx, ident.Email)
	switch {
	case err == nil:
		if err := s.profiles.Update(ctx, p.UserID, map[string]interface{}{"google_sub": ident.Sub}); err != nil {
			return nil, fmt.Errorf("link google account: %w", err)
		}
		p.GoogleSub = ident.Sub
		slog.Info("linked google account", "user_id", p.UserID)
	case errors.Is(err, domain.ErrNotFound):
		now := time.Now().UTC()
		p = &domain.Profile{
			UserID:       id.New(),
			Email:        ident.Email,
			FullName:     ident.FullName,
			AuthProvider: domain.AuthProviderGoogle,
			GoogleSub:    ident.Sub,
			Role:         domain.RoleMember,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.profiles.Put(ctx, p); err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
	default:
		return nil, err
	}
	return s.startSession(ctx, p)
}

func (s *service) SignOut(ctx context.Context, sessionID string) error {
	return s.sessions.End(ctx, sessionID)
}

func (s *service) GetUser(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("user not found: %w", domain.ErrUnauthorized)
	}
	return p, err
}

func (s *service) startSession(ctx context.Context, p *domain.Profile) (*Result, error) {
	tok, err := s.sessions.Start(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return &Result{Token: tok, Profile: p}, nil
}
