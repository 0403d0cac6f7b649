package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/pkg/id"
)

// Service issues and revokes signed-in sessions. A token is only honoured
// while its session row stays enabled.
type Service interface {
	Start(ctx context.Context, userID string) (token string, err error)
	Check(ctx context.Context, userID, sessionID string) error
	End(ctx context.Context, sessionID string) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
}

type tokenSigner interface {
	Sign(userID, sessionID string) (string, error)
}

type service struct {
	repo   sessionStore
	signer tokenSigner
}

func NewService(repo sessionStore, signer tokenSigner) Service {
	return &service{repo: repo, signer: signer}
}

func (s *service) Start(ctx context.Context, userID string) (string, error) {
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID: id.New(),
		UserID:    userID,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Put(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return s.signer.Sign(userID, sess.SessionID)
}

func (s *service) Check(ctx context.Context, userID, sessionID string) error {
	sess, err := s.repo.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("session not found: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return err
	}
	if !sess.Enable || sess.UserID != userID {
		return fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	return nil
}

func (s *service) End(ctx context.Context, sessionID string) error {
	return s.repo.Disable(ctx, sessionID)
}
