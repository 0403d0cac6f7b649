package waitlist

import (
	"context"
	"strings"
	"time"

	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/pkg/validate"
)

type Service interface {
	Join(ctx context.Context, req domain.JoinWaitlistRequest) (*domain.WaitlistEntry, error)
}

type waitlistStore interface {
	PutIfAbsent(ctx context.Context, e *domain.WaitlistEntry) error
}

type service struct {
	repo waitlistStore
	now  func() time.Time
}

func NewService(repo waitlistStore) Service {
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Join records an email once; a repeat comes back as domain.ErrConflict.
func (s *service) Join(ctx context.Context, req domain.JoinWaitlistRequest) (*domain.WaitlistEntry, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Email(email); err != nil {
		return nil, err
	}
	e := &domain.WaitlistEntry{Email: email, Source: req.Source, CreatedAt: s.now()}
	if err := s.repo.PutIfAbsent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}
