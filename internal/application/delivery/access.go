package delivery

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/infrastructure/smtp"
	"github.com/sealdrop-api/internal/pkg/token"
	"github.com/sealdrop-api/internal/pkg/validate"
)

// DownloadURLTTL bounds the lifetime of a presigned download link.
const DownloadURLTTL = 5 * time.Minute

// AccessRequested reports a stored access code. Warning is set when the code
// could not be emailed.
type AccessRequested struct {
	ExpiresAt time.Time
	Warning   string
}

// Access is what a recipient receives after proving the access code.
type Access struct {
	Delivery       *domain.Delivery
	Token          string
	TokenExpiresAt time.Time
}

type Download struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expires_at"`
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// RequestAccess issues a fresh six-digit code to the delivery's recipient.
// Any previous code for the same recipient is replaced.
func (s *service) RequestAccess(ctx context.Context, deliveryID, email string) (*AccessRequested, error) {
	email = normalizeEmail(email)
	if err := validate.Email(email); err != nil {
		return nil, err
	}
	d, err := s.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if !d.MatchesRecipient(email) {
		return nil, fmt.Errorf("email does not match the delivery recipient: %w", domain.ErrForbidden)
	}
	now := s.now()
	if !d.Accessible(now) {
		return nil, fmt.Errorf("delivery is no longer available: %w", domain.ErrForbidden)
	}

	code, err := token.NewAccessCode()
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(domain.AccessCodeTTL)
	if err := s.codes.Put(ctx, &domain.AccessCode{
		DeliveryID:   deliveryID,
		Email:        email,
		Code:         code,
		ExpiresAt:    expiresAt.Unix(),
		AttemptsLeft: domain.AccessCodeMaxAttempts,
		CreatedAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("store access code: %w", err)
	}

	res := &AccessRequested{ExpiresAt: expiresAt}
	err = s.notifier.SendAccessCode(email, smtp.AccessCodeData{
		DeliveryID:    deliveryID,
		DeliveryTitle: d.Title,
		SenderName:    s.senderName(ctx, d.SenderID),
		Code:          code,
		ValidMinutes:  int(domain.AccessCodeTTL / time.Minute),
		Attempts:      domain.AccessCodeMaxAttempts,
	})
	if err != nil {
		slog.Warn("failed to email access code", "delivery_id", deliveryID, "err", err)
		res.Warning = "access code created but the email could not be sent"
	}
	return res, nil
}

func (s *service) senderName(ctx context.Context, senderID string) string {
	p, err := s.profiles.Get(ctx, senderID)
	if err != nil {
		return "A Sealdrop user"
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

// VerifyAccess checks a recipient's code. A correct code is consumed, counts
// one view and yields a short-lived download grant.
func (s *service) VerifyAccess(ctx context.Context, deliveryID string, req domain.VerifyAccessRequest) (*Access, error) {
	email := normalizeEmail(req.Email)
	c, err := s.codes.Get(ctx, deliveryID, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no access code was requested: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	if c.ExpiresAt <= now.Unix() {
		return nil, fmt.Errorf("access code expired: %w", domain.ErrForbidden)
	}
	if c.AttemptsLeft <= 0 {
		return nil, fmt.Errorf("no attempts left: %w", domain.ErrForbidden)
	}
	// The attempt is burned before comparing so concurrent guesses share the budget.
	left, err := s.codes.ConsumeAttempt(ctx, deliveryID, email)
	if err != nil {
		return nil, err
	}
	guess := strings.TrimSpace(req.Code)
	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(guess)) != 1 {
		return nil, fmt.Errorf("invalid access code, %d attempts left: %w", left, domain.ErrUnauthorized)
	}
	if err := s.codes.Redeem(ctx, deliveryID, email, guess); err != nil {
		return nil, err
	}

	d, err := s.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if !d.Accessible(now) || !d.MatchesRecipient(email) {
		return nil, fmt.Errorf("delivery is no longer available: %w", domain.ErrForbidden)
	}
	if d, err = s.deliveries.IncrementViews(ctx, deliveryID); err != nil {
		return nil, err
	}
	if d.Files, err = s.deliveries.ListFiles(ctx, deliveryID); err != nil {
		return nil, err
	}
	tok, exp, err := s.grants.SignGrant(deliveryID, email)
	if err != nil {
		return nil, err
	}
	return &Access{Delivery: d, Token: tok, TokenExpiresAt: exp}, nil
}

// DownloadURL counts one download against the delivery and returns a presigned link.
func (s *service) DownloadURL(ctx context.Context, grant, deliveryID, fileID string) (*Download, error) {
	claims, err := s.grants.VerifyGrant(grant)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired access grant: %w", domain.ErrUnauthorized)
	}
	if claims.DeliveryID != deliveryID {
		return nil, fmt.Errorf("grant is for another delivery: %w", domain.ErrForbidden)
	}
	f, err := s.deliveries.GetFile(ctx, deliveryID, fileID)
	if err != nil {
		return nil, err
	}
	d, err := s.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if !d.Accessible(s.now()) {
		return nil, fmt.Errorf("delivery is no longer available: %w", domain.ErrForbidden)
	}
	if _, err := s.deliveries.IncrementDownloads(ctx, deliveryID); err != nil {
		return nil, err
	}
	url, err := s.objects.PresignedURL(ctx, f.StoragePath, f.Filename, DownloadURLTTL)
	if err != nil {
		return nil, err
	}
	return &Download{URL: url, Filename: f.Filename, ExpiresAt: s.now().Add(DownloadURLTTL)}, nil
}
