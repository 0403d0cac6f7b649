package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/sealdrop-api/internal/infrastructure/jwt"
	"github.com/sealdrop-api/internal/infrastructure/smtp"
	"github.com/sealdrop-api/internal/pkg/id"
)

// MaxFiles caps the number of files in one delivery.
const MaxFiles = 50

// FileInput is one uploaded file part, streamed straight to object storage.
type FileInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

type Service interface {
	Create(ctx context.Context, senderID string, req domain.CreateDeliveryRequest, files []FileInput) (*domain.Delivery, error)
	List(ctx context.Context, userID string) ([]domain.Delivery, error)
	Get(ctx context.Context, userID, deliveryID string) (*domain.Delivery, error)
	UpdateStatus(ctx context.Context, userID, deliveryID, status string) (*domain.Delivery, error)

	RequestAccess(ctx context.Context, deliveryID, email string) (*AccessRequested, error)
	VerifyAccess(ctx context.Context, deliveryID string, req domain.VerifyAccessRequest) (*Access, error)
	DownloadURL(ctx context.Context, grant, deliveryID, fileID string) (*Download, error)
}

type deliveryStore interface {
	Create(ctx context.Context, d *domain.Delivery, files []domain.DeliveryFile, charge *dynamo.UsageCharge) error
	Get(ctx context.Context, deliveryID string) (*domain.Delivery, error)
	ListByOrganization(ctx context.Context, orgID string) ([]domain.Delivery, error)
	UpdateStatus(ctx context.Context, deliveryID, status string) (*domain.Delivery, error)
	IncrementViews(ctx context.Context, deliveryID string) (*domain.Delivery, error)
	IncrementDownloads(ctx context.Context, deliveryID string) (*domain.Delivery, error)
	ListFiles(ctx context.Context, deliveryID string) ([]domain.DeliveryFile, error)
	GetFile(ctx context.Context, deliveryID, fileID string) (*domain.DeliveryFile, error)
}

type profileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
}

type subscriptionStore interface {
	Get(ctx context.Context, orgID string) (*domain.Subscription, error)
}

type codeStore interface {
	Put(ctx context.Context, c *domain.AccessCode) error
	Get(ctx context.Context, deliveryID, email string) (*domain.AccessCode, error)
	ConsumeAttempt(ctx context.Context, deliveryID, email string) (int, error)
	Redeem(ctx context.Context, deliveryID, email, code string) error
}

type objectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
}

type notifier interface {
	SendAccessCode(to string, d smtp.AccessCodeData) error
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.DeliveryEvent) error
}

type grantIssuer interface {
	SignGrant(deliveryID, email string) (string, time.Time, error)
	VerifyGrant(token string) (*jwtinfra.GrantClaims, error)
}

type service struct {
	deliveries    deliveryStore
	profiles      profileStore
	subscriptions subscriptionStore
	codes         codeStore
	objects       objectStore
	notifier      notifier
	events        eventPublisher
	grants        grantIssuer
	now           func() time.Time
}

type ServiceDeps struct {
	DeliveryRepo     deliveryStore
	ProfileRepo      profileStore
	SubscriptionRepo subscriptionStore
	AccessCodeRepo   codeStore
	Objects          objectStore
	Notifier         notifier
	Events           eventPublisher
	Grants           grantIssuer
}

func NewService(deps ServiceDeps) Service {
	return &service{
		deliveries:    deps.DeliveryRepo,
		profiles:      deps.ProfileRepo,
		subscriptions: deps.SubscriptionRepo,
		codes:         deps.AccessCodeRepo,
		objects:       deps.Objects,
		notifier:      deps.Notifier,
		events:        deps.Events,
		grants:        deps.Grants,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// member loads the caller's profile and returns its organization.
func (s *service) member(ctx context.Context, userID string) (*domain.Profile, string, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", fmt.Errorf("profile not found: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, "", err
	}
	orgID := p.OrgID()
	if orgID == "" || !p.IsActive {
		return nil, "", fmt.Errorf("no organization: %w", domain.ErrBadRequest)
	}
	return p, orgID, nil
}

func (s *service) Create(ctx context.Context, senderID string, req domain.CreateDeliveryRequest, inputs []FileInput) (*domain.Delivery, error) {
	now := s.now()
	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("expires_at must be an RFC 3339 timestamp: %w", domain.ErrBadRequest)
	}
	if !expiresAt.After(now) {
		return nil, fmt.Errorf("expires_at must be in the future: %w", domain.ErrBadRequest)
	}
	if len(inputs) > MaxFiles {
		return nil, fmt.Errorf("at most %d files per delivery: %w", MaxFiles, domain.ErrBadRequest)
	}
	_, orgID, err := s.member(ctx, senderID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, in := range inputs {
		total += in.Size
	}
	sub, err := s.subscriptions.Get(ctx, orgID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("organization has no subscription: %w", domain.ErrQuotaExceeded)
	}
	if err != nil {
		return nil, err
	}
	if err := checkQuota(sub, total); err != nil {
		return nil, err
	}

	d := &domain.Delivery{
		DeliveryID:     id.New(),
		Title:          strings.TrimSpace(req.Title),
		Message:        trimmedOrNil(req.Message),
		RecipientEmail: strings.ToLower(strings.TrimSpace(req.RecipientEmail)),
		ExpiresAt:      expiresAt.UTC(),
		Status:         domain.DeliveryActive,
		MaxViews:       req.MaxViews,
		MaxDownloads:   req.MaxDownloads,
		TotalSize:      total,
		SenderID:       senderID,
		OrganizationID: orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	files, err := s.uploadAll(ctx, d.DeliveryID, inputs, now)
	if err != nil {
		return nil, err
	}
	charge := &dynamo.UsageCharge{
		OrganizationID:  orgID,
		Bytes:           total,
		DeliveriesLimit: sub.DeliveriesLimit,
		StorageLimit:    sub.StorageLimit,
	}
	if err := s.deliveries.Create(ctx, d, files, charge); err != nil {
		s.discardObjects(ctx, files)
		return nil, err
	}

	s.publish(ctx, domain.EventDeliveryCreated, d, senderID)
	d.Files = files
	return d, nil
}

func checkQuota(sub *domain.Subscription, bytes int64) error {
	if sub.Status != domain.SubscriptionActive {
		return fmt.Errorf("subscription is %s: %w", sub.Status, domain.ErrQuotaExceeded)
	}
	if sub.DeliveriesLimit > 0 && sub.DeliveriesUsed >= sub.DeliveriesLimit {
		return fmt.Errorf("delivery limit of %d reached: %w", sub.DeliveriesLimit, domain.ErrQuotaExceeded)
	}
	if sub.StorageLimit > 0 && sub.StorageUsed+bytes > sub.StorageLimit {
		return fmt.Errorf("storage limit reached: %w", domain.ErrQuotaExceeded)
	}
	return nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Delivery, error) {
	_, orgID, err := s.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.deliveries.ListByOrganization(ctx, orgID)
}

func (s *service) Get(ctx context.Context, userID, deliveryID string) (*domain.Delivery, error) {
	_, orgID, err := s.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	d, err := s.owned(ctx, orgID, deliveryID)
	if err != nil {
		return nil, err
	}
	if d.Files, err = s.deliveries.ListFiles(ctx, deliveryID); err != nil {
		return nil, err
	}
	return d, nil
}

// owned hides deliveries of other organizations behind ErrNotFound.
func (s *service) owned(ctx context.Context, orgID, deliveryID string) (*domain.Delivery, error) {
	d, err := s.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if d.OrganizationID != orgID {
		return nil, fmt.Errorf("delivery not found: %w", domain.ErrNotFound)
	}
	return d, nil
}

func (s *service) UpdateStatus(ctx context.Context, userID, deliveryID, status string) (*domain.Delivery, error) {
	if !domain.ValidDeliveryStatus(status) {
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrBadRequest)
	}
	_, orgID, err := s.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	d, err := s.owned(ctx, orgID, deliveryID)
	if err != nil {
		return nil, err
	}
	if status == domain.DeliveryActive {
		if d.Status == domain.DeliveryActive {
			return d, nil
		}
		return nil, fmt.Errorf("delivery is %s and cannot be reactivated: %w", d.Status, domain.ErrConflict)
	}
	updated, err := s.deliveries.UpdateStatus(ctx, deliveryID, status)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventDeliveryStatusChanged, updated, userID)
	return updated, nil
}

func (s *service) publish(ctx context.Context, typ string, d *domain.Delivery, actorID string) {
	err := s.events.Publish(ctx, domain.DeliveryEvent{
		Type:           typ,
		DeliveryID:     d.DeliveryID,
		OrganizationID: d.OrganizationID,
		Status:         d.Status,
		ActorID:        actorID,
		OccurredAt:     s.now(),
	})
	if err != nil {
		slog.Warn("failed to publish delivery event", "type", typ, "delivery_id", d.DeliveryID, "err", err)
	}
}
