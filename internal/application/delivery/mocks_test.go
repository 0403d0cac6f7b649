package delivery

import (
	"context"
	"io"
	"time"

	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/sealdrop-api/internal/infrastructure/jwt"
	"github.com/sealdrop-api/internal/infrastructure/smtp"
	"github.com/stretchr/testify/mock"
)

func deliveryOrNil(args mock.Arguments) (*domain.Delivery, error) {
	if d, _ := args.Get(0).(*domain.Delivery); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDeliveryStore struct{ mock.Mock }

func (m *mockDeliveryStore) Create(ctx context.Context, d *domain.Delivery, files []domain.DeliveryFile, charge *dynamo.UsageCharge) error {
	return m.Called(ctx, d, files, charge).Error(0)
}
func (m *mockDeliveryStore) Get(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	return deliveryOrNil(m.Called(ctx, deliveryID))
}
func (m *mockDeliveryStore) ListByOrganization(ctx context.Context, orgID string) ([]domain.Delivery, error) {
	args := m.Called(ctx, orgID)
	ds, _ := args.Get(0).([]domain.Delivery)
	return ds, args.Error(1)
}
func (m *mockDeliveryStore) UpdateStatus(ctx context.Context, deliveryID, status string) (*domain.Delivery, error) {
	return deliveryOrNil(m.Called(ctx, deliveryID, status))
}
func (m *mockDeliveryStore) IncrementViews(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	return deliveryOrNil(m.Called(ctx, deliveryID))
}
func (m *mockDeliveryStore) IncrementDownloads(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	return deliveryOrNil(m.Called(ctx, deliveryID))
}
func (m *mockDeliveryStore) ListFiles(ctx context.Context, deliveryID string) ([]domain.DeliveryFile, error) {
	args := m.Called(ctx, deliveryID)
	fs, _ := args.Get(0).([]domain.DeliveryFile)
	return fs, args.Error(1)
}
func (m *mockDeliveryStore) GetFile(ctx context.Context, deliveryID, fileID string) (*domain.DeliveryFile, error) {
	args := m.Called(ctx, deliveryID, fileID)
	if f, _ := args.Get(0).(*domain.DeliveryFile); f != nil {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockProfileStore struct{ mock.Mock }

func (m *mockProfileStore) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if p, _ := args.Get(0).(*domain.Profile); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSubscriptionStore struct{ mock.Mock }

func (m *mockSubscriptionStore) Get(ctx context.Context, orgID string) (*domain.Subscription, error) {
	args := m.Called(ctx, orgID)
	if s, _ := args.Get(0).(*domain.Subscription); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCodeStore struct{ mock.Mock }

func (m *mockCodeStore) Put(ctx context.Context, c *domain.AccessCode) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockCodeStore) Get(ctx context.Context, deliveryID, email string) (*domain.AccessCode, error) {
	args := m.Called(ctx, deliveryID, email)
	if c, _ := args.Get(0).(*domain.AccessCode); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodeStore) ConsumeAttempt(ctx context.Context, deliveryID, email string) (int, error) {
	args := m.Called(ctx, deliveryID, email)
	return args.Int(0), args.Error(1)
}
func (m *mockCodeStore) Redeem(ctx context.Context, deliveryID, email, code string) error {
	return m.Called(ctx, deliveryID, email, code).Error(0)
}

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	// drain so the caller's hash covers the whole body
	_, _ = io.Copy(io.Discard, r)
	return m.Called(ctx, key, size, contentType).Error(0)
}
func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
func (m *mockObjectStore) PresignedURL(ctx context.Context, key, filename string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, filename, ttl)
	return args.String(0), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) SendAccessCode(to string, d smtp.AccessCodeData) error {
	return m.Called(to, d).Error(0)
}

type mockEvents struct{ mock.Mock }

func (m *mockEvents) Publish(ctx context.Context, e domain.DeliveryEvent) error {
	return m.Called(ctx, e).Error(0)
}

type mockGrants struct{ mock.Mock }

func (m *mockGrants) SignGrant(deliveryID, email string) (string, time.Time, error) {
	args := m.Called(deliveryID, email)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}
func (m *mockGrants) VerifyGrant(token string) (*jwtinfra.GrantClaims, error) {
	args := m.Called(token)
	if c, _ := args.Get(0).(*jwtinfra.GrantClaims); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type fixture struct {
	deliveries *mockDeliveryStore
	profiles   *mockProfileStore
	subs       *mockSubscriptionStore
	codes      *mockCodeStore
	objects    *mockObjectStore
	notifier   *mockNotifier
	events     *mockEvents
	grants     *mockGrants
	svc        *service
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		deliveries: &mockDeliveryStore{},
		profiles:   &mockProfileStore{},
		subs:       &mockSubscriptionStore{},
		codes:      &mockCodeStore{},
		objects:    &mockObjectStore{},
		notifier:   &mockNotifier{},
		events:     &mockEvents{},
		grants:     &mockGrants{},
	}
	f.svc = NewService(ServiceDeps{
		DeliveryRepo:     f.deliveries,
		ProfileRepo:      f.profiles,
		SubscriptionRepo: f.subs,
		AccessCodeRepo:   f.codes,
		Objects:          f.objects,
		Notifier:         f.notifier,
		Events:           f.events,
		Grants:           f.grants,
	}).(*service)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func strPtr(s string) *string { return &s }

func memberProfile(userID, orgID string) *domain.Profile {
	return &domain.Profile{UserID: userID, OrganizationID: strPtr(orgID), Role: domain.RoleMember, IsActive: true}
}

func activeDelivery() *domain.Delivery {
	return &domain.Delivery{
		DeliveryID:     "d1",
		Title:          "Contracts",
		RecipientEmail: "recipient@example.com",
		ExpiresAt:      fixedNow.Add(24 * time.Hour),
		Status:         domain.DeliveryActive,
		SenderID:       "u1",
		OrganizationID: "o1",
	}
}
