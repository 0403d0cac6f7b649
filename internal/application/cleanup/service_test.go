package cleanup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sealdrop-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDeliveryStore struct{ mock.Mock }

func (m *mockDeliveryStore) ListByStatus(ctx context.Context, status string) ([]domain.Delivery, error) {
	args := m.Called(ctx, status)
	ds, _ := args.Get(0).([]domain.Delivery)
	return ds, args.Error(1)
}

func (m *mockDeliveryStore) UpdateStatus(ctx context.Context, deliveryID, status string) (*domain.Delivery, error) {
	args := m.Called(ctx, deliveryID, status)
	if d, _ := args.Get(0).(*domain.Delivery); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeliveryStore) ListFiles(ctx context.Context, deliveryID string) ([]domain.DeliveryFile, error) {
	args := m.Called(ctx, deliveryID)
	fs, _ := args.Get(0).([]domain.DeliveryFile)
	return fs, args.Error(1)
}

func (m *mockDeliveryStore) Delete(ctx context.Context, deliveryID string) error {
	return m.Called(ctx, deliveryID).Error(0)
}

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, e domain.DeliveryEvent) error {
	return m.Called(ctx, e).Error(0)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(d *mockDeliveryStore, o *mockObjectStore, p *mockPublisher) Service {
	svc := NewService(d, o, p).(*service)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func files(deliveryID string, n int) []domain.DeliveryFile {
	out := make([]domain.DeliveryFile, n)
	for i := range out {
		out[i] = domain.DeliveryFile{FileID: fmt.Sprintf("f%d", i), DeliveryID: deliveryID, StoragePath: fmt.Sprintf("deliveries/%s/f%d-a.txt", deliveryID, i)}
	}
	return out
}

func TestRun_ExpiresOverdueAndPurgesTerminal(t *testing.T) {
	d, o, p := &mockDeliveryStore{}, &mockObjectStore{}, &mockPublisher{}
	d.On("ListByStatus", mock.Anything, domain.DeliveryActive).Return([]domain.Delivery{
		{DeliveryID: "late", Status: domain.DeliveryActive, ExpiresAt: fixedNow.Add(-time.Hour)},
		{DeliveryID: "fresh", Status: domain.DeliveryActive, ExpiresAt: fixedNow.Add(time.Hour)},
	}, nil)
	d.On("UpdateStatus", mock.Anything, "late", domain.DeliveryExpired).Return(&domain.Delivery{DeliveryID: "late", Status: domain.DeliveryExpired}, nil)
	d.On("ListByStatus", mock.Anything, domain.DeliveryExpired).Return([]domain.Delivery{
		{DeliveryID: "late", Status: domain.DeliveryExpired},
	}, nil)
	d.On("ListByStatus", mock.Anything, domain.DeliveryRevoked).Return([]domain.Delivery{
		{DeliveryID: "r1", Status: domain.DeliveryRevoked},
	}, nil)
	d.On("ListFiles", mock.Anything, "late").Return(files("late", 2), nil)
	d.On("ListFiles", mock.Anything, "r1").Return(files("r1", 1), nil)
	o.On("Delete", mock.Anything, mock.Anything).Return(nil)
	d.On("Delete", mock.Anything, "late").Return(nil)
	d.On("Delete", mock.Anything, "r1").Return(nil)
	p.On("Publish", mock.Anything, mock.Anything).Return(nil)

	r, err := newTestService(d, o, p).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &Report{Success: true, Processed: 2, Deleted: 2, FilesDeleted: 3, Expired: 1}, r)
	d.AssertNotCalled(t, "UpdateStatus", mock.Anything, "fresh", mock.Anything)
	p.AssertNumberOfCalls(t, "Publish", 3)
}

func TestRun_FileErrorsDoNotBlockRowDeletion(t *testing.T) {
	d, o, p := &mockDeliveryStore{}, &mockObjectStore{}, &mockPublisher{}
	d.On("ListByStatus", mock.Anything, domain.DeliveryActive).Return([]domain.Delivery(nil), nil)
	d.On("ListByStatus", mock.Anything, domain.DeliveryExpired).Return([]domain.Delivery{{DeliveryID: "x"}}, nil)
	d.On("ListByStatus", mock.Anything, domain.DeliveryRevoked).Return([]domain.Delivery(nil), nil)
	d.On("ListFiles", mock.Anything, "x").Return(files("x", 2), nil)
	o.On("Delete", mock.Anything, "deliveries/x/f0-a.txt").Return(errors.New("access denied"))
	o.On("Delete", mock.Anything, "deliveries/x/f1-a.txt").Return(nil)
	d.On("Delete", mock.Anything, "x").Return(nil)
	p.On("Publish", mock.Anything, mock.Anything).Return(errors.New("sns down"))

	r, err := newTestService(d, o, p).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, r.Deleted)
	assert.Equal(t, 1, r.FilesDeleted)
	assert.Equal(t, 1, r.FileErrors)
}

func TestRun_RowFailureCountsAsError(t *testing.T) {
	d, o, p := &mockDeliveryStore{}, &mockObjectStore{}, &mockPublisher{}
	d.On("ListByStatus", mock.Anything, domain.DeliveryActive).Return([]domain.Delivery(nil), nil)
	d.On("ListByStatus", mock.Anything, domain.DeliveryExpired).Return([]domain.Delivery{{DeliveryID: "a"}, {DeliveryID: "b"}}, nil)
	d.On("ListByStatus", mock.Anything, domain.DeliveryRevoked).Return([]domain.Delivery(nil), nil)
	d.On("ListFiles", mock.Anything, "a").Return(nil, errors.New("timeout"))
	d.On("ListFiles", mock.Anything, "b").Return([]domain.DeliveryFile(nil), nil)
	d.On("Delete", mock.Anything, "b").Return(nil)
	p.On("Publish", mock.Anything, mock.Anything).Return(nil)

	r, err := newTestService(d, o, p).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, r.Processed)
	assert.Equal(t, 1, r.Deleted)
	assert.Equal(t, 1, r.Errors)
	assert.Equal(t, r.Processed, r.Deleted+r.Errors)
}

func TestRun_ConcurrentRevokeIsNotAnExpiry(t *testing.T) {
	d, o, p := &mockDeliveryStore{}, &mockObjectStore{}, &mockPublisher{}
	d.On("ListByStatus", mock.Anything, domain.DeliveryActive).Return([]domain.Delivery{
		{DeliveryID: "a", ExpiresAt: fixedNow.Add(-time.Minute)},
	}, nil)
	d.On("UpdateStatus", mock.Anything, "a", domain.DeliveryExpired).Return(nil, fmt.Errorf("not active: %w", domain.ErrConflict))
	d.On("ListByStatus", mock.Anything, domain.DeliveryExpired).Return([]domain.Delivery(nil), nil)
	d.On("ListByStatus", mock.Anything, domain.DeliveryRevoked).Return([]domain.Delivery(nil), nil)

	r, err := newTestService(d, o, p).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, r.Expired)
	p.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestRun_ListFailureAborts(t *testing.T) {
	d, o, p := &mockDeliveryStore{}, &mockObjectStore{}, &mockPublisher{}
	d.On("ListByStatus", mock.Anything, domain.DeliveryActive).Return(nil, errors.New("throttled"))

	_, err := newTestService(d, o, p).Run(context.Background())

	assert.Error(t, err)
}
