package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/infrastructure/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createReq() domain.CreateDeliveryRequest {
	return domain.CreateDeliveryRequest{
		Title:          "  Contracts ",
		RecipientEmail: "Recipient@Example.com",
		ExpiresAt:      fixedNow.Add(48 * time.Hour).Format(time.RFC3339),
		MaxViews:       3,
	}
}

func freeSub() *domain.Subscription {
	return domain.NewSubscription("o1", domain.PlanFree, fixedNow)
}

// --- Create ---

func TestCreate_StoresDeliveryFilesAndCharge(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.subs.On("Get", mock.Anything, "o1").Return(freeSub(), nil)
	f.objects.On("Put", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasPrefix(k, "deliveries/") && strings.HasSuffix(k, "-report_v1.pdf")
	}), int64(5), "application/pdf").Return(nil)
	f.deliveries.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(c *dynamo.UsageCharge) bool {
		return c.OrganizationID == "o1" && c.Bytes == 5 && c.DeliveriesLimit == 50
	})).Return(nil)
	f.events.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.DeliveryEvent) bool {
		return e.Type == domain.EventDeliveryCreated
	})).Return(nil)

	d, err := f.svc.Create(context.Background(), "u1", createReq(), []FileInput{{
		Reader:      strings.NewReader("hello"),
		Filename:    "../report v1.pdf",
		ContentType: "application/pdf",
		Size:        5,
	}})

	require.NoError(t, err)
	assert.Equal(t, "Contracts", d.Title)
	assert.Equal(t, "recipient@example.com", d.RecipientEmail)
	assert.Equal(t, domain.DeliveryActive, d.Status)
	assert.Equal(t, "o1", d.OrganizationID)
	assert.Equal(t, int64(5), d.TotalSize)
	require.Len(t, d.Files, 1)
	sum := sha256.Sum256([]byte("hello"))
	assert.Equal(t, hex.EncodeToString(sum[:]), *d.Files[0].ContentHash)
	assert.True(t, strings.HasPrefix(d.Files[0].StoragePath, "deliveries/"+d.DeliveryID+"/"))
	f.deliveries.AssertExpectations(t)
}

func TestCreate_RejectsBadExpiry(t *testing.T) {
	for name, expires := range map[string]string{
		"unparseable": "tomorrow",
		"past":        fixedNow.Add(-time.Hour).Format(time.RFC3339),
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			req := createReq()
			req.ExpiresAt = expires

			_, err := f.svc.Create(context.Background(), "u1", req, nil)
			assert.ErrorIs(t, err, domain.ErrBadRequest)
			f.profiles.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		})
	}
}

func TestCreate_TooManyFiles(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), "u1", createReq(), make([]FileInput, MaxFiles+1))
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreate_NoOrganization(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(&domain.Profile{UserID: "u1", IsActive: true}, nil)

	_, err := f.svc.Create(context.Background(), "u1", createReq(), nil)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.ErrorContains(t, err, "no organization")
}

func TestCreate_NoSubscription(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.subs.On("Get", mock.Anything, "o1").Return(nil, domain.ErrNotFound)

	_, err := f.svc.Create(context.Background(), "u1", createReq(), nil)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestCreate_QuotaReachedBeforeUpload(t *testing.T) {
	f := newFixture()
	sub := freeSub()
	sub.DeliveriesUsed = sub.DeliveriesLimit
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.subs.On("Get", mock.Anything, "o1").Return(sub, nil)

	_, err := f.svc.Create(context.Background(), "u1", createReq(), []FileInput{{Reader: strings.NewReader("x"), Filename: "a.txt", Size: 1}})

	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	f.objects.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_UploadFailureRemovesEarlierObjects(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.subs.On("Get", mock.Anything, "o1").Return(freeSub(), nil)
	f.objects.On("Put", mock.Anything, mock.MatchedBy(func(k string) bool { return strings.HasSuffix(k, "-a.txt") }), mock.Anything, mock.Anything).Return(nil)
	f.objects.On("Put", mock.Anything, mock.MatchedBy(func(k string) bool { return strings.HasSuffix(k, "-b.txt") }), mock.Anything, mock.Anything).Return(errors.New("s3 down"))
	f.objects.On("Delete", mock.Anything, mock.MatchedBy(func(k string) bool { return strings.HasSuffix(k, "-a.txt") })).Return(nil)

	_, err := f.svc.Create(context.Background(), "u1", createReq(), []FileInput{
		{Reader: strings.NewReader("a"), Filename: "a.txt", Size: 1},
		{Reader: strings.NewReader("b"), Filename: "b.txt", Size: 1},
	})

	assert.ErrorContains(t, err, "upload b.txt")
	f.objects.AssertNumberOfCalls(t, "Delete", 1)
	f.deliveries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_TransactionQuotaFailureRemovesObjects(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.subs.On("Get", mock.Anything, "o1").Return(freeSub(), nil)
	f.objects.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.objects.On("Delete", mock.Anything, mock.Anything).Return(nil)
	f.deliveries.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrQuotaExceeded)

	_, err := f.svc.Create(context.Background(), "u1", createReq(), []FileInput{{Reader: strings.NewReader("a"), Filename: "a.txt", Size: 1}})

	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	f.objects.AssertNumberOfCalls(t, "Delete", 1)
	f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCreate_EventFailureDoesNotFail(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.subs.On("Get", mock.Anything, "o1").Return(freeSub(), nil)
	f.deliveries.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.events.On("Publish", mock.Anything, mock.Anything).Return(errors.New("sns down"))

	d, err := f.svc.Create(context.Background(), "u1", createReq(), nil)
	require.NoError(t, err)
	assert.Empty(t, d.Files)
}

// --- List / Get ---

func TestList_ScopedToOrganization(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.deliveries.On("ListByOrganization", mock.Anything, "o1").Return([]domain.Delivery{*activeDelivery()}, nil)

	ds, err := f.svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, ds, 1)
}

func TestGet_OtherOrganizationIsNotFound(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u2").Return(memberProfile("u2", "o2"), nil)
	f.deliveries.On("Get", mock.Anything, "d1").Return(activeDelivery(), nil)

	_, err := f.svc.Get(context.Background(), "u2", "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGet_IncludesFiles(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.deliveries.On("Get", mock.Anything, "d1").Return(activeDelivery(), nil)
	f.deliveries.On("ListFiles", mock.Anything, "d1").Return([]domain.DeliveryFile{{FileID: "f1"}}, nil)

	d, err := f.svc.Get(context.Background(), "u1", "d1")
	require.NoError(t, err)
	assert.Len(t, d.Files, 1)
}

// --- UpdateStatus ---

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	f := newFixture()
	_, err := f.svc.UpdateStatus(context.Background(), "u1", "d1", "archived")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestUpdateStatus_ActiveOnActiveIsNoop(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.deliveries.On("Get", mock.Anything, "d1").Return(activeDelivery(), nil)

	d, err := f.svc.UpdateStatus(context.Background(), "u1", "d1", domain.DeliveryActive)

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryActive, d.Status)
	f.deliveries.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_ReactivateTerminalConflicts(t *testing.T) {
	f := newFixture()
	revoked := activeDelivery()
	revoked.Status = domain.DeliveryRevoked
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.deliveries.On("Get", mock.Anything, "d1").Return(revoked, nil)

	_, err := f.svc.UpdateStatus(context.Background(), "u1", "d1", domain.DeliveryActive)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdateStatus_Revoke(t *testing.T) {
	f := newFixture()
	revoked := activeDelivery()
	revoked.Status = domain.DeliveryRevoked
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.deliveries.On("Get", mock.Anything, "d1").Return(activeDelivery(), nil)
	f.deliveries.On("UpdateStatus", mock.Anything, "d1", domain.DeliveryRevoked).Return(revoked, nil)
	f.events.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.DeliveryEvent) bool {
		return e.Type == domain.EventDeliveryStatusChanged && e.Status == domain.DeliveryRevoked && e.ActorID == "u1"
	})).Return(nil)

	d, err := f.svc.UpdateStatus(context.Background(), "u1", "d1", domain.DeliveryRevoked)

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryRevoked, d.Status)
	f.events.AssertExpectations(t)
}

func TestUpdateStatus_TerminalConflictFromStore(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u1").Return(memberProfile("u1", "o1"), nil)
	f.deliveries.On("Get", mock.Anything, "d1").Return(activeDelivery(), nil)
	f.deliveries.On("UpdateStatus", mock.Anything, "d1", domain.DeliveryExpired).Return(nil, domain.ErrConflict)

	_, err := f.svc.UpdateStatus(context.Background(), "u1", "d1", domain.DeliveryExpired)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdateStatus_OtherOrganization(t *testing.T) {
	f := newFixture()
	f.profiles.On("Get", mock.Anything, "u2").Return(memberProfile("u2", "o2"), nil)
	f.deliveries.On("Get", mock.Anything, "d1").Return(activeDelivery(), nil)

	_, err := f.svc.UpdateStatus(context.Background(), "u2", "d1", domain.DeliveryRevoked)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
