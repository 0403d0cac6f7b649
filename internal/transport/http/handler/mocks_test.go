package handler

import (
	"context"
	"net/http"

	"github.com/sealdrop-api/internal/application/auth"
	"github.com/sealdrop-api/internal/application/cleanup"
	"github.com/sealdrop-api/internal/application/delivery"
	"github.com/sealdrop-api/internal/domain"
	jwtinfra "github.com/sealdrop-api/internal/infrastructure/jwt"
	"github.com/sealdrop-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
)

// withClaims returns r as if the auth middleware had accepted a token for userID.
func withClaims(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ClaimsKey, &jwtinfra.Claims{UserID: userID, SessionID: "sess-" + userID})
	return r.WithContext(ctx)
}

// injectClaims is the router-level equivalent of withClaims.
func injectClaims(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, withClaims(r, userID))
		})
	}
}

// --- auth ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) result(args mock.Arguments) (*auth.Result, error) {
	if res, _ := args.Get(0).(*auth.Result); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) SignUp(ctx context.Context, req domain.SignUpRequest) (*auth.Result, error) {
	return m.result(m.Called(ctx, req))
}

func (m *mockAuthSvc) SignIn(ctx context.Context, req domain.SignInRequest) (*auth.Result, error) {
	return m.result(m.Called(ctx, req))
}

func (m *mockAuthSvc) GoogleSignIn(ctx context.Context, idToken string) (*auth.Result, error) {
	return m.result(m.Called(ctx, idToken))
}

func (m *mockAuthSvc) SignOut(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockAuthSvc) GetUser(ctx context.Context, userID string) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if p, _ := args.Get(0).(*domain.Profile); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- delivery ---

type mockDeliverySvc struct{ mock.Mock }

func (m *mockDeliverySvc) one(args mock.Arguments) (*domain.Delivery, error) {
	if d, _ := args.Get(0).(*domain.Delivery); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeliverySvc) Create(ctx context.Context, senderID string, req domain.CreateDeliveryRequest, files []delivery.FileInput) (*domain.Delivery, error) {
	return m.one(m.Called(ctx, senderID, req, files))
}

func (m *mockDeliverySvc) List(ctx context.Context, userID string) ([]domain.Delivery, error) {
	args := m.Called(ctx, userID)
	ds, _ := args.Get(0).([]domain.Delivery)
	return ds, args.Error(1)
}

func (m *mockDeliverySvc) Get(ctx context.Context, userID, deliveryID string) (*domain.Delivery, error) {
	return m.one(m.Called(ctx, userID, deliveryID))
}

func (m *mockDeliverySvc) UpdateStatus(ctx context.Context, userID, deliveryID, status string) (*domain.Delivery, error) {
	return m.one(m.Called(ctx, userID, deliveryID, status))
}

func (m *mockDeliverySvc) RequestAccess(ctx context.Context, deliveryID, email string) (*delivery.AccessRequested, error) {
	args := m.Called(ctx, deliveryID, email)
	if res, _ := args.Get(0).(*delivery.AccessRequested); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeliverySvc) VerifyAccess(ctx context.Context, deliveryID string, req domain.VerifyAccessRequest) (*delivery.Access, error) {
	args := m.Called(ctx, deliveryID, req)
	if a, _ := args.Get(0).(*delivery.Access); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeliverySvc) DownloadURL(ctx context.Context, grant, deliveryID, fileID string) (*delivery.Download, error) {
	args := m.Called(ctx, grant, deliveryID, fileID)
	if dl, _ := args.Get(0).(*delivery.Download); dl != nil {
		return dl, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- cleanup ---

type mockCleanupSvc struct{ mock.Mock }

func (m *mockCleanupSvc) Run(ctx context.Context) (*cleanup.Report, error) {
	args := m.Called(ctx)
	if r, _ := args.Get(0).(*cleanup.Report); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
