package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sealdrop-api/internal/application/delivery"
	"github.com/sealdrop-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func deliveryRouter(svc delivery.Service) http.Handler {
	h := NewDeliveryHandler(svc)
	r := chi.NewRouter()
	r.Post("/api/deliveries/{id}/request-access", h.RequestAccess)
	r.Post("/api/deliveries/{id}/verify-access", h.VerifyAccess)
	r.Get("/api/deliveries/{id}/files/{fileID}/download", h.Download)
	r.Group(func(r chi.Router) {
		r.Use(injectClaims("u1"))
		r.Get("/api/deliveries", h.List)
		r.Post("/api/deliveries", h.Create)
		r.Get("/api/deliveries/{id}", h.Get)
		r.Post("/api/deliveries/{id}/status", h.UpdateStatus)
	})
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDeliveryHandler_Create_JSON(t *testing.T) {
	svc := &mockDeliverySvc{}
	want := domain.CreateDeliveryRequest{
		Title:          "Contracts",
		RecipientEmail: "bob@example.com",
		ExpiresAt:      "2026-04-01T00:00:00Z",
		MaxViews:       3,
	}
	svc.On("Create", mock.Anything, "u1", want, []delivery.FileInput(nil)).
		Return(&domain.Delivery{DeliveryID: "d1", Title: "Contracts", Status: domain.DeliveryActive}, nil)

	rr := serve(deliveryRouter(svc), jsonRequest(http.MethodPost, "/api/deliveries",
		`{"title":"Contracts","recipient_email":"bob@example.com","expires_at":"2026-04-01T00:00:00Z","max_views":3}`))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var env DeliveryEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, "d1", env.Delivery.DeliveryID)
}

func TestDeliveryHandler_Create_Multipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Photos"))
	require.NoError(t, mw.WriteField("recipient_email", "bob@example.com"))
	require.NoError(t, mw.WriteField("expires_at", "2026-04-01T00:00:00Z"))
	require.NoError(t, mw.WriteField("max_downloads", "2"))
	for _, name := range []string{"a.txt", "b.txt"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	svc := &mockDeliverySvc{}
	var gotContent []string
	svc.On("Create", mock.Anything, "u1", mock.MatchedBy(func(req domain.CreateDeliveryRequest) bool {
		return req.Title == "Photos" && req.MaxDownloads == 2 && req.MaxViews == 0
	}), mock.MatchedBy(func(files []delivery.FileInput) bool {
		return len(files) == 2 && files[0].Filename == "a.txt" && files[1].Size == int64(len("content of b.txt"))
	})).Run(func(args mock.Arguments) {
		for _, f := range args.Get(3).([]delivery.FileInput) {
			b, _ := io.ReadAll(f.Reader)
			gotContent = append(gotContent, string(b))
		}
	}).Return(&domain.Delivery{DeliveryID: "d1"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/deliveries", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := serve(deliveryRouter(svc), req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, []string{"content of a.txt", "content of b.txt"}, gotContent)
}

func TestDeliveryHandler_Create_MultipartBadInteger(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Photos"))
	require.NoError(t, mw.WriteField("max_views", "lots"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/deliveries", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := serve(deliveryRouter(&mockDeliverySvc{}), req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeliveryHandler_Create_Validation(t *testing.T) {
	svc := &mockDeliverySvc{}
	rr := serve(deliveryRouter(svc), jsonRequest(http.MethodPost, "/api/deliveries",
		`{"title":"","recipient_email":"bob","expires_at":"2026-04-01T00:00:00Z","max_views":-1}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var env MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, "required", env.Errors["title"])
	assert.Equal(t, "email", env.Errors["recipient_email"])
	assert.Equal(t, "gte", env.Errors["max_views"])
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliveryHandler_Create_QuotaExceeded(t *testing.T) {
	svc := &mockDeliverySvc{}
	svc.On("Create", mock.Anything, "u1", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("delivery limit reached: %w", domain.ErrQuotaExceeded))

	rr := serve(deliveryRouter(svc), jsonRequest(http.MethodPost, "/api/deliveries",
		`{"title":"T","recipient_email":"bob@example.com","expires_at":"2026-04-01T00:00:00Z"}`))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestDeliveryHandler_List_EmptyIsArray(t *testing.T) {
	svc := &mockDeliverySvc{}
	svc.On("List", mock.Anything, "u1").Return([]domain.Delivery(nil), nil)

	rr := serve(deliveryRouter(svc), httptest.NewRequest(http.MethodGet, "/api/deliveries", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"deliveries":[]}`, rr.Body.String())
}

func TestDeliveryHandler_Get_NotFound(t *testing.T) {
	svc := &mockDeliverySvc{}
	svc.On("Get", mock.Anything, "u1", "d9").Return(nil, fmt.Errorf("delivery not found: %w", domain.ErrNotFound))

	rr := serve(deliveryRouter(svc), httptest.NewRequest(http.MethodGet, "/api/deliveries/d9", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeliveryHandler_UpdateStatus(t *testing.T) {
	svc := &mockDeliverySvc{}
	svc.On("UpdateStatus", mock.Anything, "u1", "d1", domain.DeliveryRevoked).
		Return(&domain.Delivery{DeliveryID: "d1", Status: domain.DeliveryRevoked}, nil)

	rr := serve(deliveryRouter(svc), jsonRequest(http.MethodPost, "/api/deliveries/d1/status", `{"status":"revoked"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	var env DeliveryEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, domain.DeliveryRevoked, env.Delivery.Status)
}

func TestDeliveryHandler_UpdateStatus_UnknownStatus(t *testing.T) {
	svc := &mockDeliverySvc{}
	rr := serve(deliveryRouter(svc), jsonRequest(http.MethodPost, "/api/deliveries/d1/status", `{"status":"paused"}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliveryHandler_UpdateStatus_Terminal(t *testing.T) {
	svc := &mockDeliverySvc{}
	svc.On("UpdateStatus", mock.Anything, "u1", "d1", domain.DeliveryActive).
		Return(nil, fmt.Errorf("delivery is no longer active: %w", domain.ErrConflict))

	rr := serve(deliveryRouter(svc), jsonRequest(http.MethodPost, "/api/deliveries/d1/status", `{"status":"active"}`))

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestDeliveryHandler_RequestAccess_EmailWarning(t *testing.T) {
	svc := &mockDeliverySvc{}
	svc.On("RequestAccess", mock.Anything, "d1", " Bob@Example.com").
		Return(&delivery.AccessRequested{ExpiresAt: time.Now().Add(15 * time.Minute), Warning: "access code created but the email could not be sent"}, nil)

	rr := serve(deliveryRouter(svc), jsonRequest(http.MethodPost, "/api/deliveries/d1/request-access", `{"email":" Bob@Example.com"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	var env MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Message)
	assert.Equal(t, "access code created but the email could not be sent", env.Warning)
}

func TestDeliveryHandler_RequestAccess_WrongRecipient(t *testing.T) {
	svc := &mockDeliverySvc{}
	svc.On("RequestAccess", mock.Anything, "d1", "eve@example.com").
		Return(nil, fmt.Errorf("email does not match the delivery recipient: %w", domain.ErrForbidden))

	rr := serve(deliveryRouter(svc), jsonRequest(http.MethodPost, "/api/deliveries/d1/request-access", `{"email":"eve@example.com"}`))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestDeliveryHandler_VerifyAccess(t *testing.T) {
	svc := &mockDeliverySvc{}
	exp := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	svc.On("VerifyAccess", mock.Anything, "d1", domain.VerifyAccessRequest{Email: "bob@example.com", Code: "123456"}).
		Return(&delivery.Access{Delivery: &domain.Delivery{DeliveryID: "d1"}, Token: "grant", TokenExpiresAt: exp}, nil)

	rr := serve(deliveryRouter(svc), jsonRequest(http.MethodPost, "/api/deliveries/d1/verify-access", `{"email":" BOB@example.com ","code":" 123456 "}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	var env GrantEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, "grant", env.Token)
	assert.True(t, exp.Equal(env.ExpiresAt))
}

func TestDeliveryHandler_VerifyAccess_MalformedCode(t *testing.T) {
	svc := &mockDeliverySvc{}
	rr := serve(deliveryRouter(svc), jsonRequest(http.MethodPost, "/api/deliveries/d1/verify-access", `{"email":"bob@example.com","code":"12ab"}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "VerifyAccess", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliveryHandler_VerifyAccess_WrongCode(t *testing.T) {
	svc := &mockDeliverySvc{}
	svc.On("VerifyAccess", mock.Anything, "d1", mock.Anything).
		Return(nil, fmt.Errorf("invalid access code, 2 attempts left: %w", domain.ErrUnauthorized))

	rr := serve(deliveryRouter(svc), jsonRequest(http.MethodPost, "/api/deliveries/d1/verify-access", `{"email":"bob@example.com","code":"000000"}`))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"invalid access code, 2 attempts left"}`, rr.Body.String())
}

func TestDeliveryHandler_Download_MissingGrant(t *testing.T) {
	rr := serve(deliveryRouter(&mockDeliverySvc{}), httptest.NewRequest(http.MethodGet, "/api/deliveries/d1/files/f1/download", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDeliveryHandler_Download(t *testing.T) {
	svc := &mockDeliverySvc{}
	svc.On("DownloadURL", mock.Anything, "grant", "d1", "f1").
		Return(&delivery.Download{URL: "https://s3.test/obj", Filename: "a.txt"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/deliveries/d1/files/f1/download", nil)
	req.Header.Set("Authorization", "Bearer grant")
	rr := serve(deliveryRouter(svc), req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "https://s3.test/obj", body.URL)
}
