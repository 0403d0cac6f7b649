package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/pkg/validate"
	"github.com/sealdrop-api/internal/transport/http/middleware"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	Warning string               `json:"warning,omitempty"`
	Errors  validate.FieldErrors `json:"errors,omitempty"`
}

// AuthEnvelope wraps sign-up and sign-in responses.
type AuthEnvelope struct {
	Success bool            `json:"success"`
	Token   string          `json:"token"`
	User    *domain.Profile `json:"user"`
}

type UserEnvelope struct {
	Success bool            `json:"success"`
	User    *domain.Profile `json:"user"`
}

type DeliveryEnvelope struct {
	Success  bool             `json:"success"`
	Delivery *domain.Delivery `json:"delivery"`
}

type DeliveriesEnvelope struct {
	Success    bool              `json:"success"`
	Deliveries []domain.Delivery `json:"deliveries"`
}

// GrantEnvelope is returned to a recipient after a correct access code.
type GrantEnvelope struct {
	Success   bool             `json:"success"`
	Delivery  *domain.Delivery `json:"delivery"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
}

type MembersEnvelope struct {
	Success bool             `json:"success"`
	Members []domain.Profile `json:"members"`
}

type MemberEnvelope struct {
	Success bool            `json:"success"`
	Member  *domain.Profile `json:"member"`
}

type InvitationsEnvelope struct {
	Success     bool                            `json:"success"`
	Invitations []domain.OrganizationInvitation `json:"invitations"`
}

type InvitationEnvelope struct {
	Success    bool                           `json:"success"`
	Invitation *domain.OrganizationInvitation `json:"invitation"`
}

// SubscriptionEnvelope carries a null subscription when the organization has none.
type SubscriptionEnvelope struct {
	Success      bool                 `json:"success"`
	Subscription *domain.Subscription `json:"subscription"`
}

type CheckoutEnvelope struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type EarlyAdopterEnvelope struct {
	Success bool `json:"success"`
	*domain.EarlyAdopterStatus
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Message: msg})
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{domain.ErrBadRequest, http.StatusBadRequest},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrQuotaExceeded, http.StatusForbidden},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrUnavailable, http.StatusServiceUnavailable},
}

// writeServiceError maps a service error onto its HTTP status. Unknown errors
// are logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validate.Error
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Message: "validation failed", Errors: ve.Fields})
		return
	}
	for _, m := range statusBySentinel {
		if errors.Is(err, m.err) {
			writeError(w, m.status, publicMessage(err, m.err))
			return
		}
	}
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// publicMessage drops the trailing sentinel text from a wrapped error.
func publicMessage(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(r *http.Request, dst interface{}) error {
	if err := decodeBody(r, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", domain.ErrBadRequest)
	}
	return nil
}

// callerID returns the authenticated user id or writes a 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return claims.UserID, true
}
