package handler

import (
	"net/http"

	"github.com/sealdrop-api/internal/application/subscription"
	"github.com/sealdrop-api/internal/domain"
)

// SubscriptionHandler serves billing and early-adopter endpoints.
type SubscriptionHandler struct {
	svc subscription.Service
}

func NewSubscriptionHandler(svc subscription.Service) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	sub, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SubscriptionEnvelope{Success: true, Subscription: sub})
}

func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.CheckoutRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	url, err := h.svc.Checkout(r.Context(), userID, req.Plan)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckoutEnvelope{Success: true, URL: url})
}

func (h *SubscriptionHandler) EarlyAdopterStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	st, err := h.svc.EarlyAdopterStatus(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EarlyAdopterEnvelope{Success: true, EarlyAdopterStatus: st})
}

func (h *SubscriptionHandler) ClaimEarlyAdopter(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.ClaimEarlyAdopter(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
