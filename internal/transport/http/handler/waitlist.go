package handler

import (
	"net/http"
	"strings"

	"github.com/sealdrop-api/internal/application/waitlist"
	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/pkg/validate"
)

type WaitlistHandler struct {
	svc waitlist.Service
}

func NewWaitlistHandler(svc waitlist.Service) *WaitlistHandler { return &WaitlistHandler{svc: svc} }

func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req domain.JoinWaitlistRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(&req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if _, err := h.svc.Join(r.Context(), req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Success: true, Message: "You're on the waitlist"})
}
