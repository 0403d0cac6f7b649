package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sealdrop-api/internal/application/organization"
	"github.com/sealdrop-api/internal/domain"
)

// OrganizationHandler handles membership and invitation endpoints.
type OrganizationHandler struct {
	svc organization.Service
}

func NewOrganizationHandler(svc organization.Service) *OrganizationHandler {
	return &OrganizationHandler{svc: svc}
}

func (h *OrganizationHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	ms, err := h.svc.ListMembers(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if ms == nil {
		ms = []domain.Profile{}
	}
	writeJSON(w, http.StatusOK, MembersEnvelope{Success: true, Members: ms})
}

func (h *OrganizationHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.ChangeRoleRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := h.svc.ChangeRole(r.Context(), userID, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberEnvelope{Success: true, Member: m})
}

func (h *OrganizationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveMember(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "member removed"})
}

func (h *OrganizationHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	invs, err := h.svc.ListInvitations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if invs == nil {
		invs = []domain.OrganizationInvitation{}
	}
	writeJSON(w, http.StatusOK, InvitationsEnvelope{Success: true, Invitations: invs})
}

func (h *OrganizationHandler) Invite(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.CreateInvitationRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	inv, err := h.svc.Invite(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, InvitationEnvelope{Success: true, Invitation: inv})
}

func (h *OrganizationHandler) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelInvitation(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "invitation cancelled"})
}

// AcceptInvitation reads the invitation token from the {id} segment.
func (h *OrganizationHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.AcceptInvitation(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{Success: true, User: p})
}
