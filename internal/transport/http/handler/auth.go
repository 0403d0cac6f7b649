package handler

import (
	"net/http"

	"github.com/sealdrop-api/internal/application/auth"
	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/transport/http/middleware"
)

// AuthHandler handles sign-up, sign-in and session endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req domain.SignUpRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.SignUp(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthEnvelope{Success: true, Token: res.Token, User: res.Profile})
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req domain.SignInRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.SignIn(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Success: true, Token: res.Token, User: res.Profile})
}

func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req domain.GoogleSignInRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.GoogleSignIn(r.Context(), req.IDToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Success: true, Token: res.Token, User: res.Profile})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.SignOut(r.Context(), claims.SessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "signed out"})
}

func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{Success: true, User: p})
}
