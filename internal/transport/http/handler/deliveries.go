package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sealdrop-api/internal/application/delivery"
	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/pkg/validate"
	"github.com/sealdrop-api/internal/transport/http/middleware"
)

// multipartMemory is how much of a multipart body is held in memory; the rest spills to disk.
const multipartMemory = 32 << 20

// DeliveryHandler serves the sender's delivery endpoints and the recipient access flow.
type DeliveryHandler struct {
	svc delivery.Service
}

func NewDeliveryHandler(svc delivery.Service) *DeliveryHandler { return &DeliveryHandler{svc: svc} }

// Create accepts either a JSON body or a multipart form whose "files" parts are uploaded.
func (h *DeliveryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var (
		req   domain.CreateDeliveryRequest
		files []delivery.FileInput
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()
		var err error
		if req, err = formRequest(r.MultipartForm); err != nil {
			writeServiceError(w, r, err)
			return
		}
		headers := r.MultipartForm.File["files"]
		if len(headers) > delivery.MaxFiles {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per delivery", delivery.MaxFiles))
			return
		}
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "unreadable file part")
				return
			}
			defer f.Close()
			files = append(files, delivery.FileInput{
				Reader:      f,
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
			})
		}
	} else if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	d, err := h.svc.Create(r.Context(), userID, req, files)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, DeliveryEnvelope{Success: true, Delivery: d})
}

func formRequest(form *multipart.Form) (domain.CreateDeliveryRequest, error) {
	get := func(k string) string {
		if v := form.Value[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	req := domain.CreateDeliveryRequest{
		Title:          get("title"),
		RecipientEmail: get("recipient_email"),
		ExpiresAt:      get("expires_at"),
	}
	if m := get("message"); m != "" {
		req.Message = &m
	}
	var err error
	if req.MaxViews, err = formInt(get("max_views")); err != nil {
		return req, fmt.Errorf("max_views must be an integer: %w", domain.ErrBadRequest)
	}
	if req.MaxDownloads, err = formInt(get("max_downloads")); err != nil {
		return req, fmt.Errorf("max_downloads must be an integer: %w", domain.ErrBadRequest)
	}
	return req, nil
}

func formInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	ds, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if ds == nil {
		ds = []domain.Delivery{}
	}
	writeJSON(w, http.StatusOK, DeliveriesEnvelope{Success: true, Deliveries: ds})
}

func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeliveryEnvelope{Success: true, Delivery: d})
}

func (h *DeliveryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateDeliveryStatusRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	d, err := h.svc.UpdateStatus(r.Context(), userID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeliveryEnvelope{Success: true, Delivery: d})
}

// RequestAccess is public: it emails a one-time code to the delivery's recipient.
func (h *DeliveryHandler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	var req domain.RequestAccessRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.RequestAccess(r.Context(), chi.URLParam(r, "id"), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{
		Success: true,
		Message: "Access code sent to your email",
		Warning: res.Warning,
	})
}

func (h *DeliveryHandler) VerifyAccess(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyAccessRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Code = strings.TrimSpace(req.Code)
	if err := validate.Struct(&req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	a, err := h.svc.VerifyAccess(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GrantEnvelope{
		Success:   true,
		Delivery:  a.Delivery,
		Token:     a.Token,
		ExpiresAt: a.TokenExpiresAt,
	})
}

// Download takes the access grant from the Authorization header and answers
// with a short-lived presigned URL.
func (h *DeliveryHandler) Download(w http.ResponseWriter, r *http.Request) {
	grant, ok := middleware.BearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing access grant")
		return
	}
	dl, err := h.svc.DownloadURL(r.Context(), grant, chi.URLParam(r, "id"), chi.URLParam(r, "fileID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*delivery.Download
	}{Success: true, Download: dl})
}
