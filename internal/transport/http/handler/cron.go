package handler

import (
	"net/http"

	"github.com/sealdrop-api/internal/application/cleanup"
)

// CronHandler runs scheduled jobs on behalf of an external scheduler.
type CronHandler struct {
	cleanup cleanup.Service
}

func NewCronHandler(svc cleanup.Service) *CronHandler { return &CronHandler{cleanup: svc} }

func (h *CronHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.cleanup.Run(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
