package production

import (
	"net/http"
	"time"

	"fiberqc/internal/response"
)

type healthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Message:   "NIA FIBER QC TRACK API is running",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}
