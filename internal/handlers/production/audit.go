package production

import (
	"net/http"
	"strconv"

	"fiberqc/internal/apierr"
	"fiberqc/internal/audit"
	"fiberqc/internal/models"
	"fiberqc/internal/response"
)

// ListAudit handles GET /api/audit?limit=N.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.fail(w, r, apierr.BadRequest("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	limit = audit.ClampLimit(limit)
	items, err := h.Audit.List(r.Context(), limit)
	if err != nil {
		h.fail(w, r, apierr.Internal(err))
		return
	}
	total, err := h.Audit.Count(r.Context())
	if err != nil {
		h.fail(w, r, apierr.Internal(err))
		return
	}
	response.JSONMeta(w, items, models.Meta{Total: total, Limit: limit})
}
