package production

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"fiberqc/internal/apierr"
	"fiberqc/internal/audit"
	"fiberqc/internal/export"
)

// Export handles GET /api/exports/{entity}?format=csv|xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.fail(w, r, apierr.BadRequest("format must be one of: csv, xlsx"))
		return
	}

	tbl, err := export.Load(r.Context(), h.Store, entity)
	if errors.Is(err, export.ErrUnknownEntity) {
		h.fail(w, r, apierr.NotFound("Unknown export: "+entity))
		return
	}
	if err != nil {
		h.fail(w, r, apierr.Internal(err))
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, tbl); err != nil {
		h.fail(w, r, apierr.Internal(err))
		return
	}
	h.Audit.Record(r.Context(), audit.ActionExport, tbl.Module, entity,
		fmt.Sprintf("Exported %d %s rows as %s", len(tbl.Rows), entity, format))

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", tbl.Filename(format)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
