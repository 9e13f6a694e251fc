// Package production serves the fiber QC tracking API: bare fiber tests,
// cable bundling, stranding/sheathing QC checks and their reports.
package production

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fiberqc/internal/apierr"
	"fiberqc/internal/audit"
	"fiberqc/internal/logger"
	"fiberqc/internal/response"
	"fiberqc/internal/store"
	"fiberqc/internal/validation"
)

const maxBodyBytes = 1 << 20

// Handler holds dependencies for production handlers.
type Handler struct {
	Store *store.Store
	Audit *audit.Recorder
	Log   *logger.Logger

	// Dev exposes error detail in 500 responses.
	Dev bool

	// Now returns the current time; tests pin it.
	Now func() time.Time
}

// New returns a Handler with a no-op logger and the wall clock when those
// are not supplied.
func New(st *store.Store, rec *audit.Recorder, log *logger.Logger, dev bool) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{Store: st, Audit: rec, Log: log, Dev: dev, Now: time.Now}
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// fail writes err, logging anything that ends up as a 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apierr.StatusOf(err) >= http.StatusInternalServerError {
		h.Log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	response.Fail(w, err, h.Dev)
}

// storeErr maps accessor errors: ErrNotFound becomes 404 with notFound as
// the message, constraint violations 400 with the driver message, anything
// else 500.
func (h *Handler) storeErr(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.fail(w, r, apierr.NotFound(notFound))
	case store.IsConstraint(err):
		h.fail(w, r, apierr.BadRequest(err.Error()))
	default:
		h.fail(w, r, apierr.Internal(err))
	}
}

// decodeCreate reads a JSON object body, rejects it when any of required
// is missing, then decodes it into dst.
func decodeCreate(r *http.Request, dst any, required ...string) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apierr.BadRequest("Unable to read request body")
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		var typ *json.UnmarshalTypeError
		if errors.As(err, &typ) {
			return apierr.BadRequest("Request body must be a JSON object")
		}
		return apierr.New(http.StatusBadRequest, "invalid_json", response.ErrInvalidJSON)
	}
	if missing := validation.MissingFields(body, required...); len(missing) > 0 {
		return apierr.BadRequest(validation.MissingError(missing))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var typ *json.UnmarshalTypeError
		if errors.As(err, &typ) && typ.Field != "" {
			return apierr.BadRequest(fmt.Sprintf("Invalid value for %s", typ.Field))
		}
		return apierr.BadRequest(err.Error())
	}
	return nil
}

func invalid(ve *validation.ValidationErrors) error {
	if !ve.HasErrors() {
		return nil
	}
	return apierr.New(http.StatusBadRequest, "validation", ve)
}
