package production

import (
	"fmt"
	"net/http"

	"fiberqc/internal/audit"
	"fiberqc/internal/models"
	"fiberqc/internal/response"
	"fiberqc/internal/validation"
)

var bareFiberRequired = []string{"fiber_id", "fiber_type", "batch_id", "distance_1310",
	"attenuation_1310", "distance_1550", "attenuation_1550", "operator"}

type bareFiberRequest struct {
	FiberID         string        `json:"fiber_id"`
	FiberType       string        `json:"fiber_type"`
	BatchID         string        `json:"batch_id"`
	Distance1310    models.Number `json:"distance_1310"`
	Attenuation1310 models.Number `json:"attenuation_1310"`
	Distance1550    models.Number `json:"distance_1550"`
	Attenuation1550 models.Number `json:"attenuation_1550"`
	Operator        string        `json:"operator"`
}

func (req bareFiberRequest) validate() error {
	ve := &validation.ValidationErrors{}
	validation.ValidatePositiveFloat(ve, "distance_1310", float64(req.Distance1310))
	validation.ValidatePositiveFloat(ve, "attenuation_1310", float64(req.Attenuation1310))
	validation.ValidatePositiveFloat(ve, "distance_1550", float64(req.Distance1550))
	validation.ValidatePositiveFloat(ve, "attenuation_1550", float64(req.Attenuation1550))
	validation.ValidateMaxLength(ve, "fiber_id", req.FiberID, 255)
	validation.ValidateMaxLength(ve, "batch_id", req.BatchID, 255)
	return invalid(ve)
}

// CreateBareFiber handles POST /api/bare-fibers.
func (h *Handler) CreateBareFiber(w http.ResponseWriter, r *http.Request) {
	var req bareFiberRequest
	if err := decodeCreate(r, &req, bareFiberRequired...); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.Store.Fibers.Create(r.Context(), models.BareFiber{
		FiberID:         req.FiberID,
		FiberType:       req.FiberType,
		BatchID:         req.BatchID,
		Distance1310:    float64(req.Distance1310),
		Attenuation1310: float64(req.Attenuation1310),
		Distance1550:    float64(req.Distance1550),
		Attenuation1550: float64(req.Attenuation1550),
		Operator:        req.Operator,
	})
	if err != nil {
		h.storeErr(w, r, err, "Fiber not found")
		return
	}
	h.Audit.Record(r.Context(), audit.ActionCreate, audit.ModuleBareFiber, req.FiberID,
		fmt.Sprintf("Tested fiber %s (%s, batch %s)", req.FiberID, req.FiberType, req.BatchID))
	response.Created(w, "Bare fiber data saved successfully", id)
}

// ListBareFibers handles GET /api/bare-fibers.
func (h *Handler) ListBareFibers(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.Fibers.FindAll(r.Context())
	if err != nil {
		h.storeErr(w, r, err, "")
		return
	}
	response.JSON(w, items)
}

// ListAvailableFibers handles GET /api/bare-fibers/available.
func (h *Handler) ListAvailableFibers(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.Fibers.FindAvailable(r.Context())
	if err != nil {
		h.storeErr(w, r, err, "")
		return
	}
	response.JSON(w, items)
}

// GetBareFiber handles GET /api/bare-fibers/{fiberId}.
func (h *Handler) GetBareFiber(w http.ResponseWriter, r *http.Request) {
	f, err := h.Store.Fibers.FindByFiberID(r.Context(), r.PathValue("fiberId"))
	if err != nil {
		h.storeErr(w, r, err, "Fiber not found")
		return
	}
	response.JSON(w, f)
}
