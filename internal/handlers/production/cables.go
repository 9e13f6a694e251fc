package production

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"fiberqc/internal/apierr"
	"fiberqc/internal/audit"
	"fiberqc/internal/models"
	"fiberqc/internal/qc"
	"fiberqc/internal/report"
	"fiberqc/internal/response"
	"fiberqc/internal/validation"
)

var cableRequired = []string{"cable_id", "tube_color", "inside_diameter", "outside_diameter",
	"fiber_count", "customer_name", "operator_name", "bobbin_number",
	"standard_length_km", "net_length_km"}

type cableRequest struct {
	CableID          string        `json:"cable_id"`
	TubeColor        string        `json:"tube_color"`
	InsideDiameter   models.Number `json:"inside_diameter"`
	OutsideDiameter  models.Number `json:"outside_diameter"`
	FiberCount       models.Int    `json:"fiber_count"`
	CustomerName     string        `json:"customer_name"`
	OperatorName     string        `json:"operator_name"`
	BobbinNumber     string        `json:"bobbin_number"`
	StandardLengthKM models.Number `json:"standard_length_km"`
	NetLengthKM      models.Number `json:"net_length_km"`
	ReloNumber       string        `json:"relo_number"`
	Remarks          string        `json:"remarks"`
}

func (req cableRequest) validate() error {
	ve := &validation.ValidationErrors{}
	validation.ValidatePositiveFloat(ve, "inside_diameter", float64(req.InsideDiameter))
	validation.ValidatePositiveFloat(ve, "outside_diameter", float64(req.OutsideDiameter))
	validation.ValidatePositiveInt(ve, "fiber_count", int(req.FiberCount))
	validation.ValidatePositiveFloat(ve, "standard_length_km", float64(req.StandardLengthKM))
	validation.ValidatePositiveFloat(ve, "net_length_km", float64(req.NetLengthKM))
	validation.ValidateMaxLength(ve, "cable_id", req.CableID, 255)
	validation.ValidateMaxLength(ve, "remarks", req.Remarks, validation.MaxStringLength)
	return invalid(ve)
}

// CreateCable handles POST /api/cables.
func (h *Handler) CreateCable(w http.ResponseWriter, r *http.Request) {
	var req cableRequest
	if err := decodeCreate(r, &req, cableRequired...); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.Store.Cables.Create(r.Context(), models.Cable{
		CableID:          req.CableID,
		TubeColor:        req.TubeColor,
		InsideDiameter:   float64(req.InsideDiameter),
		OutsideDiameter:  float64(req.OutsideDiameter),
		FiberCount:       int(req.FiberCount),
		CustomerName:     req.CustomerName,
		OperatorName:     req.OperatorName,
		BobbinNumber:     req.BobbinNumber,
		StandardLengthKM: float64(req.StandardLengthKM),
		NetLengthKM:      float64(req.NetLengthKM),
		ReloNumber:       req.ReloNumber,
		Remarks:          req.Remarks,
	})
	if err != nil {
		h.storeErr(w, r, err, "Cable not found")
		return
	}
	h.Audit.Record(r.Context(), audit.ActionCreate, audit.ModuleCable, req.CableID,
		fmt.Sprintf("Created %s tube %s for %s", req.TubeColor, req.CableID, req.CustomerName))
	response.Created(w, "Cable created successfully", id)
}

// ListCables handles GET /api/cables.
func (h *Handler) ListCables(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.Cables.FindAll(r.Context())
	if err != nil {
		h.storeErr(w, r, err, "")
		return
	}
	response.JSON(w, items)
}

// GetCable handles GET /api/cables/{cableId}. The aggregate is written
// without the data envelope.
func (h *Handler) GetCable(w http.ResponseWriter, r *http.Request) {
	agg, err := h.Store.Cables.GetFullCableData(r.Context(), r.PathValue("cableId"))
	if err != nil {
		h.storeErr(w, r, err, "Cable not found")
		return
	}
	response.WriteJSON(w, http.StatusOK, agg)
}

type addFibersRequest struct {
	Fibers []json.RawMessage `json:"fibers"`
}

// decodeAssignment decodes one batch entry. An entry that does not decode
// keeps its fiber id, when readable, and is marked invalid so it fails on
// its own.
func decodeAssignment(raw json.RawMessage) models.FiberAssignment {
	var a models.FiberAssignment
	err := json.Unmarshal(raw, &a)
	if err == nil {
		return a
	}

	var loose struct {
		FiberID any `json:"fiber_id"`
	}
	a = models.FiberAssignment{Invalid: "invalid entry"}
	if json.Unmarshal(raw, &loose) == nil && loose.FiberID != nil {
		a.FiberID = fmt.Sprint(loose.FiberID)
	}
	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) && typ.Field != "" {
		a.Invalid = "invalid " + typ.Field
	}
	return a
}

type addFibersResponse struct {
	Message string   `json:"message"`
	Added   int      `json:"added"`
	Errors  []string `json:"errors"`
}

// AddCableFibers handles POST /api/cables/{cableId}/fibers. Entries succeed
// or fail individually: 201 when all were added, 207 when some were, 400
// when none were.
func (h *Handler) AddCableFibers(w http.ResponseWriter, r *http.Request) {
	cableID := r.PathValue("cableId")
	var req addFibersRequest
	if err := decodeCreate(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if len(req.Fibers) == 0 {
		h.fail(w, r, apierr.BadRequest("Fibers array is required"))
		return
	}

	entries := make([]models.FiberAssignment, len(req.Fibers))
	for i, raw := range req.Fibers {
		entries[i] = decodeAssignment(raw)
	}

	res, err := h.Store.CableFibers.AddFibersToCable(r.Context(), cableID, entries)
	if err != nil {
		h.storeErr(w, r, err, "Cable not found")
		return
	}

	total := len(req.Fibers)
	out := addFibersResponse{Added: res.Added, Errors: res.Errors}
	status := http.StatusCreated
	switch {
	case res.Added == total:
		out.Message = fmt.Sprintf("%d fibers added to cable %s", res.Added, cableID)
	case res.Added > 0:
		status = http.StatusMultiStatus
		out.Message = fmt.Sprintf("%d of %d fibers added to cable %s", res.Added, total, cableID)
	default:
		status = http.StatusBadRequest
		out.Message = "No fibers added"
	}
	if res.Added > 0 {
		h.Audit.Record(r.Context(), audit.ActionCreate, audit.ModuleCableFiber, cableID,
			fmt.Sprintf("Bundled %d of %d fibers into %s", res.Added, total, cableID))
	}
	response.WriteJSON(w, status, out)
}

// ListCableFibers handles GET /api/cables/{cableId}/fibers.
func (h *Handler) ListCableFibers(w http.ResponseWriter, r *http.Request) {
	cableID := r.PathValue("cableId")
	if _, err := h.Store.Cables.FindByID(r.Context(), cableID); err != nil {
		h.storeErr(w, r, err, "Cable not found")
		return
	}
	items, err := h.Store.CableFibers.GetCableFibers(r.Context(), cableID)
	if err != nil {
		h.storeErr(w, r, err, "")
		return
	}
	response.JSON(w, items)
}

// UpdateCableStatus handles PUT /api/cables/{cableId}/status.
func (h *Handler) UpdateCableStatus(w http.ResponseWriter, r *http.Request) {
	cableID := r.PathValue("cableId")
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeCreate(r, &req, "status"); err != nil {
		h.fail(w, r, err)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateEnum(ve, "status", req.Status, validation.ValidCableStatuses)
	if err := invalid(ve); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.Store.Cables.UpdateStatus(r.Context(), cableID, req.Status); err != nil {
		h.storeErr(w, r, err, "Cable not found")
		return
	}
	h.Audit.Record(r.Context(), audit.ActionUpdate, audit.ModuleCable, cableID,
		fmt.Sprintf("Status of %s set to %s", cableID, req.Status))
	response.JSON(w, map[string]string{"cable_id": cableID, "status": req.Status})
}

// GetOpticalLength handles GET /api/cables/{cableId}/optical-length: the
// value the stranding and sheathing forms auto-fill.
func (h *Handler) GetOpticalLength(w http.ResponseWriter, r *http.Request) {
	cableID := r.PathValue("cableId")
	agg, err := h.Store.Cables.GetFullCableData(r.Context(), cableID)
	if err != nil {
		h.storeErr(w, r, err, "Cable not found")
		return
	}
	out := models.OpticalLength{
		CableID:     cableID,
		FiberCount:  len(agg.Fibers),
		ShortFibers: qc.ShortFibers(agg.Fibers),
	}
	if l, ok := qc.CableOpticalLength(agg.Fibers); ok {
		out.OpticalLength = &l
	}
	response.JSON(w, out)
}

// CableReport handles GET /api/cables/{cableId}/report.
func (h *Handler) CableReport(w http.ResponseWriter, r *http.Request) {
	agg, err := h.Store.Cables.GetFullCableData(r.Context(), r.PathValue("cableId"))
	if err != nil {
		h.storeErr(w, r, err, "Cable not found")
		return
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, agg, h.now()); err != nil {
		h.fail(w, r, apierr.Internal(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
