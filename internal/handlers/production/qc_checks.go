package production

import (
	"errors"
	"fmt"
	"net/http"

	"fiberqc/internal/audit"
	"fiberqc/internal/models"
	"fiberqc/internal/response"
	"fiberqc/internal/store"
	"fiberqc/internal/validation"
)

var qcCheckRequired = []string{"cable_id", "qc_operator", "measured_id_diameter",
	"measured_od_diameter", "optical_length", "status"}

type qcCheckRequest struct {
	CableID            string        `json:"cable_id"`
	QCOperator         string        `json:"qc_operator"`
	MeasuredIDDiameter models.Number `json:"measured_id_diameter"`
	MeasuredODDiameter models.Number `json:"measured_od_diameter"`
	OpticalLength      models.Number `json:"optical_length"`
	Status             string        `json:"status"`
	Remarks            string        `json:"remarks"`
}

func (req qcCheckRequest) validate() error {
	ve := &validation.ValidationErrors{}
	validation.ValidatePositiveFloat(ve, "measured_id_diameter", float64(req.MeasuredIDDiameter))
	validation.ValidatePositiveFloat(ve, "measured_od_diameter", float64(req.MeasuredODDiameter))
	validation.ValidatePositiveFloat(ve, "optical_length", float64(req.OpticalLength))
	validation.ValidateEnum(ve, "status", req.Status, validation.ValidQCStatuses)
	validation.ValidateMaxLength(ve, "remarks", req.Remarks, validation.MaxStringLength)
	return invalid(ve)
}

// CreateQCCheck handles POST /api/qc-checks. Recording a check also moves
// the cable to qc_passed or qc_failed.
func (h *Handler) CreateQCCheck(w http.ResponseWriter, r *http.Request) {
	var req qcCheckRequest
	if err := decodeCreate(r, &req, qcCheckRequired...); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.Store.QCChecks.RecordQCCheckAndUpdateCableStatus(r.Context(), models.QCCheck{
		CableID:            req.CableID,
		QCOperator:         req.QCOperator,
		MeasuredIDDiameter: float64(req.MeasuredIDDiameter),
		MeasuredODDiameter: float64(req.MeasuredODDiameter),
		OpticalLength:      float64(req.OpticalLength),
		Status:             req.Status,
		Remarks:            req.Remarks,
	})
	if err != nil {
		h.storeErr(w, r, err, "Cable not found")
		return
	}
	h.Audit.Record(r.Context(), audit.ActionCreate, audit.ModuleQCCheck, req.CableID,
		fmt.Sprintf("QC %s for %s by %s", req.Status, req.CableID, req.QCOperator))
	response.Created(w, "QC check saved successfully", id)
}

// ListQCChecks handles GET /api/qc-checks.
func (h *Handler) ListQCChecks(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.QCChecks.FindAll(r.Context())
	if err != nil {
		h.storeErr(w, r, err, "")
		return
	}
	response.JSON(w, items)
}

// GetLatestQCCheck handles GET /api/qc-checks/{cableId}. A cable that was
// never checked yields {"data": null}.
func (h *Handler) GetLatestQCCheck(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.QCChecks.FindByCableID(r.Context(), r.PathValue("cableId"))
	if errors.Is(err, store.ErrNotFound) {
		response.JSON(w, nil)
		return
	}
	if err != nil {
		h.storeErr(w, r, err, "")
		return
	}
	response.JSON(w, c)
}
