package models

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// APIResponse is the standard JSON envelope for list and lookup responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Created is the body returned by every creation endpoint.
type Created struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type BareFiber struct {
	ID              int64   `json:"id"`
	FiberID         string  `json:"fiber_id"`
	FiberType       string  `json:"fiber_type"`
	BatchID         string  `json:"batch_id"`
	Distance1310    float64 `json:"distance_1310"`
	Attenuation1310 float64 `json:"attenuation_1310"`
	Distance1550    float64 `json:"distance_1550"`
	Attenuation1550 float64 `json:"attenuation_1550"`
	Operator        string  `json:"operator"`
	DateTested      string  `json:"date_tested"`
	Status          string  `json:"status"`
	IsShort         bool    `json:"is_short"`
}

type Cable struct {
	ID               int64   `json:"id"`
	CableID          string  `json:"cable_id"`
	TubeColor        string  `json:"tube_color"`
	InsideDiameter   float64 `json:"inside_diameter"`
	OutsideDiameter  float64 `json:"outside_diameter"`
	FiberCount       int     `json:"fiber_count"`
	CustomerName     string  `json:"customer_name"`
	OperatorName     string  `json:"operator_name"`
	BobbinNumber     string  `json:"bobbin_number"`
	StandardLengthKM float64 `json:"standard_length_km"`
	NetLengthKM      float64 `json:"net_length_km"`
	ReloNumber       string  `json:"relo_number"`
	Remarks          string  `json:"remarks"`
	Status           string  `json:"status"`
	DateCreated      string  `json:"date_created"`
}

// CableSummary is a cable row as listed, with values derived from its
// associations and QC history.
type CableSummary struct {
	Cable
	ActualFiberCount int     `json:"actual_fiber_count"`
	ShortFiberCount  int     `json:"short_fiber_count"`
	QCStatus         *string `json:"qc_status"`
}

// CableFiber links a bare fiber to a numbered position in a cable.
type CableFiber struct {
	ID            int64  `json:"id"`
	CableID       string `json:"cable_id"`
	FiberID       string `json:"fiber_id"`
	StandardColor string `json:"standard_color"`
	Position      int    `json:"position"`
}

// CableFiberDetail is an association row joined with the fiber's test data.
type CableFiberDetail struct {
	CableFiber
	FiberType       string  `json:"fiber_type"`
	BatchID         string  `json:"batch_id"`
	Distance1310    float64 `json:"distance_1310"`
	Attenuation1310 float64 `json:"attenuation_1310"`
	Distance1550    float64 `json:"distance_1550"`
	Attenuation1550 float64 `json:"attenuation_1550"`
	Operator        string  `json:"operator"`
	DateTested      string  `json:"date_tested"`
	IsShort         bool    `json:"is_short"`
}

type QCCheck struct {
	ID                 int64   `json:"id"`
	CableID            string  `json:"cable_id"`
	QCOperator         string  `json:"qc_operator"`
	DateChecked        string  `json:"date_checked"`
	MeasuredIDDiameter float64 `json:"measured_id_diameter"`
	MeasuredODDiameter float64 `json:"measured_od_diameter"`
	OpticalLength      float64 `json:"optical_length"`
	Status             string  `json:"status"`
	Remarks            string  `json:"remarks"`
}

// QCCheckSummary is a QC check joined with its cable's identifying fields.
type QCCheckSummary struct {
	QCCheck
	CustomerName string `json:"customer_name"`
	TubeColor    string `json:"tube_color"`
}

// CableAggregate is everything known about one cable.
type CableAggregate struct {
	Cable   Cable              `json:"cable"`
	Fibers  []CableFiberDetail `json:"fibers"`
	QCCheck *QCCheck           `json:"qc_check"`
}

// FiberAssignment is one entry of an add-fibers batch.
type FiberAssignment struct {
	FiberID       string `json:"fiber_id"`
	StandardColor string `json:"standard_color"`
	Position      Int    `json:"position"`

	// Invalid is set when the entry could not be decoded; the entry is then
	// reported as failed instead of inserted.
	Invalid string `json:"-"`
}

// BatchResult reports the outcome of an add-fibers batch.
type BatchResult struct {
	Added  int      `json:"added"`
	Errors []string `json:"errors"`
}

type OpticalLength struct {
	CableID       string   `json:"cable_id"`
	OpticalLength *float64 `json:"optical_length"`
	FiberCount    int      `json:"fiber_count"`
	ShortFibers   []string `json:"short_fibers"`
}

type AuditEntry struct {
	ID        int64  `json:"id"`
	Action    string `json:"action"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

// Number is a float64 that decodes from a JSON number or a numeric string.
// Form inputs post their values as strings.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	f, err := parseNumeric(b, reflect.TypeOf(n).Elem())
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Int is an int that decodes from a JSON number or a numeric string.
type Int int

func (n *Int) UnmarshalJSON(b []byte) error {
	f, err := parseNumeric(b, reflect.TypeOf(n).Elem())
	if err != nil {
		return err
	}
	if f != math.Trunc(f) {
		return &json.UnmarshalTypeError{Value: "number " + string(b), Type: reflect.TypeOf(n).Elem()}
	}
	*n = Int(f)
	return nil
}

// parseNumeric returns a *json.UnmarshalTypeError on bad input so the
// decoder attaches the field name.
func parseNumeric(b []byte, typ reflect.Type) (float64, error) {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return 0, nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &json.UnmarshalTypeError{Value: "string " + string(b), Type: typ}
	}
	return f, nil
}
