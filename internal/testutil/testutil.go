package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fiberqc/internal/database"
	"fiberqc/internal/models"
)

// SetupTestDB creates an in-memory SQLite database with foreign keys
// enabled and the production schema migrated. It is closed at test cleanup.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	testDB, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })
	return testDB
}

// SeedFiber inserts a tested bare fiber with the given 1310nm and 1550nm
// distances.
func SeedFiber(t *testing.T, db *sql.DB, fiberID string, d1310, d1550 float64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO bare_fibers
		(fiber_id,fiber_type,batch_id,distance_1310,attenuation_1310,distance_1550,attenuation_1550,operator)
		VALUES (?,?,?,?,?,?,?,?)`,
		fiberID, "G.652D", "B-001", d1310, 0.33, d1550, 0.19, "op1")
	if err != nil {
		t.Fatalf("Failed to seed fiber %s: %v", fiberID, err)
	}
}

// SeedCable inserts an in_progress cable declaring fiberCount fibers.
func SeedCable(t *testing.T, db *sql.DB, cableID string, fiberCount int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO cables
		(cable_id,tube_color,inside_diameter,outside_diameter,fiber_count,customer_name,operator_name,
		 bobbin_number,standard_length_km,net_length_km)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		cableID, "Blue", 1.7, 2.5, fiberCount, "Acme Telecom", "op2", "BB-7", 25, 24.8)
	if err != nil {
		t.Fatalf("Failed to seed cable %s: %v", cableID, err)
	}
}

// SeedAssignment places a fiber at a position of a cable.
func SeedAssignment(t *testing.T, db *sql.DB, cableID, fiberID string, position int) {
	t.Helper()
	_, err := db.Exec("INSERT INTO cable_fibers (cable_id,fiber_id,standard_color,position) VALUES (?,?,?,?)",
		cableID, fiberID, "Blue", position)
	if err != nil {
		t.Fatalf("Failed to seed assignment %s/%s: %v", cableID, fiberID, err)
	}
}

// CableStatus reads the stored status of a cable.
func CableStatus(t *testing.T, db *sql.DB, cableID string) string {
	t.Helper()
	var status string
	if err := db.QueryRow("SELECT status FROM cables WHERE cable_id=?", cableID).Scan(&status); err != nil {
		t.Fatalf("Failed to read cable %s status: %v", cableID, err)
	}
	return status
}

// CountRows returns the number of rows in a table.
func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// JSONRequest builds a request whose body is the JSON encoding of body.
// A string or []byte body is sent verbatim.
func JSONRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	switch b := body.(type) {
	case nil:
	case string:
		bodyBytes = []byte(b)
	case []byte:
		bodyBytes = b
	default:
		bodyBytes, _ = json.Marshal(body)
	}

	var req *http.Request
	if bodyBytes != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeAPIResponse decodes an APIResponse from a ResponseRecorder.
func DecodeAPIResponse(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var response models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode API response: %v", err)
	}
	return response
}

// AssertStatus checks that the HTTP status code matches expected.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeEnvelope decodes an API response envelope and extracts the data.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode API envelope: %v", err)
	}
	dataBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(dataBytes, v); err != nil {
		t.Fatalf("Failed to decode data from envelope: %v", err)
	}
}

// DecodeError returns the "error" field of an error body.
func DecodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error body %q: %v", w.Body.String(), err)
	}
	return body.Error
}
