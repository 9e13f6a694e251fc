package production_test

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fiberqc/internal/audit"
	"fiberqc/internal/handlers/production"
	"fiberqc/internal/store"
	"fiberqc/internal/testutil"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newTestHandler(t *testing.T) (*production.Handler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	h := production.New(store.New(db), audit.New(db, nil, nil), nil, false)
	h.Now = func() time.Time { return fixedNow }
	return h, db
}

// serve runs handler against req, setting path values first.
func serve(handler http.HandlerFunc, req *http.Request, pathValues ...string) *httptest.ResponseRecorder {
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), "body: %s", w.Body.String())
	return m
}

func validFiber(id string) map[string]any {
	return map[string]any{
		"fiber_id": id, "fiber_type": "G.652.D", "batch_id": "B-7",
		"distance_1310": 25.2, "attenuation_1310": 0.34,
		"distance_1550": "24.9", "attenuation_1550": "0.19",
		"operator": "Ade",
	}
}

func validCable(id string) map[string]any {
	return map[string]any{
		"cable_id": id, "tube_color": "Blue", "inside_diameter": 1.7, "outside_diameter": 2.5,
		"fiber_count": "12", "customer_name": "Acme", "operator_name": "Bola",
		"bobbin_number": "BB-3", "standard_length_km": 25, "net_length_km": 24.8,
	}
}

func validQC(cableID, status string) map[string]any {
	return map[string]any{
		"cable_id": cableID, "qc_operator": "Chi", "measured_id_diameter": 1.7,
		"measured_od_diameter": 2.5, "optical_length": 24.4, "status": status,
	}
}
