package audit

import (
	"context"
	"database/sql"

	"fiberqc/internal/logger"
	"fiberqc/internal/models"
	"fiberqc/internal/websocket"
)

// Action constants.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionExport = "export"
)

// Modules recorded in the log.
const (
	ModuleBareFiber  = "bare_fiber"
	ModuleCable      = "cable"
	ModuleCableFiber = "cable_fiber"
	ModuleQCCheck    = "qc_check"
)

// DefaultLimit and MaxLimit bound List.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Recorder writes audit rows and broadcasts the matching change events.
type Recorder struct {
	db  *sql.DB
	hub *websocket.Hub
	log *logger.Logger
}

// New returns a Recorder. hub may be nil.
func New(db *sql.DB, hub *websocket.Hub, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{db: db, hub: hub, log: log}
}

// Record logs one successful write. A failure to write the audit row is
// logged and does not fail the request that caused it.
func (a *Recorder) Record(ctx context.Context, action, module, recordID, summary string) {
	if a == nil {
		return
	}
	_, err := a.db.ExecContext(ctx, "INSERT INTO audit_log (action, module, record_id, summary) VALUES (?, ?, ?, ?)",
		action, module, recordID, summary)
	if err != nil {
		a.log.Error("audit log insert failed", "module", module, "record_id", recordID, "error", err)
	}
	a.hub.BroadcastChange(module, action, recordID)
}

// ClampLimit maps a requested page size into [1, MaxLimit]; zero or less
// means DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Count returns the number of audit entries.
func (a *Recorder) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&n)
	return n, err
}

// List returns the most recent entries, newest first, at most
// ClampLimit(limit) of them.
func (a *Recorder) List(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	limit = ClampLimit(limit)
	rows, err := a.db.QueryContext(ctx, `SELECT id, action, module, record_id, COALESCE(summary,''), created_at
		FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.Module, &e.RecordID, &e.Summary, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
