package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Open opens (creating if needed) the SQLite database at path and runs the
// schema migrations. ":memory:" opens a private in-memory database.
func Open(path string) (*sql.DB, error) {
	memory := path == ":memory:" || strings.HasPrefix(path, "file::memory:")
	if !memory {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	// Pragmas in the DSN are applied to every pooled connection. Transactions
	// begin IMMEDIATE so a read-then-write tx waits on busy_timeout for the
	// write lock instead of failing the upgrade with SQLITE_BUSY.
	dsn := path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_txlock=immediate"
	if !memory {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []struct {
	name string
	ddl  string
}{
	{"bare_fibers", `CREATE TABLE IF NOT EXISTS bare_fibers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fiber_id TEXT UNIQUE NOT NULL,
		fiber_type TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		distance_1310 REAL NOT NULL,
		attenuation_1310 REAL NOT NULL,
		distance_1550 REAL NOT NULL,
		attenuation_1550 REAL NOT NULL,
		operator TEXT NOT NULL,
		date_tested DATETIME DEFAULT CURRENT_TIMESTAMP,
		status TEXT DEFAULT 'tested'
	)`},
	{"cables", `CREATE TABLE IF NOT EXISTS cables (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cable_id TEXT UNIQUE NOT NULL,
		tube_color TEXT NOT NULL,
		inside_diameter REAL NOT NULL,
		outside_diameter REAL NOT NULL,
		fiber_count INTEGER NOT NULL,
		customer_name TEXT NOT NULL,
		operator_name TEXT NOT NULL,
		bobbin_number TEXT NOT NULL,
		standard_length_km REAL NOT NULL,
		net_length_km REAL NOT NULL,
		relo_number TEXT,
		remarks TEXT,
		status TEXT DEFAULT 'in_progress' CHECK(status IN ('in_progress','qc_passed','qc_failed','completed')),
		date_created DATETIME DEFAULT CURRENT_TIMESTAMP
	)`},
	{"cable_fibers", `CREATE TABLE IF NOT EXISTS cable_fibers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cable_id TEXT NOT NULL,
		fiber_id TEXT NOT NULL,
		standard_color TEXT NOT NULL,
		position INTEGER NOT NULL CHECK(position > 0),
		FOREIGN KEY (cable_id) REFERENCES cables (cable_id),
		FOREIGN KEY (fiber_id) REFERENCES bare_fibers (fiber_id)
	)`},
	{"qc_checks", `CREATE TABLE IF NOT EXISTS qc_checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cable_id TEXT NOT NULL,
		qc_operator TEXT NOT NULL,
		date_checked DATETIME DEFAULT CURRENT_TIMESTAMP,
		measured_id_diameter REAL NOT NULL,
		measured_od_diameter REAL NOT NULL,
		optical_length REAL NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('pass','fail')),
		remarks TEXT,
		FOREIGN KEY (cable_id) REFERENCES cables (cable_id)
	)`},
	{"audit_log", `CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		module TEXT NOT NULL,
		record_id TEXT NOT NULL,
		summary TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`},
	// One fiber belongs to at most one cable, one fiber per position.
	{"ux_cable_fibers_fiber", `CREATE UNIQUE INDEX IF NOT EXISTS ux_cable_fibers_fiber ON cable_fibers(fiber_id)`},
	{"ux_cable_fibers_position", `CREATE UNIQUE INDEX IF NOT EXISTS ux_cable_fibers_position ON cable_fibers(cable_id, position)`},
	{"idx_qc_checks_cable", `CREATE INDEX IF NOT EXISTS idx_qc_checks_cable ON qc_checks(cable_id, date_checked)`},
	{"idx_bare_fibers_tested", `CREATE INDEX IF NOT EXISTS idx_bare_fibers_tested ON bare_fibers(date_tested)`},
}

// Migrate creates every table and index that does not exist yet. It is safe
// to run on every start.
func Migrate(db *sql.DB) error {
	for _, s := range schema {
		if _, err := db.Exec(s.ddl); err != nil {
			return fmt.Errorf("%s migration: %w", s.name, err)
		}
	}
	return nil
}

// Tables lists the table names Migrate creates, in creation order.
func Tables() []string {
	var out []string
	for _, s := range schema {
		if strings.HasPrefix(strings.TrimSpace(s.ddl), "CREATE TABLE") {
			out = append(out, s.name)
		}
	}
	return out
}

// SP converts a nullable column into a string pointer.
func SP(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
