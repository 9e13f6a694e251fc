// Package store holds the per-entity accessors over the production database.
// Every statement is a parameterized SQL string; multi-statement operations
// run inside a single transaction.
package store

import (
	"context"
	"database/sql"
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a single-entity lookup matches no row.
var ErrNotFound = errors.New("not found")

// ConstraintError wraps a driver error caused by a UNIQUE, FOREIGN KEY,
// CHECK or NOT NULL violation. Its message is the driver's.
type ConstraintError struct {
	Err error
}

func (e *ConstraintError) Error() string { return e.Err.Error() }

func (e *ConstraintError) Unwrap() error { return e.Err }

// IsConstraint reports whether err is (or wraps) a constraint violation.
func IsConstraint(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// classify turns driver constraint failures into *ConstraintError.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return &ConstraintError{Err: err}
	}
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Store groups the accessors that share one database handle.
type Store struct {
	DB          *sql.DB
	Fibers      *FiberStore
	Cables      *CableStore
	CableFibers *CableFiberStore
	QCChecks    *QCCheckStore
}

func New(db *sql.DB) *Store {
	return &Store{
		DB:          db,
		Fibers:      &FiberStore{db: db},
		Cables:      &CableStore{db: db},
		CableFibers: &CableFiberStore{db: db},
		QCChecks:    &QCCheckStore{db: db},
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func cableExists(ctx context.Context, q querier, cableID string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM cables WHERE cable_id=?", cableID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
