package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fiberqc/internal/models"
	"fiberqc/internal/qc"
)

const fiberColumns = "bf.id,bf.fiber_id,bf.fiber_type,bf.batch_id,bf.distance_1310,bf.attenuation_1310,bf.distance_1550,bf.attenuation_1550,bf.operator,bf.date_tested,COALESCE(bf.status,'tested')"

// FiberStore reads and writes bare fiber test records.
type FiberStore struct {
	db *sql.DB
}

func scanFiber(s scanner) (models.BareFiber, error) {
	var f models.BareFiber
	err := s.Scan(&f.ID, &f.FiberID, &f.FiberType, &f.BatchID, &f.Distance1310, &f.Attenuation1310,
		&f.Distance1550, &f.Attenuation1550, &f.Operator, &f.DateTested, &f.Status)
	f.IsShort = qc.IsShort(f.Distance1550)
	return f, err
}

// Create inserts a tested fiber and returns its row id. A fiber_id that is
// already stored yields a *ConstraintError and no row.
func (s *FiberStore) Create(ctx context.Context, f models.BareFiber) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO bare_fibers
		(fiber_id,fiber_type,batch_id,distance_1310,attenuation_1310,distance_1550,attenuation_1550,operator)
		VALUES (?,?,?,?,?,?,?,?)`,
		f.FiberID, f.FiberType, f.BatchID, f.Distance1310, f.Attenuation1310, f.Distance1550, f.Attenuation1550, f.Operator)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

// FindAll returns every fiber, most recently tested first.
func (s *FiberStore) FindAll(ctx context.Context) ([]models.BareFiber, error) {
	return s.list(ctx, "SELECT "+fiberColumns+" FROM bare_fibers bf ORDER BY bf.date_tested DESC, bf.id DESC")
}

// FindAvailable returns the fibers not yet bundled into any cable.
func (s *FiberStore) FindAvailable(ctx context.Context) ([]models.BareFiber, error) {
	return s.list(ctx, `SELECT `+fiberColumns+` FROM bare_fibers bf
		LEFT JOIN cable_fibers cf ON bf.fiber_id = cf.fiber_id
		WHERE cf.id IS NULL
		ORDER BY bf.date_tested DESC, bf.id DESC`)
}

// FindByFiberID returns one fiber or ErrNotFound.
func (s *FiberStore) FindByFiberID(ctx context.Context, fiberID string) (models.BareFiber, error) {
	f, err := scanFiber(s.db.QueryRowContext(ctx, "SELECT "+fiberColumns+" FROM bare_fibers bf WHERE bf.fiber_id=?", fiberID))
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	if err != nil {
		return f, fmt.Errorf("find fiber %s: %w", fiberID, err)
	}
	return f, nil
}

func (s *FiberStore) list(ctx context.Context, query string, args ...any) ([]models.BareFiber, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []models.BareFiber{}
	for rows.Next() {
		f, err := scanFiber(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}
