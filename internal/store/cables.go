package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fiberqc/internal/database"
	"fiberqc/internal/models"
	"fiberqc/internal/qc"
)

const cableColumns = "c.id,c.cable_id,c.tube_color,c.inside_diameter,c.outside_diameter,c.fiber_count,c.customer_name,c.operator_name,c.bobbin_number,c.standard_length_km,c.net_length_km,COALESCE(c.relo_number,''),COALESCE(c.remarks,''),COALESCE(c.status,'in_progress'),c.date_created"

// CableStore reads and writes cables (tubes) and their status.
type CableStore struct {
	db *sql.DB
}

func cableDest(c *models.Cable) []any {
	return []any{&c.ID, &c.CableID, &c.TubeColor, &c.InsideDiameter, &c.OutsideDiameter, &c.FiberCount,
		&c.CustomerName, &c.OperatorName, &c.BobbinNumber, &c.StandardLengthKM, &c.NetLengthKM,
		&c.ReloNumber, &c.Remarks, &c.Status, &c.DateCreated}
}

// Create inserts a cable in the in_progress state and returns its row id.
func (s *CableStore) Create(ctx context.Context, c models.Cable) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO cables
		(cable_id,tube_color,inside_diameter,outside_diameter,fiber_count,customer_name,operator_name,
		 bobbin_number,standard_length_km,net_length_km,relo_number,remarks,status)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.CableID, c.TubeColor, c.InsideDiameter, c.OutsideDiameter, c.FiberCount, c.CustomerName, c.OperatorName,
		c.BobbinNumber, c.StandardLengthKM, c.NetLengthKM, nullIfEmpty(c.ReloNumber), nullIfEmpty(c.Remarks), qc.CableInProgress)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

// FindAll lists cables, newest first, each with the number of fibers
// actually bundled, how many of those are short, and the status of the most
// recent QC check (nil when never checked).
func (s *CableStore) FindAll(ctx context.Context) ([]models.CableSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cableColumns+`,
			COUNT(cf.id) AS actual_fiber_count,
			COALESCE(SUM(CASE WHEN bf.distance_1550 > 0 AND bf.distance_1550 < ? THEN 1 ELSE 0 END),0) AS short_fiber_count,
			(SELECT q.status FROM qc_checks q WHERE q.cable_id = c.cable_id
				ORDER BY q.date_checked DESC, q.id DESC LIMIT 1) AS qc_status
		FROM cables c
		LEFT JOIN cable_fibers cf ON c.cable_id = cf.cable_id
		LEFT JOIN bare_fibers bf ON cf.fiber_id = bf.fiber_id
		GROUP BY c.id
		ORDER BY c.date_created DESC, c.id DESC`, qc.ShortLengthThresholdKM)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.CableSummary{}
	for rows.Next() {
		var cs models.CableSummary
		var qcStatus sql.NullString
		dest := append(cableDest(&cs.Cable), &cs.ActualFiberCount, &cs.ShortFiberCount, &qcStatus)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		cs.QCStatus = database.SP(qcStatus)
		items = append(items, cs)
	}
	return items, rows.Err()
}

// FindByID returns one cable row or ErrNotFound.
func (s *CableStore) FindByID(ctx context.Context, cableID string) (models.Cable, error) {
	return findCable(ctx, s.db, cableID)
}

func findCable(ctx context.Context, q querier, cableID string) (models.Cable, error) {
	var c models.Cable
	err := q.QueryRowContext(ctx, "SELECT "+cableColumns+" FROM cables c WHERE c.cable_id=?", cableID).Scan(cableDest(&c)...)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("find cable %s: %w", cableID, err)
	}
	return c, nil
}

// GetFullCableData composes the cable row, its fibers in position order and
// its latest QC check. A missing cable yields ErrNotFound; query failures are
// returned as-is so callers can tell the two apart.
func (s *CableStore) GetFullCableData(ctx context.Context, cableID string) (*models.CableAggregate, error) {
	cable, err := findCable(ctx, s.db, cableID)
	if err != nil {
		return nil, err
	}
	fibers, err := cableFibers(ctx, s.db, cableID)
	if err != nil {
		return nil, fmt.Errorf("cable %s fibers: %w", cableID, err)
	}
	agg := &models.CableAggregate{Cable: cable, Fibers: fibers}
	check, err := latestQCCheck(ctx, s.db, cableID)
	switch {
	case err == nil:
		agg.QCCheck = &check
	case errors.Is(err, ErrNotFound):
	default:
		return nil, fmt.Errorf("cable %s qc check: %w", cableID, err)
	}
	return agg, nil
}

// UpdateStatus sets the cable's status. An unknown status is rejected by the
// schema as a *ConstraintError; an unknown cable yields ErrNotFound.
func (s *CableStore) UpdateStatus(ctx context.Context, cableID, status string) error {
	return updateCableStatus(ctx, s.db, cableID, status)
}

func updateCableStatus(ctx context.Context, q querier, cableID, status string) error {
	res, err := q.ExecContext(ctx, "UPDATE cables SET status=? WHERE cable_id=?", status, cableID)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
