package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fiberqc/internal/models"
	"fiberqc/internal/qc"
)

const qcColumns = "q.id,q.cable_id,q.qc_operator,q.date_checked,q.measured_id_diameter,q.measured_od_diameter,q.optical_length,q.status,COALESCE(q.remarks,'')"

// QCCheckStore reads and writes stranding/sheathing QC checks.
type QCCheckStore struct {
	db *sql.DB
}

func qcDest(c *models.QCCheck) []any {
	return []any{&c.ID, &c.CableID, &c.QCOperator, &c.DateChecked, &c.MeasuredIDDiameter,
		&c.MeasuredODDiameter, &c.OpticalLength, &c.Status, &c.Remarks}
}

// RecordQCCheckAndUpdateCableStatus stores a QC check and moves its cable to
// qc_passed or qc_failed in the same transaction. An unknown cable yields
// ErrNotFound and nothing is written.
func (s *QCCheckStore) RecordQCCheckAndUpdateCableStatus(ctx context.Context, c models.QCCheck) (int64, error) {
	cableStatus, ok := qc.CableStatusForQC(c.Status)
	if !ok {
		return 0, &ConstraintError{Err: fmt.Errorf("invalid QC status %q", c.Status)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	exists, err := cableExists(ctx, tx, c.CableID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO qc_checks
		(cable_id,qc_operator,measured_id_diameter,measured_od_diameter,optical_length,status,remarks)
		VALUES (?,?,?,?,?,?,?)`,
		c.CableID, c.QCOperator, c.MeasuredIDDiameter, c.MeasuredODDiameter, c.OpticalLength, c.Status, nullIfEmpty(c.Remarks))
	if err != nil {
		return 0, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := updateCableStatus(ctx, tx, c.CableID, cableStatus); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// FindByCableID returns the most recent check of a cable or ErrNotFound.
func (s *QCCheckStore) FindByCableID(ctx context.Context, cableID string) (models.QCCheck, error) {
	return latestQCCheck(ctx, s.db, cableID)
}

func latestQCCheck(ctx context.Context, q querier, cableID string) (models.QCCheck, error) {
	var c models.QCCheck
	err := q.QueryRowContext(ctx, "SELECT "+qcColumns+` FROM qc_checks q WHERE q.cable_id=?
		ORDER BY q.date_checked DESC, q.id DESC LIMIT 1`, cableID).Scan(qcDest(&c)...)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("latest qc check %s: %w", cableID, err)
	}
	return c, nil
}

// FindAll lists every check with its cable's customer and tube color,
// newest first.
func (s *QCCheckStore) FindAll(ctx context.Context) ([]models.QCCheckSummary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+qcColumns+`,c.customer_name,c.tube_color
		FROM qc_checks q
		JOIN cables c ON q.cable_id = c.cable_id
		ORDER BY q.date_checked DESC, q.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.QCCheckSummary{}
	for rows.Next() {
		var cs models.QCCheckSummary
		dest := append(qcDest(&cs.QCCheck), &cs.CustomerName, &cs.TubeColor)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		items = append(items, cs)
	}
	return items, rows.Err()
}
