package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fiberqc/internal/models"
	"fiberqc/internal/qc"
)

// CableFiberStore manages fiber-to-cable assignments.
type CableFiberStore struct {
	db *sql.DB
}

// AddFibersToCable assigns fibers to positions of a cable.
//
// The batch has a partial-success contract: every entry is attempted inside
// its own savepoint of one transaction. A failing entry is rolled back to its
// savepoint and reported as "Fiber <id>: <reason>"; the others are kept. The
// transaction commits after the last entry. An error is returned only when
// the batch as a whole could not run (unknown cable, begin/commit failure),
// in which case nothing is persisted.
func (s *CableFiberStore) AddFibersToCable(ctx context.Context, cableID string, entries []models.FiberAssignment) (models.BatchResult, error) {
	res := models.BatchResult{Errors: []string{}}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	ok, err := cableExists(ctx, tx, cableID)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, ErrNotFound
	}

	for i, e := range entries {
		label := strings.TrimSpace(e.FiberID)
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if reason := assignmentProblem(e); reason != "" {
			res.Errors = append(res.Errors, fmt.Sprintf("Fiber %s: %s", label, reason))
			continue
		}

		sp := fmt.Sprintf("fiber_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			return models.BatchResult{Errors: []string{}}, err
		}
		_, insErr := tx.ExecContext(ctx, "INSERT INTO cable_fibers (cable_id,fiber_id,standard_color,position) VALUES (?,?,?,?)",
			cableID, e.FiberID, e.StandardColor, int(e.Position))
		if insErr != nil {
			if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); err != nil {
				return models.BatchResult{Errors: []string{}}, err
			}
			res.Errors = append(res.Errors, fmt.Sprintf("Fiber %s: %s", label, classify(insErr).Error()))
		} else {
			res.Added++
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			return models.BatchResult{Errors: []string{}}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.BatchResult{Errors: []string{}}, err
	}
	return res, nil
}

func assignmentProblem(e models.FiberAssignment) string {
	if e.Invalid != "" {
		return e.Invalid
	}
	var missing []string
	if strings.TrimSpace(e.FiberID) == "" {
		missing = append(missing, "fiber_id")
	}
	if strings.TrimSpace(e.StandardColor) == "" {
		missing = append(missing, "standard_color")
	}
	if e.Position == 0 {
		missing = append(missing, "position")
	}
	if len(missing) > 0 {
		return "Missing required fields: " + strings.Join(missing, ", ")
	}
	if e.Position < 0 {
		return "position must be a positive integer"
	}
	return ""
}

// GetCableFibers returns the fibers assigned to a cable joined with their
// test measurements, in position order.
func (s *CableFiberStore) GetCableFibers(ctx context.Context, cableID string) ([]models.CableFiberDetail, error) {
	return cableFibers(ctx, s.db, cableID)
}

func cableFibers(ctx context.Context, q querier, cableID string) ([]models.CableFiberDetail, error) {
	rows, err := q.QueryContext(ctx, `SELECT cf.id,cf.cable_id,cf.fiber_id,cf.standard_color,cf.position,
			bf.fiber_type,bf.batch_id,bf.distance_1310,bf.attenuation_1310,bf.distance_1550,bf.attenuation_1550,
			bf.operator,bf.date_tested
		FROM cable_fibers cf
		JOIN bare_fibers bf ON cf.fiber_id = bf.fiber_id
		WHERE cf.cable_id = ?
		ORDER BY cf.position`, cableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.CableFiberDetail{}
	for rows.Next() {
		var d models.CableFiberDetail
		if err := rows.Scan(&d.ID, &d.CableID, &d.FiberID, &d.StandardColor, &d.Position,
			&d.FiberType, &d.BatchID, &d.Distance1310, &d.Attenuation1310, &d.Distance1550, &d.Attenuation1550,
			&d.Operator, &d.DateTested); err != nil {
			return nil, err
		}
		d.IsShort = qc.IsShort(d.Distance1550)
		items = append(items, d)
	}
	return items, rows.Err()
}
