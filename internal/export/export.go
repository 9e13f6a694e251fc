// Package export renders production records as CSV or XLSX sheets for the
// plant's spreadsheets.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"fiberqc/internal/audit"
	"fiberqc/internal/models"
	"fiberqc/internal/store"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Exportable entities.
const (
	EntityBareFibers = "bare-fibers"
	EntityCables     = "cables"
	EntityQCChecks   = "qc-checks"
)

var (
	ErrUnknownEntity = errors.New("unknown export entity")
	ErrUnknownFormat = errors.New("unknown export format")
)

// Table is a sheet: a name, a header row and typed cells. Module is the
// audit module of the rows.
type Table struct {
	Name    string
	Module  string
	Headers []string
	Rows    [][]any
}

// Filename is the download name for the table in the given format.
func (t Table) Filename(format string) string {
	return strings.ToLower(strings.ReplaceAll(t.Name, " ", "_")) + "." + format
}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// ParseFormat normalizes a format name; empty means CSV.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, s)
}

// Load reads one entity from the store as a Table.
func Load(ctx context.Context, st *store.Store, entity string) (Table, error) {
	switch entity {
	case EntityBareFibers:
		items, err := st.Fibers.FindAll(ctx)
		if err != nil {
			return Table{}, err
		}
		return BareFibers(items), nil
	case EntityCables:
		items, err := st.Cables.FindAll(ctx)
		if err != nil {
			return Table{}, err
		}
		return Cables(items), nil
	case EntityQCChecks:
		items, err := st.QCChecks.FindAll(ctx)
		if err != nil {
			return Table{}, err
		}
		return QCChecks(items), nil
	}
	return Table{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
}

func BareFibers(items []models.BareFiber) Table {
	t := Table{
		Name:   "Bare Fibers",
		Module: audit.ModuleBareFiber,
		Headers: []string{"Fiber ID", "Type", "Batch", "Distance 1310 (km)", "Attenuation 1310 (dB/km)",
			"Distance 1550 (km)", "Attenuation 1550 (dB/km)", "Operator", "Date Tested", "Status", "Short"},
	}
	for _, f := range items {
		t.Rows = append(t.Rows, []any{f.FiberID, f.FiberType, f.BatchID, f.Distance1310, f.Attenuation1310,
			f.Distance1550, f.Attenuation1550, f.Operator, f.DateTested, f.Status, yesNo(f.IsShort)})
	}
	return t
}

func Cables(items []models.CableSummary) Table {
	t := Table{
		Name:   "Cables",
		Module: audit.ModuleCable,
		Headers: []string{"Cable ID", "Tube Color", "ID (mm)", "OD (mm)", "Fiber Count", "Actual Fibers",
			"Short Fibers", "Customer", "Operator", "Bobbin", "Standard Length (km)", "Net Length (km)",
			"Relo", "Status", "QC Status", "Created"},
	}
	for _, c := range items {
		qcStatus := ""
		if c.QCStatus != nil {
			qcStatus = *c.QCStatus
		}
		t.Rows = append(t.Rows, []any{c.CableID, c.TubeColor, c.InsideDiameter, c.OutsideDiameter, c.FiberCount,
			c.ActualFiberCount, c.ShortFiberCount, c.CustomerName, c.OperatorName, c.BobbinNumber,
			c.StandardLengthKM, c.NetLengthKM, c.ReloNumber, c.Status, qcStatus, c.DateCreated})
	}
	return t
}

func QCChecks(items []models.QCCheckSummary) Table {
	t := Table{
		Name:   "QC Checks",
		Module: audit.ModuleQCCheck,
		Headers: []string{"Cable ID", "Customer", "Tube Color", "QC Operator", "Date Checked",
			"Measured ID (mm)", "Measured OD (mm)", "Optical Length (km)", "Status", "Remarks"},
	}
	for _, q := range items {
		t.Rows = append(t.Rows, []any{q.CableID, q.CustomerName, q.TubeColor, q.QCOperator, q.DateChecked,
			q.MeasuredIDDiameter, q.MeasuredODDiameter, q.OpticalLength, strings.ToUpper(q.Status), q.Remarks})
	}
	return t
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Write renders t in the given format.
func Write(w io.Writer, format string, t Table) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	}
	return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Headers); err != nil {
		return fmt.Errorf("write CSV headers: %w", err)
	}
	record := make([]string, len(t.Headers))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = cellString(v)
		}
		if err := writer.Write(record[:len(row)]); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return csvSafe(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// csvSafe quotes operator text that a spreadsheet would read as a formula.
func csvSafe(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// WriteXLSX writes a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Name
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, header := range t.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for r, row := range t.Rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}

	if n := len(t.Headers); n > 0 {
		last, _ := excelize.ColumnNumberToName(n)
		if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
			return err
		}
	}

	return f.Write(w)
}
