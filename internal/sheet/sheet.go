package sheet

import (
	"context"
	"errors"
	"fmt"
)

// Worksheet column headers the engine depends on. Positions are resolved
// from the header row at run start, never hardcoded.
const (
	ColInternalID  = "ID Interno"
	ColMeterSerial = "Medidor Principal"
	ColMeterIP     = "IP Principal"
	ColFxFactor    = "Factor \nFx"
	ColActiveBrand = "Marca Medidor Activo"
	ColInstallDate = "Fecha Instalación\n(MM/DD/YYYY)"
)

// Standard errors
var (
	// ErrRead marks snapshot read failures. A read failure is a global
	// precondition failure: the run cannot proceed without a snapshot.
	ErrRead = errors.New("sheet: read failed")
)

// IsRead reports whether err came from reading the worksheet snapshot.
func IsRead(err error) bool {
	return errors.Is(err, ErrRead)
}

// Reader provides the point-in-time worksheet snapshot a run reconciles
// against. Row and column indexes are 1-based throughout.
type Reader interface {
	// Header returns the first row of the worksheet.
	Header(ctx context.Context) ([]string, error)

	// Column returns one full column, header cell included. Trailing
	// empty cells may be omitted by the backend.
	Column(ctx context.Context, col int) ([]string, error)
}

// Writer applies cell-level mutations to the worksheet. Each call may
// fail independently; callers decide whether a failure is fatal.
type Writer interface {
	// UpdateCells writes the given column→value pairs into one row.
	UpdateCells(ctx context.Context, row int, values map[int]string) error

	// CopyRow copies the full content of one row (values, formulas,
	// formatting) over another.
	CopyRow(ctx context.Context, src, dst int) error

	// ColorRow paints the processed-marker background over the first
	// width columns of a row.
	ColorRow(ctx context.Context, row, width int) error
}

// ReadWriter combines both halves of the worksheet contract.
type ReadWriter interface {
	Reader
	Writer
}

// Columns maps header names to 1-based column indexes. Duplicate header
// names keep the first occurrence.
type Columns map[string]int

// NewColumns builds the name→index map from a header row.
func NewColumns(header []string) Columns {
	cols := make(Columns, len(header))
	for i, name := range header {
		if _, ok := cols[name]; !ok {
			cols[name] = i + 1
		}
	}
	return cols
}

// Require returns an error naming the first of the given headers that is
// missing from the worksheet.
func (c Columns) Require(names ...string) error {
	for _, name := range names {
		if _, ok := c[name]; !ok {
			return fmt.Errorf("worksheet is missing column %q", name)
		}
	}
	return nil
}
