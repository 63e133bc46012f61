package reconciler

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/bia-energy/telemedida/internal/record"
	"github.com/bia-energy/telemedida/internal/sheet"
)

// installDateLayout is the fixed MM/DD/YYYY format the worksheet expects.
const installDateLayout = "01/02/2006"

// Reconciler decides, per unified record, whether to update an existing
// worksheet row in place or insert a new one below the last data row,
// and applies the resulting mutation through the sheet writer.
type Reconciler struct {
	writer  sheet.Writer
	columns sheet.Columns
	index   *sheet.Index
	width   int // header width, the span the processed marker covers
	logger  *slog.Logger
}

// New builds a reconciler over one run's worksheet snapshot. columns and
// index come from the header and ID Interno column read at run start.
func New(writer sheet.Writer, columns sheet.Columns, index *sheet.Index, width int, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		writer:  writer,
		columns: columns,
		index:   index,
		width:   width,
		logger:  logger,
	}
}

// Apply reconciles one record. cursor is the last data row before this
// call; the returned cursor accounts for any insert, so consecutive
// inserts within a run target consecutive rows. Apply must therefore be
// called in the deduplicator's output order.
//
// Any failure is returned as a *CodeError and leaves the cursor
// unchanged; the caller records it and continues with the next record.
func (r *Reconciler) Apply(ctx context.Context, rec record.UnifiedRecord, cursor int) (Outcome, int, error) {
	state := StatePending

	fail := func(err error) (Outcome, int, error) {
		return Outcome{}, cursor, &CodeError{Code: rec.InternalCode, State: state, Err: err}
	}

	if err := r.columns.Require(
		sheet.ColInternalID,
		sheet.ColMeterSerial,
		sheet.ColMeterIP,
		sheet.ColFxFactor,
		sheet.ColActiveBrand,
	); err != nil {
		return fail(err)
	}

	fields := map[int]string{
		r.columns[sheet.ColMeterSerial]: rec.MeterSerial,
		r.columns[sheet.ColMeterIP]:     rec.MeterIP,
		r.columns[sheet.ColFxFactor]:    formatFxFactor(rec.FxFactor),
		r.columns[sheet.ColActiveBrand]: rec.ActiveMeterBrand,
	}

	if row, ok := r.index.Lookup(rec.InternalCode); ok {
		state = StateMatched
		r.logger.Info("code matched, updating in place",
			"code", rec.InternalCode, "row", row)

		if err := r.writer.UpdateCells(ctx, row, fields); err != nil {
			return fail(err)
		}
		state = StateUpdated

		if err := r.writer.ColorRow(ctx, row, r.width); err != nil {
			return fail(err)
		}

		return Outcome{Code: rec.InternalCode, Action: ActionUpdated, Row: row}, cursor, nil
	}

	state = StateUnmatched
	target := cursor + 1
	r.logger.Info("code not found, inserting",
		"code", rec.InternalCode, "row", target, "template_row", target-1)

	// Template inheritance: the new row starts as a copy of the row
	// above it, preserving formulas and columns the engine never writes.
	if err := r.writer.CopyRow(ctx, target-1, target); err != nil {
		return fail(err)
	}
	state = StateTemplateCopied

	overlay := make(map[int]string, len(fields)+2)
	for col, val := range fields {
		overlay[col] = val
	}
	overlay[r.columns[sheet.ColInternalID]] = rec.InternalCode

	// The install date is written on insert only; updates never touch it.
	if col, ok := r.columns[sheet.ColInstallDate]; ok {
		overlay[col] = rec.ReadTimestampLocal.Format(installDateLayout)
	}

	if err := r.writer.UpdateCells(ctx, target, overlay); err != nil {
		return fail(err)
	}
	state = StateFieldsOverlaid

	if err := r.writer.ColorRow(ctx, target, r.width); err != nil {
		return fail(err)
	}

	return Outcome{Code: rec.InternalCode, Action: ActionInserted, Row: target}, target, nil
}

// formatFxFactor renders the factor the way the sheet historically held
// it: integers without a decimal point.
func formatFxFactor(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
