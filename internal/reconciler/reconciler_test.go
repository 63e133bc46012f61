package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bia-energy/telemedida/internal/record"
	"github.com/bia-energy/telemedida/internal/sheet"
	"github.com/bia-energy/telemedida/internal/testutil"
)

var testHeader = []string{
	sheet.ColInternalID,     // 1
	"Cliente",               // 2
	sheet.ColMeterSerial,    // 3
	sheet.ColMeterIP,        // 4
	sheet.ColFxFactor,       // 5
	sheet.ColActiveBrand,    // 6
	sheet.ColInstallDate,    // 7
}

func testRecord(code string) record.UnifiedRecord {
	return record.UnifiedRecord{
		ClientNumber:       code,
		InternalCode:       code,
		MeterSerial:        "SN-1234",
		MeterIP:            "10.0.0.8",
		FxFactor:           40,
		ActiveMeterBrand:   "Elster",
		ReadTimestampLocal: time.Date(2025, 10, 26, 8, 30, 0, 0, time.UTC),
	}
}

func newTestReconciler(ws sheet.Writer, codeColumn []string) *Reconciler {
	logger := testutil.NewTestLogger()
	return New(ws, sheet.NewColumns(testHeader), sheet.NewIndex(codeColumn), len(testHeader), logger.Logger())
}

// =============================================================================
// Update Path
// =============================================================================

// TestApply_UpdatePath verifies that a matched code rewrites exactly the
// four tracked columns at the matched row and marks the row.
func TestApply_UpdatePath(t *testing.T) {
	ws := testutil.NewMockSheet(testHeader)
	ws.SetCell(2, 1, "CO001")
	ws.SetCell(2, 2, "Cliente Uno") // untracked column, must survive

	r := newTestReconciler(ws, []string{sheet.ColInternalID, "CO001"})

	outcome, cursor, err := r.Apply(context.Background(), testRecord("CO001"), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Action != ActionUpdated {
		t.Errorf("expected update action, got %s", outcome.Action)
	}
	if outcome.Row != 2 {
		t.Errorf("expected row 2, got %d", outcome.Row)
	}
	if cursor != 2 {
		t.Errorf("expected cursor unchanged at 2, got %d", cursor)
	}

	writes := ws.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(writes))
	}
	if writes[0].Row != 2 {
		t.Errorf("expected write at row 2, got %d", writes[0].Row)
	}
	if len(writes[0].Values) != 4 {
		t.Errorf("expected exactly 4 columns written, got %d", len(writes[0].Values))
	}

	if got := ws.Cell(2, 3); got != "SN-1234" {
		t.Errorf("expected serial SN-1234, got %q", got)
	}
	if got := ws.Cell(2, 4); got != "10.0.0.8" {
		t.Errorf("expected ip 10.0.0.8, got %q", got)
	}
	if got := ws.Cell(2, 5); got != "40" {
		t.Errorf("expected fx factor 40, got %q", got)
	}
	if got := ws.Cell(2, 6); got != "Elster" {
		t.Errorf("expected brand Elster, got %q", got)
	}

	// Untracked columns and the code itself stay untouched.
	if got := ws.Cell(2, 2); got != "Cliente Uno" {
		t.Errorf("expected untracked column preserved, got %q", got)
	}
	if got := ws.Cell(2, 7); got != "" {
		t.Errorf("expected install date untouched on update, got %q", got)
	}

	if colored := ws.Colored(); len(colored) != 1 || colored[0] != 2 {
		t.Errorf("expected row 2 marked, got %v", colored)
	}
	if copies := ws.Copies(); len(copies) != 0 {
		t.Errorf("expected no template copies on update, got %v", copies)
	}
}

// TestApply_UpdateIsIdempotent verifies that applying the same record
// twice against an unchanged sheet writes the same values and never
// creates a row.
func TestApply_UpdateIsIdempotent(t *testing.T) {
	ws := testutil.NewMockSheet(testHeader)
	ws.SetCell(2, 1, "CO001")

	r := newTestReconciler(ws, []string{sheet.ColInternalID, "CO001"})

	for i := 0; i < 2; i++ {
		outcome, _, err := r.Apply(context.Background(), testRecord("CO001"), 2)
		if err != nil {
			t.Fatalf("pass %d: unexpected error: %v", i+1, err)
		}
		if outcome.Action != ActionUpdated || outcome.Row != 2 {
			t.Errorf("pass %d: expected update at row 2, got %s at %d", i+1, outcome.Action, outcome.Row)
		}
	}

	if got := ws.Cell(2, 3); got != "SN-1234" {
		t.Errorf("expected stable serial after two passes, got %q", got)
	}
	if copies := ws.Copies(); len(copies) != 0 {
		t.Errorf("expected no inserts across passes, got %v", copies)
	}
}

// =============================================================================
// Insert Path
// =============================================================================

// TestApply_InsertPath verifies template inheritance, the four-column
// overlay, the code write and the insert-only install date.
func TestApply_InsertPath(t *testing.T) {
	ws := testutil.NewMockSheet(testHeader)
	// Row 10 is the template the new row inherits from.
	ws.SetCell(10, 1, "CO009")
	ws.SetCell(10, 2, "Cliente Nueve")
	ws.SetCell(10, 5, "1")

	column := []string{sheet.ColInternalID}
	for i := 0; i < 9; i++ {
		column = append(column, "CO00"+string(rune('1'+i)))
	}
	r := newTestReconciler(ws, column) // last data row 10

	outcome, cursor, err := r.Apply(context.Background(), testRecord("CO100"), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Action != ActionInserted {
		t.Errorf("expected insert action, got %s", outcome.Action)
	}
	if outcome.Row != 11 {
		t.Errorf("expected insert at row 11, got %d", outcome.Row)
	}
	if cursor != 11 {
		t.Errorf("expected cursor advanced to 11, got %d", cursor)
	}

	copies := ws.Copies()
	if len(copies) != 1 || copies[0].Src != 10 || copies[0].Dst != 11 {
		t.Fatalf("expected copy 10→11, got %v", copies)
	}

	// Template inheritance: untracked column survives the overlay.
	if got := ws.Cell(11, 2); got != "Cliente Nueve" {
		t.Errorf("expected inherited client name, got %q", got)
	}

	// Overlay wins over the template for tracked columns.
	if got := ws.Cell(11, 1); got != "CO100" {
		t.Errorf("expected new code CO100, got %q", got)
	}
	if got := ws.Cell(11, 3); got != "SN-1234" {
		t.Errorf("expected serial SN-1234, got %q", got)
	}
	if got := ws.Cell(11, 5); got != "40" {
		t.Errorf("expected fx factor 40 over template value, got %q", got)
	}

	// Install date is written on insert, formatted MM/DD/YYYY.
	if got := ws.Cell(11, 7); got != "10/26/2025" {
		t.Errorf("expected install date 10/26/2025, got %q", got)
	}

	if colored := ws.Colored(); len(colored) != 1 || colored[0] != 11 {
		t.Errorf("expected row 11 marked, got %v", colored)
	}
}

// TestApply_ConsecutiveInsertsChain verifies that the second insert in a
// run targets the next row and copies its template from the row the
// first insert just wrote.
func TestApply_ConsecutiveInsertsChain(t *testing.T) {
	ws := testutil.NewMockSheet(testHeader)
	ws.SetCell(10, 2, "Cliente Diez")

	r := newTestReconciler(ws, []string{sheet.ColInternalID})

	cursor := 10
	var err error
	var first, second Outcome

	first, cursor, err = r.Apply(context.Background(), testRecord("CO100"), cursor)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	second, cursor, err = r.Apply(context.Background(), testRecord("CO200"), cursor)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}

	if first.Row != 11 || second.Row != 12 {
		t.Errorf("expected inserts at rows 11 and 12, got %d and %d", first.Row, second.Row)
	}
	if cursor != 12 {
		t.Errorf("expected final cursor 12, got %d", cursor)
	}

	copies := ws.Copies()
	if len(copies) != 2 {
		t.Fatalf("expected 2 copies, got %d", len(copies))
	}
	if copies[1].Src != 11 {
		t.Errorf("expected second template from just-inserted row 11, got %d", copies[1].Src)
	}

	// The inherited column flows through both inserts.
	if got := ws.Cell(12, 2); got != "Cliente Diez" {
		t.Errorf("expected inheritance to chain through row 11, got %q", got)
	}
	// But each row keeps its own code.
	if ws.Cell(11, 1) != "CO100" || ws.Cell(12, 1) != "CO200" {
		t.Errorf("expected codes CO100/CO200, got %q/%q", ws.Cell(11, 1), ws.Cell(12, 1))
	}
}

// =============================================================================
// Failure Isolation
// =============================================================================

// TestApply_MissingColumnIsCodeError verifies that a missing mutable
// column fails the code, not the run.
func TestApply_MissingColumnIsCodeError(t *testing.T) {
	header := []string{sheet.ColInternalID, sheet.ColMeterSerial} // missing the rest
	ws := testutil.NewMockSheet(header)

	logger := testutil.NewTestLogger()
	r := New(ws, sheet.NewColumns(header), sheet.NewIndex([]string{sheet.ColInternalID}), len(header), logger.Logger())

	_, cursor, err := r.Apply(context.Background(), testRecord("CO001"), 1)

	var codeErr *CodeError
	if !errors.As(err, &codeErr) {
		t.Fatalf("expected *CodeError, got %v", err)
	}
	if codeErr.Code != "CO001" {
		t.Errorf("expected error against CO001, got %s", codeErr.Code)
	}
	if codeErr.State != StatePending {
		t.Errorf("expected failure in state pending, got %s", codeErr.State)
	}
	if cursor != 1 {
		t.Errorf("expected cursor unchanged on failure, got %d", cursor)
	}
}

// TestApply_WriteFailureStates verifies the state recorded when each
// mutation step fails.
func TestApply_WriteFailureStates(t *testing.T) {
	boom := errors.New("quota exceeded")

	t.Run("update write fails", func(t *testing.T) {
		ws := testutil.NewMockSheet(testHeader)
		ws.SetUpdateError(boom)
		r := newTestReconciler(ws, []string{sheet.ColInternalID, "CO001"})

		_, _, err := r.Apply(context.Background(), testRecord("CO001"), 2)

		var codeErr *CodeError
		if !errors.As(err, &codeErr) {
			t.Fatalf("expected *CodeError, got %v", err)
		}
		if codeErr.State != StateMatched {
			t.Errorf("expected state matched, got %s", codeErr.State)
		}
		if !errors.Is(err, boom) {
			t.Error("expected cause to be preserved")
		}
	})

	t.Run("template copy fails", func(t *testing.T) {
		ws := testutil.NewMockSheet(testHeader)
		ws.SetCopyError(boom)
		r := newTestReconciler(ws, []string{sheet.ColInternalID})

		_, cursor, err := r.Apply(context.Background(), testRecord("CO100"), 5)

		var codeErr *CodeError
		if !errors.As(err, &codeErr) {
			t.Fatalf("expected *CodeError, got %v", err)
		}
		if codeErr.State != StateUnmatched {
			t.Errorf("expected state unmatched, got %s", codeErr.State)
		}
		if cursor != 5 {
			t.Errorf("expected cursor unchanged at 5, got %d", cursor)
		}
	})

	t.Run("marking fails after overlay", func(t *testing.T) {
		ws := testutil.NewMockSheet(testHeader)
		ws.SetColorError(boom)
		r := newTestReconciler(ws, []string{sheet.ColInternalID})

		_, _, err := r.Apply(context.Background(), testRecord("CO100"), 5)

		var codeErr *CodeError
		if !errors.As(err, &codeErr) {
			t.Fatalf("expected *CodeError, got %v", err)
		}
		if codeErr.State != StateFieldsOverlaid {
			t.Errorf("expected state fields_overlaid, got %s", codeErr.State)
		}
	})
}

// TestFormatFxFactor verifies integer factors render without a decimal
// point and fractional ones keep it.
func TestFormatFxFactor(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{40, "40"},
		{1, "1"},
		{1.5, "1.5"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := formatFxFactor(tt.in); got != tt.want {
			t.Errorf("formatFxFactor(%v): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}
