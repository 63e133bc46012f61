package testutil

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bia-energy/telemedida/internal/record"
)

// MockSourceStore provides canned source rows for testing
type MockSourceStore struct {
	mu        sync.Mutex
	meterRows []record.RawRow
	visitRows []record.RawRow
	meterErr  error
	visitErr  error
}

func NewMockSourceStore() *MockSourceStore {
	return &MockSourceStore{}
}

func (m *MockSourceStore) SetMeterRows(rows []record.RawRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meterRows = rows
}

func (m *MockSourceStore) SetVisitRows(rows []record.RawRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visitRows = rows
}

func (m *MockSourceStore) SetMeterError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meterErr = err
}

func (m *MockSourceStore) SetVisitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visitErr = err
}

func (m *MockSourceStore) FetchMeterReadings(_ context.Context, _ time.Time) ([]record.RawRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.meterErr != nil {
		return nil, m.meterErr
	}
	return m.meterRows, nil
}

func (m *MockSourceStore) FetchVisitReadings(_ context.Context, _ time.Time) ([]record.RawRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.visitErr != nil {
		return nil, m.visitErr
	}
	return m.visitRows, nil
}

// CellWrite records one UpdateCells call
type CellWrite struct {
	Row    int
	Values map[int]string
}

// RowCopy records one CopyRow call
type RowCopy struct {
	Src int
	Dst int
}

// MockSheet is an in-memory worksheet implementing sheet.ReadWriter.
// Writes are both recorded (for call-level assertions) and applied to an
// internal grid (so template inheritance is observable).
type MockSheet struct {
	mu     sync.Mutex
	header []string
	grid   map[int]map[int]string // row → column → value

	writes  []CellWrite
	copies  []RowCopy
	colored []int

	headerErr   error
	columnErr   error
	copyErr     error
	colorErr    error
	updateErrs  map[int]error // row → error returned by UpdateCells
	updateError error         // error returned by every UpdateCells
}

func NewMockSheet(header []string) *MockSheet {
	return &MockSheet{
		header:     header,
		grid:       make(map[int]map[int]string),
		updateErrs: make(map[int]error),
	}
}

// SetCell seeds one cell of the in-memory grid.
func (m *MockSheet) SetCell(row, col int, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCellLocked(row, col, value)
}

func (m *MockSheet) setCellLocked(row, col int, value string) {
	if m.grid[row] == nil {
		m.grid[row] = make(map[int]string)
	}
	m.grid[row][col] = value
}

// Cell returns one cell of the grid, empty string if unset.
func (m *MockSheet) Cell(row, col int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grid[row][col]
}

// Row returns a copy of one grid row.
func (m *MockSheet) Row(row int) map[int]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[int]string, len(m.grid[row]))
	for col, val := range m.grid[row] {
		result[col] = val
	}
	return result
}

func (m *MockSheet) SetHeaderError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headerErr = err
}

func (m *MockSheet) SetColumnError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.columnErr = err
}

func (m *MockSheet) SetCopyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.copyErr = err
}

func (m *MockSheet) SetColorError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.colorErr = err
}

func (m *MockSheet) SetUpdateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateError = err
}

// SetUpdateErrorForRow makes UpdateCells fail only for one row.
func (m *MockSheet) SetUpdateErrorForRow(row int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErrs[row] = err
}

func (m *MockSheet) Header(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.headerErr != nil {
		return nil, m.headerErr
	}

	result := make([]string, len(m.header))
	copy(result, m.header)
	return result, nil
}

func (m *MockSheet) Column(_ context.Context, col int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.columnErr != nil {
		return nil, m.columnErr
	}

	last := 1 // the header row always exists
	for row := range m.grid {
		if row > last {
			last = row
		}
	}

	column := make([]string, last)
	if len(m.header) >= col {
		column[0] = m.header[col-1]
	}
	for row := 2; row <= last; row++ {
		column[row-1] = m.grid[row][col]
	}
	return column, nil
}

func (m *MockSheet) UpdateCells(_ context.Context, row int, values map[int]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateError != nil {
		return m.updateError
	}
	if err := m.updateErrs[row]; err != nil {
		return err
	}

	recorded := make(map[int]string, len(values))
	for col, val := range values {
		recorded[col] = val
		m.setCellLocked(row, col, val)
	}
	m.writes = append(m.writes, CellWrite{Row: row, Values: recorded})
	return nil
}

func (m *MockSheet) CopyRow(_ context.Context, src, dst int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.copyErr != nil {
		return m.copyErr
	}

	for col, val := range m.grid[src] {
		m.setCellLocked(dst, col, val)
	}
	m.copies = append(m.copies, RowCopy{Src: src, Dst: dst})
	return nil
}

func (m *MockSheet) ColorRow(_ context.Context, row, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.colorErr != nil {
		return m.colorErr
	}

	m.colored = append(m.colored, row)
	return nil
}

func (m *MockSheet) Writes() []CellWrite {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]CellWrite, len(m.writes))
	copy(result, m.writes)
	return result
}

func (m *MockSheet) Copies() []RowCopy {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]RowCopy, len(m.copies))
	copy(result, m.copies)
	return result
}

func (m *MockSheet) Colored() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]int, len(m.colored))
	copy(result, m.colored)
	return result
}

// CountWrites returns how many UpdateCells calls succeeded.
func (m *MockSheet) CountWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// TestLogger provides a logger that captures logs for testing
type TestLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

func NewTestLogger() *TestLogger {
	return &TestLogger{
		entries: make([]LogEntry, 0),
	}
}

func (l *TestLogger) record(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  fields,
	})
}

func (l *TestLogger) GetEntries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]LogEntry, len(l.entries))
	copy(result, l.entries)
	return result
}

func (l *TestLogger) GetEntriesByLevel(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]LogEntry, 0)
	for _, entry := range l.entries {
		if entry.Level == level {
			result = append(result, entry)
		}
	}
	return result
}

func (l *TestLogger) HasError() bool {
	return len(l.GetEntriesByLevel("ERROR")) > 0
}

func (l *TestLogger) HasWarning() bool {
	return len(l.GetEntriesByLevel("WARN")) > 0
}

// Logger returns a *slog.Logger that writes to this TestLogger
func (l *TestLogger) Logger() *slog.Logger {
	return slog.New(&testLogHandler{logger: l})
}

// testLogHandler implements slog.Handler for TestLogger
type testLogHandler struct {
	logger *TestLogger
	attrs  []slog.Attr
}

func (h *testLogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]interface{}, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})

	h.logger.record(r.Level.String(), r.Message, fields)
	return nil
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	combined := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	combined = append(combined, h.attrs...)
	combined = append(combined, attrs...)
	return &testLogHandler{logger: h.logger, attrs: combined}
}

func (h *testLogHandler) WithGroup(name string) slog.Handler {
	// Groups are flattened; tests only assert on level and message.
	_ = name
	return h
}
