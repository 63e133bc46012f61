package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Config holds the worksheet connection settings.
type Config struct {
	SpreadsheetID string `toml:"spreadsheet_id"`
	WorksheetName string `toml:"worksheet_name"`
	MarkColor     string `toml:"mark_color"`

	// CredentialsJSON is the raw service-account key. It only ever comes
	// from the environment, never from a config file.
	CredentialsJSON string `toml:"-"`
}

// Service implements Reader and Writer over the Google Sheets API.
type Service struct {
	svc           *sheets.Service
	spreadsheetID string
	title         string
	sheetID       int64
	markColor     *sheets.Color
	logger        *slog.Logger
}

// NewService authenticates with the service-account key and resolves the
// worksheet named in the config. Construction fails if the worksheet
// does not exist in the spreadsheet.
func NewService(ctx context.Context, cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.CredentialsJSON == "" {
		return nil, errors.New("sheet: service account credentials are not set")
	}

	creds, err := google.CredentialsFromJSON(ctx, []byte(cfg.CredentialsJSON), sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("sheet: parse service account credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("sheet: create sheets client: %w", err)
	}

	spreadsheet, err := svc.Spreadsheets.Get(cfg.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheet: open spreadsheet %s: %w", cfg.SpreadsheetID, err)
	}

	var sheetID int64 = -1
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil && sh.Properties.Title == cfg.WorksheetName {
			sheetID = sh.Properties.SheetId
			break
		}
	}
	if sheetID < 0 {
		return nil, fmt.Errorf("sheet: worksheet %q not found in spreadsheet %s", cfg.WorksheetName, cfg.SpreadsheetID)
	}

	color, err := parseHexColor(cfg.MarkColor)
	if err != nil {
		return nil, err
	}

	logger.Info("worksheet resolved",
		"spreadsheet_id", cfg.SpreadsheetID,
		"worksheet", cfg.WorksheetName,
		"sheet_id", sheetID)

	return &Service{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		title:         cfg.WorksheetName,
		sheetID:       sheetID,
		markColor:     color,
		logger:        logger,
	}, nil
}

// Header returns the worksheet's first row.
func (s *Service) Header(ctx context.Context) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeName("1:1")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrRead, err)
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("%w: header row is empty", ErrRead)
	}
	return toStrings(resp.Values[0]), nil
}

// Column returns one full column, header included.
func (s *Service) Column(ctx context.Context, col int) ([]string, error) {
	letter := ColumnLetter(col)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeName(letter+":"+letter)).
		MajorDimension("COLUMNS").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: column %s: %v", ErrRead, letter, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return toStrings(resp.Values[0]), nil
}

// UpdateCells writes each value as USER_ENTERED so the sheet parses
// numbers and dates the same way a typing user would.
func (s *Service) UpdateCells(ctx context.Context, row int, values map[int]string) error {
	cols := make([]int, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Ints(cols)

	for _, col := range cols {
		cell := fmt.Sprintf("%s%d", ColumnLetter(col), row)
		vr := &sheets.ValueRange{Values: [][]any{{values[col]}}}

		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeName(cell), vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update cell %s: %w", cell, err)
		}
	}

	return nil
}

// CopyRow copies a whole row over another via a copyPaste request,
// carrying values, formulas and formatting.
func (s *Service) CopyRow(ctx context.Context, src, dst int) error {
	req := &sheets.Request{
		CopyPaste: &sheets.CopyPasteRequest{
			Source:           s.rowRange(src, 0),
			Destination:      s.rowRange(dst, 0),
			PasteType:        "PASTE_NORMAL",
			PasteOrientation: "NORMAL",
		},
	}

	if err := s.batchUpdate(ctx, req); err != nil {
		return fmt.Errorf("copy row %d to %d: %w", src, dst, err)
	}
	return nil
}

// ColorRow paints the processed marker over the first width columns.
func (s *Service) ColorRow(ctx context.Context, row, width int) error {
	req := &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: s.rowRange(row, width),
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{BackgroundColor: s.markColor},
			},
			Fields: "userEnteredFormat.backgroundColor",
		},
	}

	if err := s.batchUpdate(ctx, req); err != nil {
		return fmt.Errorf("color row %d: %w", row, err)
	}
	return nil
}

func (s *Service) batchUpdate(ctx context.Context, reqs ...*sheets.Request) error {
	_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	return err
}

func (s *Service) rangeName(ref string) string {
	return fmt.Sprintf("'%s'!%s", s.title, ref)
}

// rowRange builds the grid range for one full row. width 0 means "to
// the end of the sheet".
func (s *Service) rowRange(row, width int) *sheets.GridRange {
	rng := &sheets.GridRange{
		SheetId:          s.sheetID,
		StartRowIndex:    int64(row - 1),
		EndRowIndex:      int64(row),
		StartColumnIndex: 0,
		ForceSendFields:  []string{"StartRowIndex", "StartColumnIndex"},
	}
	if width > 0 {
		rng.EndColumnIndex = int64(width)
	}
	return rng
}

// ColumnLetter converts a 1-based column index to its A1 letters
// (1 → A, 27 → AA).
func ColumnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// parseHexColor converts an RRGGBB string into the API color type.
func parseHexColor(hex string) (*sheets.Color, error) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return nil, fmt.Errorf("sheet: invalid mark color %q, want RRGGBB", hex)
	}

	channels := make([]float64, 3)
	for i := range channels {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("sheet: invalid mark color %q, want RRGGBB", hex)
		}
		channels[i] = float64(v) / 255
	}

	return &sheets.Color{
		Red:             channels[0],
		Green:           channels[1],
		Blue:            channels[2],
		ForceSendFields: []string{"Red", "Green", "Blue"},
	}, nil
}

func toStrings(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}
