package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bia-energy/telemedida/internal/reconciler"
	"github.com/bia-energy/telemedida/internal/record"
	"github.com/bia-energy/telemedida/internal/sheet"
)

// SourceStore provides the raw telemetry rows for one target date.
type SourceStore interface {
	FetchMeterReadings(ctx context.Context, date time.Time) ([]record.RawRow, error)
	FetchVisitReadings(ctx context.Context, date time.Time) ([]record.RawRow, error)
}

// Syncer orchestrates one full pass: extract both sources, normalize,
// deduplicate, snapshot the worksheet, reconcile every code in order and
// collect the run summary.
type Syncer struct {
	sources   SourceStore
	worksheet sheet.ReadWriter
	logger    *slog.Logger
}

// New creates a syncer over its two collaborators.
func New(sources SourceStore, worksheet sheet.ReadWriter, logger *slog.Logger) *Syncer {
	return &Syncer{
		sources:   sources,
		worksheet: worksheet,
		logger:    logger,
	}
}

// Run executes one synchronization pass for the target date.
//
// The returned error is non-nil only for global precondition failures
// (sources unreachable, batch unmappable, worksheet snapshot failed); it
// is then mirrored into the result as Success=false. Per-code failures
// are recorded in the result's error list and leave Success=true.
func (s *Syncer) Run(ctx context.Context, date time.Time, force bool) (*RunResult, error) {
	result := &RunResult{
		RunID:      uuid.NewString(),
		TargetDate: date.Format("2006-01-02"),
		StartedAt:  time.Now(),
		Updated:    make([]string, 0),
		Inserted:   make([]string, 0),
		Errors:     make([]CodeFailure, 0),
	}

	logger := s.logger.With("run_id", result.RunID, "target_date", result.TargetDate)
	logger.Info("starting synchronization run")

	if force {
		// Kept for trigger compatibility: the update path always rewrites
		// the tracked columns, so there is nothing extra to force.
		logger.Info("force update requested")
	}

	meterRows, err := s.sources.FetchMeterReadings(ctx, date)
	if err != nil {
		return s.fail(result, fmt.Errorf("fetch meter readings: %w", err))
	}

	visitRows, err := s.sources.FetchVisitReadings(ctx, date)
	if err != nil {
		return s.fail(result, fmt.Errorf("fetch visit readings: %w", err))
	}

	// A batch that cannot be normalized is a global failure: a broken
	// column mapping poisons every record, not just one code.
	meterRecords, err := record.Normalize(meterRows, record.MetersightMapping)
	if err != nil {
		return s.fail(result, fmt.Errorf("normalize meter readings: %w", err))
	}

	visitRecords, err := record.Normalize(visitRows, record.VisitsMapping)
	if err != nil {
		return s.fail(result, fmt.Errorf("normalize visit readings: %w", err))
	}

	unified := record.Deduplicate(append(meterRecords, visitRecords...))
	logger.Info("records deduplicated",
		"raw", len(meterRecords)+len(visitRecords),
		"unique", len(unified))

	header, err := s.worksheet.Header(ctx)
	if err != nil {
		return s.fail(result, fmt.Errorf("read worksheet header: %w", err))
	}

	columns := sheet.NewColumns(header)
	idCol, ok := columns[sheet.ColInternalID]
	if !ok {
		return s.fail(result, fmt.Errorf("worksheet is missing column %q", sheet.ColInternalID))
	}

	codeColumn, err := s.worksheet.Column(ctx, idCol)
	if err != nil {
		return s.fail(result, fmt.Errorf("read code column: %w", err))
	}

	index := sheet.NewIndex(codeColumn)
	for code, rows := range index.Duplicates() {
		logger.Warn("duplicate code in worksheet, first row wins",
			"code", code, "extra_rows", rows)
	}

	rec := reconciler.New(s.worksheet, columns, index, len(header), logger)

	// Mutations must apply in dedup order: the insert cursor advances
	// monotonically and out-of-order application corrupts row targeting.
	cursor := index.LastDataRow()
	for _, r := range unified {
		outcome, next, err := rec.Apply(ctx, r, cursor)
		if err != nil {
			logger.Error("code failed, continuing with next",
				"code", r.InternalCode, "error", err)
			result.Errors = append(result.Errors, CodeFailure{
				Code:    r.InternalCode,
				Message: err.Error(),
			})
			continue
		}

		cursor = next
		switch outcome.Action {
		case reconciler.ActionUpdated:
			result.Updated = append(result.Updated, outcome.Code)
		case reconciler.ActionInserted:
			result.Inserted = append(result.Inserted, outcome.Code)
		}
	}

	result.Processed = len(unified)
	result.Success = true
	result.FinishedAt = time.Now()

	logger.Info("synchronization run complete",
		"processed", result.Processed,
		"updated", result.UpdatedCount(),
		"inserted", result.InsertedCount(),
		"errors", result.ErrorCount(),
		"duration", result.FinishedAt.Sub(result.StartedAt))

	return result, nil
}

// fail finalizes the result for a global precondition failure.
func (s *Syncer) fail(result *RunResult, err error) (*RunResult, error) {
	result.Success = false
	result.Error = err.Error()
	result.FinishedAt = time.Now()

	s.logger.Error("synchronization run aborted",
		"run_id", result.RunID, "error", err)

	return result, err
}
