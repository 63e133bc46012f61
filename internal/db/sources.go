package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/bia-energy/telemedida/internal/record"
)

// =============================================================================
// Source Extraction
// =============================================================================

// queryMeterReadings pulls source A: direct telemetry readings.
// $2 is the UTC→local offset as a Postgres interval literal.
const queryMeterReadings = `
	SELECT
		read_timestamp + $2::interval AS read_timestamp_local,
		user_email,
		success,
		error,
		client_number,
		meter_factor,
		brand,
		serial,
		ip
	FROM cgm.metersight
	WHERE read_timestamp + $2::interval >= $1
	  AND read_timestamp + $2::interval < $1 + interval '1 day'
`

// queryVisitReadings pulls source B: field visits joined with the
// telemetry readings taken during each visit.
const queryVisitReadings = `
	SELECT
		mr.read_timestamp + $2::interval AS read_timestamp_local,
		mr.user_id,
		mr.success,
		mr.error,
		iv.internal_bia_code,
		mr.meter_factor,
		mr.brand,
		mr.serial,
		mr.ip
	FROM telemetry.meter_readings mr
	LEFT JOIN visits iv
		ON iv.id::text = mr.visit_id::text
	WHERE mr.read_timestamp + $2::interval >= $1
	  AND mr.read_timestamp + $2::interval < $1 + interval '1 day'
	ORDER BY 2 DESC
`

// SourceStore runs the extraction queries against the two source
// databases for one target date.
type SourceStore struct {
	metersight *DB
	appOps     *DB
	offset     string // Postgres interval literal, e.g. "-5 hours"
	logger     *slog.Logger
}

// NewSourceStore builds a store over the two opened source databases.
func NewSourceStore(metersight, appOps *DB, utcOffsetHours int, logger *slog.Logger) *SourceStore {
	return &SourceStore{
		metersight: metersight,
		appOps:     appOps,
		offset:     fmt.Sprintf("%d hours", utcOffsetHours),
		logger:     logger,
	}
}

// FetchMeterReadings returns source A rows whose local read timestamp
// falls on the target date.
func (s *SourceStore) FetchMeterReadings(ctx context.Context, date time.Time) ([]record.RawRow, error) {
	rows, err := s.fetch(ctx, s.metersight, "metersight", queryMeterReadings, date)
	if err != nil {
		return nil, err
	}

	s.logger.Info("fetched meter readings", "source", "metersight", "rows", len(rows))
	return rows, nil
}

// FetchVisitReadings returns source B rows whose local read timestamp
// falls on the target date.
func (s *SourceStore) FetchVisitReadings(ctx context.Context, date time.Time) ([]record.RawRow, error) {
	rows, err := s.fetch(ctx, s.appOps, "app_ops", queryVisitReadings, date)
	if err != nil {
		return nil, err
	}

	s.logger.Info("fetched visit readings", "source", "app_ops", "rows", len(rows))
	return rows, nil
}

func (s *SourceStore) fetch(ctx context.Context, db *DB, source, query string, date time.Time) ([]record.RawRow, error) {
	rows, err := db.QueryContext(ctx, query, date, s.offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, source, err)
	}
	defer rows.Close()

	raw, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, source, err)
	}

	return raw, nil
}

// scanRows reads every row into a column-name-keyed map, leaving type
// coercion to the normalizer.
func scanRows(rows *sql.Rows) ([]record.RawRow, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []record.RawRow
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(record.RawRow, len(columns))
		for i, col := range columns {
			// Drivers hand text back as []byte; keep maps holding strings.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}

	return result, rows.Err()
}
