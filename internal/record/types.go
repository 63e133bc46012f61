package record

import "time"

// RawRow is one source row keyed by column name, exactly as it came out
// of a source query and before any column mapping.
type RawRow map[string]any

// UnifiedRecord is one meter reading/visit event after normalization.
// Both sources map onto this shape so the rest of the pipeline never
// needs to know which database a reading came from.
type UnifiedRecord struct {
	// ClientNumber identifies the physical meter/client account and is
	// the deduplication key.
	ClientNumber string

	// InternalCode is the business code matched against the worksheet's
	// ID Interno column.
	InternalCode string

	MeterSerial      string
	MeterIP          string
	FxFactor         float64
	ActiveMeterBrand string

	// ReadTimestampLocal orders readings by recency. The source queries
	// already shift it into local time.
	ReadTimestampLocal time.Time
}
