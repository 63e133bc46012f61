package record

import (
	"fmt"
	"strconv"
	"time"
)

// MappingError reports a required source column missing from a raw row,
// or a value that cannot be coerced into the unified field type.
type MappingError struct {
	Source string
	Column string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("record: source %s column %q: %s", e.Source, e.Column, e.Reason)
}

// Mapping describes how one source's columns map onto UnifiedRecord
// fields. Every mapped column is required; columns not named here are
// dropped during normalization.
type Mapping struct {
	Source           string
	ClientNumber     string
	InternalCode     string
	MeterSerial      string
	MeterIP          string
	FxFactor         string
	ActiveMeterBrand string
	ReadTimestamp    string
}

// MetersightMapping maps source A (metersight readings). The client
// number column doubles as the sheet-matching internal code.
var MetersightMapping = Mapping{
	Source:           "metersight",
	ClientNumber:     "client_number",
	InternalCode:     "client_number",
	MeterSerial:      "serial",
	MeterIP:          "ip",
	FxFactor:         "meter_factor",
	ActiveMeterBrand: "brand",
	ReadTimestamp:    "read_timestamp_local",
}

// VisitsMapping maps source B (visits joined with telemetry readings),
// where the visit's internal code identifies the client.
var VisitsMapping = Mapping{
	Source:           "app_ops",
	ClientNumber:     "internal_bia_code",
	InternalCode:     "internal_bia_code",
	MeterSerial:      "serial",
	MeterIP:          "ip",
	FxFactor:         "meter_factor",
	ActiveMeterBrand: "brand",
	ReadTimestamp:    "read_timestamp_local",
}

// Normalize maps raw source rows into UnifiedRecords using the given
// mapping. It fails on the first row missing a mapped column; a batch
// that cannot be normalized is unusable as a whole.
func Normalize(rows []RawRow, m Mapping) ([]UnifiedRecord, error) {
	records := make([]UnifiedRecord, 0, len(rows))

	for _, row := range rows {
		rec, err := normalizeRow(row, m)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

func normalizeRow(row RawRow, m Mapping) (UnifiedRecord, error) {
	var rec UnifiedRecord
	var err error

	if rec.ClientNumber, err = stringField(row, m, m.ClientNumber); err != nil {
		return UnifiedRecord{}, err
	}
	if rec.InternalCode, err = stringField(row, m, m.InternalCode); err != nil {
		return UnifiedRecord{}, err
	}
	if rec.MeterSerial, err = stringField(row, m, m.MeterSerial); err != nil {
		return UnifiedRecord{}, err
	}
	if rec.MeterIP, err = stringField(row, m, m.MeterIP); err != nil {
		return UnifiedRecord{}, err
	}
	if rec.ActiveMeterBrand, err = stringField(row, m, m.ActiveMeterBrand); err != nil {
		return UnifiedRecord{}, err
	}
	if rec.FxFactor, err = floatField(row, m, m.FxFactor); err != nil {
		return UnifiedRecord{}, err
	}
	if rec.ReadTimestampLocal, err = timeField(row, m, m.ReadTimestamp); err != nil {
		return UnifiedRecord{}, err
	}

	return rec, nil
}

func stringField(row RawRow, m Mapping, column string) (string, error) {
	v, ok := row[column]
	if !ok {
		return "", &MappingError{Source: m.Source, Column: column, Reason: "required column absent"}
	}

	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	default:
		return fmt.Sprint(val), nil
	}
}

func floatField(row RawRow, m Mapping, column string) (float64, error) {
	v, ok := row[column]
	if !ok {
		return 0, &MappingError{Source: m.Source, Column: column, Reason: "required column absent"}
	}

	switch val := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case int:
		return float64(val), nil
	case []byte:
		return parseFloat(string(val), m, column)
	case string:
		return parseFloat(val, m, column)
	default:
		return 0, &MappingError{Source: m.Source, Column: column,
			Reason: fmt.Sprintf("cannot coerce %T to numeric", v)}
	}
}

func parseFloat(s string, m Mapping, column string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &MappingError{Source: m.Source, Column: column,
			Reason: fmt.Sprintf("cannot parse %q as numeric", s)}
	}
	return f, nil
}

func timeField(row RawRow, m Mapping, column string) (time.Time, error) {
	v, ok := row[column]
	if !ok {
		return time.Time{}, &MappingError{Source: m.Source, Column: column, Reason: "required column absent"}
	}

	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		return parseTime(val, m, column)
	case []byte:
		return parseTime(string(val), m, column)
	default:
		return time.Time{}, &MappingError{Source: m.Source, Column: column,
			Reason: fmt.Sprintf("cannot coerce %T to timestamp", v)}
	}
}

// parseTime accepts the timestamp layouts the drivers are known to hand
// back when a column does not scan directly into time.Time.
func parseTime(s string, m Mapping, column string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &MappingError{Source: m.Source, Column: column,
		Reason: fmt.Sprintf("cannot parse %q as timestamp", s)}
}
