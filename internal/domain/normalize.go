package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Field names a canonical reading attribute.
type Field string

const (
	FieldTimestamp   Field = "timestamp"
	FieldTemperature Field = "temperature"
	FieldHumidity    Field = "humidity"
	FieldWaterLevel  Field = "waterlevel"
)

// ErrSchema is matched by every SchemaError.
var ErrSchema = errors.New("sheet schema error")

// SchemaError reports a canonical field with no matching header column.
type SchemaError struct {
	Field  Field
	Header []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("required column %q or one of its aliases not found in header %q", e.Field, e.Header)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// columnAliases lists, in binding order, the header spellings accepted for
// each field. Entries are compared after normalizeHeader, so underscore and
// case variants need not be listed.
var columnAliases = []struct {
	field   Field
	aliases []string
}{
	{FieldTimestamp, []string{"timestamp", "time", "date", "datetime"}},
	{FieldTemperature, []string{"temperature", "temperture", "temp"}},
	{FieldHumidity, []string{"humidity", "humid"}},
	{FieldWaterLevel, []string{"waterlevel", "level"}},
}

// NormalizeStats summarizes one Normalize call.
type NormalizeStats struct {
	Rows    int `json:"rows"`    // data rows in the table
	Dropped int `json:"dropped"` // rows discarded because a field failed to parse
}

// Kept returns the number of rows that became readings.
func (s NormalizeStats) Kept() int { return s.Rows - s.Dropped }

// normalizeHeader canonicalizes a column name for alias comparison.
func normalizeHeader(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "")
}

// ResolveColumns maps each canonical field to a header column index.
// It returns a *SchemaError for the first field without a match.
func ResolveColumns(header []string) (map[Field]int, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}

	bound := make(map[int]bool, len(header))
	columns := make(map[Field]int, len(columnAliases))

	for _, entry := range columnAliases {
		idx := -1
		for i, name := range normalized {
			if bound[i] {
				continue
			}
			if matchesAlias(name, entry.aliases) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, &SchemaError{Field: entry.field, Header: header}
		}
		bound[idx] = true
		columns[entry.field] = idx
	}
	return columns, nil
}

func matchesAlias(name string, aliases []string) bool {
	for _, a := range aliases {
		if name == normalizeHeader(a) {
			return true
		}
	}
	return false
}

// Normalize converts a raw sheet into readings. Rows with any unparsable
// field are dropped; the rest keep their source order. A header missing a
// canonical field fails the whole table with a *SchemaError.
func Normalize(raw RawTable) ([]Reading, NormalizeStats, error) {
	columns, err := ResolveColumns(raw.Header())
	if err != nil {
		return nil, NormalizeStats{}, err
	}

	rows := raw.Data()
	stats := NormalizeStats{Rows: len(rows)}
	readings := make([]Reading, 0, len(rows))

	for _, row := range rows {
		r, ok := parseRow(row, columns)
		if !ok {
			stats.Dropped++
			continue
		}
		readings = append(readings, r)
	}
	return readings, stats, nil
}

// parseRow parses every canonical field of a row. ok is false when any field
// fails; the partially filled Reading is never returned to callers.
func parseRow(row []string, columns map[Field]int) (Reading, bool) {
	ts, okTS := parseTimestamp(cell(row, columns[FieldTimestamp]))
	temp, okTemp := parseNumber(cell(row, columns[FieldTemperature]))
	hum, okHum := parseNumber(cell(row, columns[FieldHumidity]))
	lvl, okLvl := parseNumber(cell(row, columns[FieldWaterLevel]))

	if !okTS || !okTemp || !okHum || !okLvl {
		return Reading{}, false
	}
	return Reading{
		Timestamp:   ts,
		Temperature: temp,
		Humidity:    hum,
		WaterLevel:  lvl,
	}, true
}

// cell returns row[i], or "" when the row is shorter than the header.
// The Sheets API trims trailing empty cells, so ragged rows are normal.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
