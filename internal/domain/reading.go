package domain

import (
	"context"
	"time"
)

// RawTable is a sheet as fetched from the source. Rows[0] is the header.
type RawTable struct {
	Rows [][]string
}

// NewRawTable builds a RawTable from a header and data rows.
func NewRawTable(header []string, rows ...[]string) RawTable {
	all := make([][]string, 0, len(rows)+1)
	all = append(all, header)
	all = append(all, rows...)
	return RawTable{Rows: all}
}

// Header returns row 0, or nil for an empty table.
func (t RawTable) Header() []string {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[0]
}

// Data returns every row after the header.
func (t RawTable) Data() [][]string {
	if len(t.Rows) < 2 {
		return nil
	}
	return t.Rows[1:]
}

// Reading is one sensor observation with all four fields parsed.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"` // °C
	Humidity    float64   `json:"humidity"`    // %
	WaterLevel  float64   `json:"water_level"` // cm
}

// TrendResult describes the latest reading and its rate of rise. It is only
// produced when the rate is above the configured threshold.
type TrendResult struct {
	CurrentLevel    float64 `json:"current_level"`
	ChangePerMinute float64 `json:"change_per_minute"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
}

// Prediction is the structured forecast returned by a Predictor.
type Prediction struct {
	FloodProbability3h string   `json:"flood_probability_3hr" jsonschema_description:"Probability of reaching the danger level within 3 hours, as a percentage string such as 60%"`
	TimeToDangerLevel  string   `json:"time_to_danger_level" jsonschema_description:"Estimated time until the danger level is reached at the current rate, such as about 1 hour 45 minutes"`
	ResidentActions    []string `json:"resident_actions" jsonschema_description:"Up to three actions residents should take now, most important first"`
}

// MaxResidentActions caps the number of actions carried in a Prediction.
const MaxResidentActions = 3

// Predictor produces a flood forecast for a rising trend. Implementations
// call remote services and may fail; callers treat any error as "no report".
type Predictor interface {
	Predict(ctx context.Context, trend TrendResult, dangerLevelCM float64) (Prediction, error)
}
