package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Alert is the envelope handed to reporters once a rising trend has been
// forecast.
type Alert struct {
	ID            string      `json:"id"`
	IssuedAt      time.Time   `json:"issued_at"`
	SensorTime    time.Time   `json:"sensor_time"`
	Trend         TrendResult `json:"trend"`
	DangerLevelCM float64     `json:"danger_level_cm"`
	Prediction    Prediction  `json:"prediction"`

	// Diagnostics.
	BaselineTime        time.Time `json:"baseline_time"`
	FittedRatePerMinute *float64  `json:"fitted_rate_per_minute,omitempty"`
	Samples             int       `json:"samples"`
}

// NewAlert builds an Alert from a trend analysis and its forecast.
// The analysis must have OutcomeTrend.
func NewAlert(a Analysis, p Prediction, dangerLevelCM float64) (Alert, error) {
	if a.Outcome != OutcomeTrend || a.Trend == nil {
		return Alert{}, fmt.Errorf("new alert: analysis outcome is %s", a.Outcome)
	}

	alert := Alert{
		ID:            generateAlertID(a.Latest),
		IssuedAt:      clock.Now().UTC(),
		SensorTime:    a.Latest.Timestamp,
		Trend:         *a.Trend,
		DangerLevelCM: dangerLevelCM,
		Prediction:    p,
		BaselineTime:  a.Baseline.Timestamp,
		Samples:       len(a.Window),
	}
	if rate, ok := FitRate(a.Window); ok {
		alert.FittedRatePerMinute = &rate
	}
	return alert, nil
}

// generateAlertID hashes the latest reading so that re-running a cycle over
// the same sheet yields the same ID and downstream consumers can deduplicate.
func generateAlertID(latest Reading) string {
	input := fmt.Sprintf("%s|%.3f", latest.Timestamp.UTC().Format(time.RFC3339Nano), latest.WaterLevel)
	hash := sha256.Sum256([]byte(input))
	return "alert-" + hex.EncodeToString(hash[:8])
}
