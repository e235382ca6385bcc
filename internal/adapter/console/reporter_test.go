package console

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/riverwatch-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAlert(actions ...string) domain.Alert {
	sensor := time.Date(2024, 6, 1, 10, 20, 0, 0, time.UTC)
	return domain.Alert{
		ID:            "alert-test",
		IssuedAt:      sensor.Add(2 * time.Minute),
		SensorTime:    sensor,
		Trend:         domain.TrendResult{CurrentLevel: 312.5, ChangePerMinute: 1.25, Temperature: 17, Humidity: 94},
		DangerLevelCM: 500,
		Prediction: domain.Prediction{
			FloodProbability3h: "65%",
			TimeToDangerLevel:  "about 2 hours 30 minutes",
			ResidentActions:    actions,
		},
	}
}

func TestReporter_Report(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, nil)

	err := r.Report(context.Background(), testAlert("Move to higher ground", "Prepare an emergency kit"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "RIVER FLOOD ALERT")
	assert.Contains(t, out, "Issued:      2024-06-01 10:22:00 UTC")
	assert.Contains(t, out, "312.5 cm (danger level 500 cm)")
	assert.Contains(t, out, "+1.25 cm/min")
	assert.Contains(t, out, "65% within 3 hours")
	assert.Contains(t, out, "about 2 hours 30 minutes")
	assert.Contains(t, out, "  1. Move to higher ground\n  2. Prepare an emergency kit\n")
	assert.NotContains(t, out, "No specific actions")
	assert.Equal(t, "console", r.Name())
}

func TestFormatBulletin_NoActions(t *testing.T) {
	out := FormatBulletin(testAlert(), time.UTC)
	assert.Contains(t, out, "No specific actions at this time.")
}

func TestFormatBulletin_Location(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	out := FormatBulletin(testAlert(), loc)
	assert.Contains(t, out, "Sensor time: 2024-06-01 12:20:00 CEST")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestReporter_WriteError(t *testing.T) {
	err := NewReporter(failingWriter{}, nil).Report(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write bulletin")
}
