// Package console prints flood alerts as a human-readable bulletin.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/riverwatch-service/internal/domain"
)

// Reporter writes alert bulletins to an io.Writer, usually stdout.
// It implements pipeline.Reporter.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
	loc *time.Location
}

// NewReporter creates a Reporter. Times are rendered in loc, or UTC when loc
// is nil.
func NewReporter(out io.Writer, loc *time.Location) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Reporter{out: out, loc: loc}
}

// Name identifies the reporter in logs and metrics.
func (r *Reporter) Name() string { return "console" }

// Report writes one bulletin.
func (r *Reporter) Report(_ context.Context, alert domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := io.WriteString(r.out, FormatBulletin(alert, r.loc)); err != nil {
		return fmt.Errorf("write bulletin: %w", err)
	}
	return nil
}

// FormatBulletin renders an alert as plain text.
func FormatBulletin(alert domain.Alert, loc *time.Location) string {
	var b strings.Builder
	rule := strings.Repeat("=", 50)

	b.WriteString(rule + "\n")
	b.WriteString("RIVER FLOOD ALERT\n")
	fmt.Fprintf(&b, "Issued:      %s\n", alert.IssuedAt.In(loc).Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Sensor time: %s\n", alert.SensorTime.In(loc).Format("2006-01-02 15:04:05 MST"))
	b.WriteString(rule + "\n")

	fmt.Fprintf(&b, "Water level:       %.1f cm (danger level %g cm)\n", alert.Trend.CurrentLevel, alert.DangerLevelCM)
	fmt.Fprintf(&b, "Rate of rise:      %+.2f cm/min\n", alert.Trend.ChangePerMinute)
	fmt.Fprintf(&b, "Flood probability: %s within 3 hours\n", alert.Prediction.FloodProbability3h)
	fmt.Fprintf(&b, "Time to danger:    %s\n", alert.Prediction.TimeToDangerLevel)

	b.WriteString("\nResident actions:\n")
	if len(alert.Prediction.ResidentActions) == 0 {
		b.WriteString("  No specific actions at this time.\n")
	}
	for i, action := range alert.Prediction.ResidentActions {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, action)
	}
	b.WriteString(rule + "\n")
	return b.String()
}
