package domain

import (
	"slices"
	"time"
)

// Outcome classifies an analysis.
type Outcome int

const (
	// OutcomeInsufficient means fewer than two readings, or no reading old
	// enough to serve as a baseline. Try again next cycle.
	OutcomeInsufficient Outcome = iota
	// OutcomeNoTrend means the level is stable, falling, or rising no faster
	// than the threshold.
	OutcomeNoTrend
	// OutcomeTrend means the level is rising faster than the threshold.
	OutcomeTrend
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInsufficient:
		return "insufficient"
	case OutcomeNoTrend:
		return "no_trend"
	case OutcomeTrend:
		return "trend"
	default:
		return "unknown"
	}
}

// Analysis is the result of Analyze. Trend is non-nil only for OutcomeTrend.
// Latest is set whenever there is at least one reading; Baseline is zero
// when the outcome is OutcomeInsufficient.
type Analysis struct {
	Outcome         Outcome
	Trend           *TrendResult
	Latest          Reading
	Baseline        Reading
	ElapsedMinutes  float64
	ChangePerMinute float64

	// Window holds the readings from Baseline to Latest, newest first.
	Window []Reading
}

// Analyze compares the latest reading with the most recent reading at least
// lookback older and reports whether the water level rises faster than
// riseThreshold (cm/minute). The threshold is exclusive. The input slice is
// not modified.
func Analyze(readings []Reading, lookback time.Duration, riseThreshold float64) Analysis {
	if len(readings) == 0 {
		return Analysis{Outcome: OutcomeInsufficient}
	}

	sorted := SortNewestFirst(readings)
	latest := sorted[0]
	if len(sorted) < 2 {
		return Analysis{Outcome: OutcomeInsufficient, Latest: latest}
	}
	cutoff := latest.Timestamp.Add(-lookback)

	baseIdx := slices.IndexFunc(sorted, func(r Reading) bool {
		return !r.Timestamp.After(cutoff)
	})
	if baseIdx < 0 {
		return Analysis{Outcome: OutcomeInsufficient, Latest: latest}
	}
	baseline := sorted[baseIdx]

	elapsed := latest.Timestamp.Sub(baseline.Timestamp).Minutes()
	rate := 0.0
	if elapsed > 0 {
		rate = (latest.WaterLevel - baseline.WaterLevel) / elapsed
	}

	a := Analysis{
		Outcome:         OutcomeNoTrend,
		Latest:          latest,
		Baseline:        baseline,
		ElapsedMinutes:  elapsed,
		ChangePerMinute: rate,
		Window:          sorted[:baseIdx+1],
	}
	if rate <= riseThreshold {
		return a
	}

	a.Outcome = OutcomeTrend
	a.Trend = &TrendResult{
		CurrentLevel:    latest.WaterLevel,
		ChangePerMinute: rate,
		Temperature:     latest.Temperature,
		Humidity:        latest.Humidity,
	}
	return a
}

// SortNewestFirst returns a copy of readings ordered by descending timestamp.
// Readings with equal timestamps keep their source order.
func SortNewestFirst(readings []Reading) []Reading {
	sorted := slices.Clone(readings)
	slices.SortStableFunc(sorted, func(a, b Reading) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return sorted
}
