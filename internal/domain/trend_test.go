package domain

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLookback  = 15 * time.Minute
	testThreshold = 0.1
)

func reading(at time.Time, level float64) Reading {
	return Reading{Timestamp: at, Temperature: 18.5, Humidity: 92, WaterLevel: level}
}

func TestAnalyze_Insufficient(t *testing.T) {
	tests := []struct {
		name     string
		readings []Reading
	}{
		{"nil", nil},
		{"empty", []Reading{}},
		{"single", []Reading{reading(testBase, 100)}},
		{"two within lookback", []Reading{
			reading(testBase, 100),
			reading(testBase.Add(14*time.Minute+59*time.Second), 120),
		}},
		{"many within lookback", []Reading{
			reading(testBase, 100),
			reading(testBase.Add(5*time.Minute), 110),
			reading(testBase.Add(10*time.Minute), 120),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Analyze(tt.readings, testLookback, testThreshold)
			assert.Equal(t, OutcomeInsufficient, a.Outcome)
			assert.Nil(t, a.Trend)
		})
	}
}

func TestAnalyze_InsufficientKeepsLatest(t *testing.T) {
	a := Analyze([]Reading{reading(testBase, 250)}, testLookback, testThreshold)
	assert.Equal(t, OutcomeInsufficient, a.Outcome)
	assert.Equal(t, 250.0, a.Latest.WaterLevel)
	assert.True(t, a.Baseline.Timestamp.IsZero())

	a = Analyze([]Reading{
		reading(testBase.Add(5*time.Minute), 104),
		reading(testBase, 100),
	}, testLookback, testThreshold)
	assert.Equal(t, OutcomeInsufficient, a.Outcome)
	assert.Equal(t, 104.0, a.Latest.WaterLevel)
}

func TestAnalyze_RateCalculation(t *testing.T) {
	latest := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	readings := []Reading{
		reading(latest.Add(-15*time.Minute), 100),
		reading(latest, 120),
	}

	a := Analyze(readings, testLookback, testThreshold)

	require.Equal(t, OutcomeTrend, a.Outcome)
	require.NotNil(t, a.Trend)
	assert.InDelta(t, 20.0/15.0, a.Trend.ChangePerMinute, 1e-12)
	assert.Equal(t, 120.0, a.Trend.CurrentLevel)
	assert.Equal(t, 18.5, a.Trend.Temperature)
	assert.Equal(t, 92.0, a.Trend.Humidity)
	assert.Equal(t, 15.0, a.ElapsedMinutes)
	assert.Equal(t, 100.0, a.Baseline.WaterLevel)
}

func TestAnalyze_BaselineIsMostRecentBeforeCutoff(t *testing.T) {
	readings := []Reading{
		reading(testBase, 50),                      // 30 min old
		reading(testBase.Add(10*time.Minute), 90),  // 20 min old, chosen
		reading(testBase.Add(20*time.Minute), 100), // 10 min old, too recent
		reading(testBase.Add(30*time.Minute), 110), // latest
	}

	a := Analyze(readings, testLookback, testThreshold)

	require.Equal(t, OutcomeTrend, a.Outcome)
	assert.Equal(t, testBase.Add(10*time.Minute), a.Baseline.Timestamp)
	assert.Equal(t, 20.0, a.ElapsedMinutes)
	assert.InDelta(t, 1.0, a.ChangePerMinute, 1e-12)
	assert.Len(t, a.Window, 3)
}

func TestAnalyze_BaselineExactlyAtCutoff(t *testing.T) {
	readings := []Reading{
		reading(testBase, 100),
		reading(testBase.Add(testLookback), 103),
	}

	a := Analyze(readings, testLookback, testThreshold)

	require.Equal(t, OutcomeTrend, a.Outcome)
	assert.InDelta(t, 0.2, a.ChangePerMinute, 1e-12)
}

func TestAnalyze_UnsortedInput(t *testing.T) {
	readings := []Reading{
		reading(testBase.Add(20*time.Minute), 95),
		reading(testBase, 80),
		reading(testBase.Add(5*time.Minute), 83.75),
		reading(testBase.Add(10*time.Minute), 87.5),
	}
	original := append([]Reading(nil), readings...)

	a := Analyze(readings, testLookback, testThreshold)

	require.Equal(t, OutcomeTrend, a.Outcome)
	assert.Equal(t, 95.0, a.Latest.WaterLevel)
	assert.Equal(t, 83.75, a.Baseline.WaterLevel)
	assert.Equal(t, original, readings, "input must not be reordered")
}

func TestAnalyze_ThresholdBoundary(t *testing.T) {
	readings := []Reading{
		reading(testBase, 100),
		reading(testBase.Add(15*time.Minute), 115),
	}

	t.Run("exact representable rate", func(t *testing.T) {
		a := Analyze(readings, testLookback, 1.0)
		assert.Equal(t, 1.0, a.ChangePerMinute)
		assert.Equal(t, OutcomeNoTrend, a.Outcome)
		assert.Nil(t, a.Trend)
	})

	t.Run("one ulp below rate", func(t *testing.T) {
		a := Analyze(readings, testLookback, math.Nextafter(1.0, 0))
		assert.Equal(t, OutcomeTrend, a.Outcome)
		require.NotNil(t, a.Trend)
	})

	t.Run("default threshold equal", func(t *testing.T) {
		rs := []Reading{
			reading(testBase, 100),
			reading(testBase.Add(15*time.Minute), 101.5),
		}
		rate := Analyze(rs, testLookback, 0).ChangePerMinute

		assert.Equal(t, OutcomeNoTrend, Analyze(rs, testLookback, rate).Outcome)
		assert.Equal(t, OutcomeTrend, Analyze(rs, testLookback, math.Nextafter(rate, math.Inf(-1))).Outcome)
	})
}

func TestAnalyze_StableOrFalling(t *testing.T) {
	for _, elapsed := range []time.Duration{15 * time.Minute, time.Hour, 24 * time.Hour} {
		t.Run(fmt.Sprintf("falling over %s", elapsed), func(t *testing.T) {
			readings := []Reading{
				reading(testBase, 100),
				reading(testBase.Add(elapsed), 98),
			}
			a := Analyze(readings, testLookback, testThreshold)
			assert.Equal(t, OutcomeNoTrend, a.Outcome)
			assert.Less(t, a.ChangePerMinute, 0.0)
			assert.Nil(t, a.Trend)
		})
	}

	t.Run("flat", func(t *testing.T) {
		readings := []Reading{
			reading(testBase, 100),
			reading(testBase.Add(30*time.Minute), 100),
		}
		a := Analyze(readings, testLookback, testThreshold)
		assert.Equal(t, OutcomeNoTrend, a.Outcome)
		assert.Equal(t, 0.0, a.ChangePerMinute)
	})
}

func TestAnalyze_ZeroLookbackDuplicateTimestamps(t *testing.T) {
	readings := []Reading{
		reading(testBase, 100),
		reading(testBase, 150),
	}

	a := Analyze(readings, 0, testThreshold)

	assert.Equal(t, OutcomeNoTrend, a.Outcome)
	assert.Equal(t, 0.0, a.ElapsedMinutes)
	assert.Equal(t, 0.0, a.ChangePerMinute)
}

func TestAnalyze_TiesKeepSourceOrder(t *testing.T) {
	latest := testBase.Add(20 * time.Minute)
	readings := []Reading{
		reading(testBase, 100),
		reading(latest, 110),
		reading(latest, 130),
	}

	a := Analyze(readings, testLookback, testThreshold)

	assert.Equal(t, 110.0, a.Latest.WaterLevel)
}

func TestAnalyze_EndToEndScenario(t *testing.T) {
	header := []string{"Time", "Temp", "Humid", "WaterLevel"}
	rows := make([][]string, 0, 21)
	for m := 0; m <= 20; m++ {
		at := testBase.Add(time.Duration(m) * time.Minute)
		level := 80 + 0.75*float64(m)
		rows = append(rows, []string{
			at.Format(testLayout),
			"17.0",
			"95",
			fmt.Sprintf("%.2f", level),
		})
	}

	readings, stats, err := Normalize(NewRawTable(header, rows...))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Dropped)

	a := Analyze(readings, testLookback, testThreshold)

	require.Equal(t, OutcomeTrend, a.Outcome)
	require.NotNil(t, a.Trend)
	assert.InDelta(t, 95.0, a.Trend.CurrentLevel, 1e-9)
	assert.InDelta(t, 0.75, a.Trend.ChangePerMinute, 1e-9)
	assert.Equal(t, 17.0, a.Trend.Temperature)
	assert.Equal(t, 95.0, a.Trend.Humidity)
	assert.Equal(t, testBase.Add(5*time.Minute), a.Baseline.Timestamp)
}

func TestSortNewestFirst(t *testing.T) {
	readings := []Reading{
		reading(testBase, 1),
		reading(testBase.Add(2*time.Minute), 3),
		reading(testBase.Add(time.Minute), 2),
	}

	sorted := SortNewestFirst(readings)

	assert.Equal(t, []float64{3, 2, 1}, []float64{sorted[0].WaterLevel, sorted[1].WaterLevel, sorted[2].WaterLevel})
	assert.Equal(t, 1.0, readings[0].WaterLevel)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "insufficient", OutcomeInsufficient.String())
	assert.Equal(t, "no_trend", OutcomeNoTrend.String())
	assert.Equal(t, "trend", OutcomeTrend.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
