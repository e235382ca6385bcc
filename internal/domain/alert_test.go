package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingAnalysis(t *testing.T) Analysis {
	t.Helper()
	readings := []Reading{
		reading(testBase, 100),
		reading(testBase.Add(5*time.Minute), 105),
		reading(testBase.Add(10*time.Minute), 110),
		reading(testBase.Add(15*time.Minute), 115),
	}
	a := Analyze(readings, testLookback, testThreshold)
	require.Equal(t, OutcomeTrend, a.Outcome)
	return a
}

func TestNewAlert(t *testing.T) {
	issued := time.Date(2024, 6, 1, 10, 16, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(issued))
	defer SetClock(nil)

	prediction := Prediction{
		FloodProbability3h: "70%",
		TimeToDangerLevel:  "about 6 hours",
		ResidentActions:    []string{"Move valuables upstairs"},
	}

	alert, err := NewAlert(risingAnalysis(t), prediction, 500)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(alert.ID, "alert-"))
	assert.Equal(t, issued, alert.IssuedAt)
	assert.Equal(t, testBase.Add(15*time.Minute), alert.SensorTime)
	assert.Equal(t, testBase, alert.BaselineTime)
	assert.Equal(t, 115.0, alert.Trend.CurrentLevel)
	assert.InDelta(t, 1.0, alert.Trend.ChangePerMinute, 1e-12)
	assert.Equal(t, 500.0, alert.DangerLevelCM)
	assert.Equal(t, prediction, alert.Prediction)
	assert.Equal(t, 4, alert.Samples)
	require.NotNil(t, alert.FittedRatePerMinute)
	assert.InDelta(t, 1.0, *alert.FittedRatePerMinute, 1e-9)
}

func TestNewAlert_DeterministicID(t *testing.T) {
	a := risingAnalysis(t)

	first, err := NewAlert(a, Prediction{}, 500)
	require.NoError(t, err)
	second, err := NewAlert(a, Prediction{FloodProbability3h: "10%"}, 400)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestNewAlert_RejectsNonTrend(t *testing.T) {
	a := Analyze([]Reading{reading(testBase, 100)}, testLookback, testThreshold)

	_, err := NewAlert(a, Prediction{}, 500)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient")
}

func TestGenerateAlertID(t *testing.T) {
	id1 := generateAlertID(reading(testBase, 100))
	id2 := generateAlertID(reading(testBase, 100.5))
	id3 := generateAlertID(reading(testBase.Add(time.Second), 100))

	assert.NotEqual(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.Len(t, id1, len("alert-")+16)
}

func TestFitRate(t *testing.T) {
	t.Run("linear rise", func(t *testing.T) {
		window := []Reading{
			reading(testBase.Add(20*time.Minute), 95),
			reading(testBase.Add(10*time.Minute), 87.5),
			reading(testBase, 80),
		}
		rate, ok := FitRate(window)
		require.True(t, ok)
		assert.InDelta(t, 0.75, rate, 1e-9)
	})

	t.Run("noisy fall", func(t *testing.T) {
		window := []Reading{
			reading(testBase, 100),
			reading(testBase.Add(time.Minute), 99.2),
			reading(testBase.Add(2*time.Minute), 98.1),
			reading(testBase.Add(3*time.Minute), 97.3),
		}
		rate, ok := FitRate(window)
		require.True(t, ok)
		assert.Less(t, rate, 0.0)
	})

	t.Run("too few", func(t *testing.T) {
		_, ok := FitRate([]Reading{reading(testBase, 1)})
		assert.False(t, ok)
	})

	t.Run("same timestamp", func(t *testing.T) {
		_, ok := FitRate([]Reading{reading(testBase, 1), reading(testBase, 2)})
		assert.False(t, ok)
	})
}
