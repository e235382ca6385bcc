package domain

import (
	"gonum.org/v1/gonum/stat"
)

// FitRate returns the least-squares slope of water level over time in
// cm/minute for the given readings, and false when fewer than two distinct
// timestamps are present. It is a diagnostic reported next to the
// baseline rate; alert decisions never depend on it.
func FitRate(window []Reading) (float64, bool) {
	if len(window) < 2 {
		return 0, false
	}

	origin := window[0].Timestamp
	xs := make([]float64, len(window))
	ys := make([]float64, len(window))
	distinct := false
	for i, r := range window {
		xs[i] = r.Timestamp.Sub(origin).Minutes()
		ys[i] = r.WaterLevel
		if xs[i] != 0 {
			distinct = true
		}
	}
	if !distinct {
		return 0, false
	}

	// y = alpha + beta*x
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta, true
}
