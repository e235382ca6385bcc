package domain

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// timestampLayouts are tried in order before falling back to dateparse, so
// the formats the sensor sheets actually use resolve the same way regardless
// of what the fallback guesses. Layouts with a zone are converted to UTC after
// parsing; layouts without one already parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"1/2/2006 15:04:05", // spreadsheet locale en-US, also matches zero-padded 01/02/2006
	"1/2/2006 15:04",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"20060102150405",
}

// parseTimestamp parses a sensor timestamp. Pure digit strings that match no
// layout are read as Unix epoch seconds, or milliseconds when 13 digits long.
// Anything else is handed to dateparse with naive times read as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	if isDigits(s) {
		return parseEpoch(s)
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseEpoch(s string) (time.Time, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	switch len(s) {
	case 9, 10:
		return time.Unix(n, 0).UTC(), true
	case 13:
		return time.UnixMilli(n).UTC(), true
	default:
		return time.Time{}, false
	}
}

// parseNumber parses a decimal reading. Empty, NaN and infinite values are
// rejected so they can never reach the rate computation.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
