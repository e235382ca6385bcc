// Package domain turns loosely structured sensor sheets into a validated water
// level time series and decides whether the level is rising fast enough to
// warrant an alert.
//
// # Data Source
//
// Readings are logged by a field sensor (ESP32 class device) into a
// spreadsheet, one row per sample. The sheet is maintained by hand, so column
// names drift between deployments and individual cells are sometimes blank or
// garbled. Row 0 is always the header.
//
// # Header Conventions
//
// Column names are compared after trimming whitespace, lower-casing and
// removing underscores, so "Water_Level", " waterlevel " and "WATERLEVEL" are
// the same column. Accepted spellings per field:
//
//	timestamp:   timestamp, time, date, datetime
//	temperature: temperature, temperture, temp   ("temperture" is a known typo in deployed sheets)
//	humidity:    humidity, humid
//	waterlevel:  waterlevel, level
//
// Each field binds the first matching column, scanning left to right. A column
// bound to one field is not offered to later fields. See [columnAliases].
//
// # Value Conventions
//
// Timestamps arrive in whatever format the logger or the spreadsheet locale
// produced; see [timestampLayouts] for the formats tried first. Anything else
// is left to github.com/araddon/dateparse. Values carrying an offset are
// converted to UTC, values without one are taken as UTC.
//
// Temperature is °C, humidity is %, water level is cm. Numbers are plain
// decimals; surrounding whitespace is ignored.
//
// A row with any unparsable field is dropped as a whole. Rows never affect
// each other.
//
// # Trend Policy
//
// The latest reading is compared with the most recent reading that is at
// least one lookback window older. The rate is expressed in cm/minute. The
// rise threshold is an exclusive lower bound: a rate exactly equal to the
// threshold is still "no trend", anything above it is a trend.
package domain
