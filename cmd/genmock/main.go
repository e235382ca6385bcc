// Command genmock writes a mock sensor sheet as CSV for local runs with
// SOURCE=csv and for exercising cmd/validate. It runs the generated rows
// through the real domain package and prints the outcome the service would
// reach, so fixtures and expectations stay in sync.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/rising.csv \
//	  -profile rising -rate 0.5 -rows 24 -step 5m \
//	  -headers alias -corrupt-every 7
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/riverwatch-service/internal/adapter/csvfile"
	"github.com/couchcryptid/riverwatch-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

const timestampLayout = "2006-01-02 15:04:05"

var headerSets = map[string][]string{
	"canonical": {"Timestamp", "Temperature", "Humidity", "WaterLevel"},
	"alias":     {"Time", "Temperture", "Humid", "Water_Level"},
	"messy":     {" DATE ", "temp", "HUMIDITY", "level", "Notes"},
}

type options struct {
	out          string
	profile      string
	headers      string
	rows         int
	step         time.Duration
	startLevel   float64
	rate         float64 // cm/minute, sign set by profile
	noise        float64
	corruptEvery int
	seed         uint64
	end          time.Time
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	opts, err := parseFlags()
	if err != nil {
		flag.Usage()
		return err
	}

	// A fixed clock keeps fixtures reproducible unless -end is "now".
	var clock clockwork.Clock = clockwork.NewRealClock()
	if !opts.end.IsZero() {
		clock = clockwork.NewFakeClockAt(opts.end)
	}

	records := generate(opts, clock.Now().UTC())
	if err := writeCSV(opts.out, records); err != nil {
		return fmt.Errorf("writing %s: %w", opts.out, err)
	}
	log.Printf("wrote %d data rows to %s", len(records)-1, opts.out)

	return printExpectation(opts.out)
}

func parseFlags() (options, error) {
	var opts options
	var end string
	flag.StringVar(&opts.out, "out", "", "output CSV path")
	flag.StringVar(&opts.profile, "profile", "rising", "water level profile: rising, flat, or falling")
	flag.StringVar(&opts.headers, "headers", "canonical", "header spelling: canonical, alias, or messy")
	flag.IntVar(&opts.rows, "rows", 24, "number of data rows")
	flag.DurationVar(&opts.step, "step", 5*time.Minute, "interval between readings")
	flag.Float64Var(&opts.startLevel, "start-level", 120, "water level of the oldest reading in cm")
	flag.Float64Var(&opts.rate, "rate", 0.5, "magnitude of the level change in cm/minute")
	flag.Float64Var(&opts.noise, "noise", 0.2, "maximum random jitter added to each level in cm")
	flag.IntVar(&opts.corruptEvery, "corrupt-every", 0, "make every Nth data row unparsable (0 disables)")
	flag.Uint64Var(&opts.seed, "seed", 1, "random seed")
	flag.StringVar(&end, "end", "2024-06-01T12:00:00Z", `timestamp of the newest reading (RFC 3339) or "now"`)
	flag.Parse()

	if opts.out == "" {
		return opts, fmt.Errorf("missing required flag: -out")
	}
	if _, ok := headerSets[opts.headers]; !ok {
		return opts, fmt.Errorf("unknown header set %q", opts.headers)
	}
	switch opts.profile {
	case "rising", "flat", "falling":
	default:
		return opts, fmt.Errorf("unknown profile %q", opts.profile)
	}
	if opts.rows < 1 || opts.step <= 0 {
		return opts, fmt.Errorf("rows and step must be positive")
	}
	if end != "now" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return opts, fmt.Errorf("parse -end: %w", err)
		}
		opts.end = t
	}
	return opts, nil
}

// generate returns the header followed by rows in chronological order.
func generate(opts options, end time.Time) [][]string {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	header := headerSets[opts.headers]

	slope := opts.rate
	switch opts.profile {
	case "flat":
		slope = 0
	case "falling":
		slope = -opts.rate
	}

	records := make([][]string, 0, opts.rows+1)
	records = append(records, header)

	start := end.Add(-time.Duration(opts.rows-1) * opts.step)
	for i := range opts.rows {
		ts := start.Add(time.Duration(i) * opts.step)
		minutes := ts.Sub(start).Minutes()
		level := opts.startLevel + slope*minutes + (rng.Float64()*2-1)*opts.noise
		temp := 18 + rng.Float64()*2
		humidity := 85 + rng.Float64()*10

		row := []string{
			ts.Format(timestampLayout),
			strconv.FormatFloat(temp, 'f', 1, 64),
			strconv.FormatFloat(humidity, 'f', 0, 64),
			strconv.FormatFloat(level, 'f', 1, 64),
		}
		if len(header) > len(row) {
			row = append(row, "")
		}
		if opts.corruptEvery > 0 && (i+1)%opts.corruptEvery == 0 {
			corrupt(row, i)
		}
		records = append(records, row)
	}
	return records
}

// corrupt breaks one field of row so that it is dropped during
// normalization, cycling through the failure kinds seen in real sheets.
func corrupt(row []string, i int) {
	switch i % 4 {
	case 0:
		row[0] = "not a date"
	case 1:
		row[1] = "N/A"
	case 2:
		row[2] = ""
	default:
		row[3] = "err"
	}
}

func writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Close()
}

// printExpectation reads the file back the way the service does and reports
// what a cycle would conclude with default settings.
func printExpectation(path string) error {
	table, err := csvfile.NewSource(path).Fetch(context.Background())
	if err != nil {
		return err
	}
	readings, stats, err := domain.Normalize(table)
	if err != nil {
		return err
	}
	analysis := domain.Analyze(readings, 15*time.Minute, 0.1)

	fmt.Println("\n=== Expected analysis (lookback 15m, threshold 0.1 cm/min) ===")
	fmt.Printf("Rows: %d, kept: %d, dropped: %d\n", stats.Rows, stats.Kept(), stats.Dropped)
	fmt.Printf("Outcome: %s\n", analysis.Outcome)
	if analysis.Outcome != domain.OutcomeInsufficient {
		fmt.Printf("Latest: %.1f cm at %s\n", analysis.Latest.WaterLevel, analysis.Latest.Timestamp.Format(time.RFC3339))
		fmt.Printf("Baseline: %.1f cm at %s\n", analysis.Baseline.WaterLevel, analysis.Baseline.Timestamp.Format(time.RFC3339))
		fmt.Printf("Change: %+.3f cm/min\n", analysis.ChangePerMinute)
	}
	if rate, ok := domain.FitRate(analysis.Window); ok {
		fmt.Printf("Fitted rate: %+.3f cm/min over %d samples\n", rate, len(analysis.Window))
	}
	return nil
}
