// Command validate checks a sensor sheet exported as CSV before it is pointed
// at the service. It runs the same normalization and trend analysis the
// service uses and reports pass/fail per phase: header schema, row integrity,
// and trend analysis.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/mock/rising.csv \
//	  -lookback 15m -threshold 0.1 \
//	  -expect trend
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/riverwatch-service/internal/adapter/csvfile"
	"github.com/couchcryptid/riverwatch-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type settings struct {
	lookback   time.Duration
	threshold  float64
	maxDropped float64 // fraction of data rows
	expect     string  // expected outcome, empty to skip
}

func main() {
	path := flag.String("csv", "", "path to the sensor CSV file")
	lookback := flag.Duration("lookback", 15*time.Minute, "baseline lookback")
	threshold := flag.Float64("threshold", 0.1, "rise threshold in cm/minute (exclusive)")
	maxDropped := flag.Float64("max-dropped", 0.5, "maximum fraction of rows allowed to fail parsing")
	expect := flag.String("expect", "", "expected outcome: insufficient, no_trend, or trend")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(1)
	}

	code := run(*path, settings{
		lookback:   *lookback,
		threshold:  *threshold,
		maxDropped: *maxDropped,
		expect:     *expect,
	})
	if code != 0 {
		os.Exit(code)
	}
}

func run(path string, s settings) int {
	fmt.Println("=== Sensor Sheet Validation ===")
	fmt.Println()

	table, err := csvfile.NewSource(path).Fetch(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load %s: %v\n", path, err)
		return 1
	}

	phases := validate(table, s)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-24s %s\n", p.name, status)
	}

	// Print details.
	for _, p := range phases {
		if len(p.errors) == 0 && len(p.notes) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for _, n := range p.notes {
			fmt.Printf("  %s\n", n)
		}
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validate runs every phase. Later phases are skipped when the header cannot
// be resolved.
func validate(table domain.RawTable, s settings) []*phase {
	schema := validateSchema(table)
	if !schema.passed() {
		return []*phase{schema}
	}
	rows, readings := validateRows(table, s.maxDropped)
	return []*phase{schema, rows, validateTrend(readings, s)}
}

func validateSchema(table domain.RawTable) *phase {
	p := &phase{name: "Header schema"}

	columns, err := domain.ResolveColumns(table.Header())
	if err != nil {
		var schemaErr *domain.SchemaError
		if errors.As(err, &schemaErr) {
			p.errorf("no column for %q in header %q", schemaErr.Field, table.Header())
		} else {
			p.errorf("%v", err)
		}
		return p
	}

	for _, f := range []domain.Field{domain.FieldTimestamp, domain.FieldTemperature, domain.FieldHumidity, domain.FieldWaterLevel} {
		p.notef("%-12s <- column %d %q", f, columns[f], table.Header()[columns[f]])
	}
	return p
}

func validateRows(table domain.RawTable, maxDropped float64) (*phase, []domain.Reading) {
	p := &phase{name: "Row integrity"}

	readings, stats, err := domain.Normalize(table)
	if err != nil {
		p.errorf("normalize: %v", err)
		return p, nil
	}
	p.notef("rows: %d, kept: %d, dropped: %d", stats.Rows, stats.Kept(), stats.Dropped)

	// Normalizing row by row pinpoints which lines were dropped.
	for i, row := range table.Data() {
		single, _, err := domain.Normalize(domain.NewRawTable(table.Header(), row))
		if err == nil && len(single) == 0 {
			p.notef("line %d dropped: %q", i+2, row)
		}
	}

	if stats.Rows == 0 {
		p.errorf("sheet has a header but no data rows")
		return p, readings
	}
	if frac := float64(stats.Dropped) / float64(stats.Rows); frac > maxDropped {
		p.errorf("%.0f%% of rows failed to parse (limit %.0f%%)", frac*100, maxDropped*100)
	}

	seen := make(map[time.Time]int, len(readings))
	for _, r := range readings {
		seen[r.Timestamp]++
	}
	for ts, n := range seen {
		if n > 1 {
			p.notef("timestamp %s appears %d times", ts.Format(time.RFC3339), n)
		}
	}
	return p, readings
}

func validateTrend(readings []domain.Reading, s settings) *phase {
	p := &phase{name: "Trend analysis"}

	analysis := domain.Analyze(readings, s.lookback, s.threshold)
	p.notef("outcome: %s (lookback %s, threshold %g cm/min)", analysis.Outcome, s.lookback, s.threshold)
	if analysis.Outcome != domain.OutcomeInsufficient {
		p.notef("latest %.1f cm at %s, baseline %.1f cm at %s",
			analysis.Latest.WaterLevel, analysis.Latest.Timestamp.Format(time.RFC3339),
			analysis.Baseline.WaterLevel, analysis.Baseline.Timestamp.Format(time.RFC3339))
		p.notef("change: %+.3f cm/min over %.1f minutes", analysis.ChangePerMinute, analysis.ElapsedMinutes)
		if rate, ok := domain.FitRate(analysis.Window); ok {
			p.notef("fitted rate: %+.3f cm/min over %d samples", rate, len(analysis.Window))
		}
	}

	if s.expect != "" && analysis.Outcome.String() != s.expect {
		p.errorf("expected outcome %s, got %s", s.expect, analysis.Outcome)
	}
	return p
}
