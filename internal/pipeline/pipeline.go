package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/riverwatch-service/internal/domain"
	"github.com/couchcryptid/riverwatch-service/internal/observability"
	"github.com/robfig/cron/v3"
)

// Source fetches the current sensor sheet.
type Source interface {
	Fetch(ctx context.Context) (domain.RawTable, error)
}

// Reporter delivers an alert to one destination.
type Reporter interface {
	Name() string
	Report(ctx context.Context, alert domain.Alert) error
}

// Outcome labels how a cycle ended.
type Outcome string

const (
	OutcomeUnavailable      Outcome = "unavailable"
	OutcomeSchemaError      Outcome = "schema_error"
	OutcomeInsufficient     Outcome = "insufficient"
	OutcomeNoTrend          Outcome = "no_trend"
	OutcomeTrend            Outcome = "trend"
	OutcomePredictionFailed Outcome = "prediction_failed"
	OutcomeReported         Outcome = "reported"
)

// Settings holds the analysis parameters of a Pipeline.
type Settings struct {
	Lookback      time.Duration
	RiseThreshold float64 // cm/minute, exclusive
	DangerLevelCM float64
	Interval      time.Duration
}

// CycleResult summarizes one fetch-analyze-report cycle.
type CycleResult struct {
	Outcome         Outcome               `json:"outcome"`
	StartedAt       time.Time             `json:"started_at"`
	Duration        time.Duration         `json:"duration"`
	Stats           domain.NormalizeStats `json:"stats"`
	ChangePerMinute float64               `json:"change_per_minute"`
	Trend           *domain.TrendResult   `json:"trend,omitempty"`
	Alert           *domain.Alert         `json:"alert,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// Pipeline polls a Source on a fixed interval, looks for a rising water
// level and, when one is found, forecasts it and fans the alert out to every
// Reporter.
type Pipeline struct {
	source    Source
	predictor domain.Predictor
	reporters []Reporter
	settings  Settings
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu    sync.Mutex // serializes cycles
	ready atomic.Bool
	last  atomic.Pointer[CycleResult]
}

// New creates a Pipeline. predictor may be nil, in which case detected trends
// are logged but never reported.
func New(src Source, predictor domain.Predictor, reporters []Reporter, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:    src,
		predictor: predictor,
		reporters: reporters,
		settings:  settings,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a cycle has read data that reached the
// analyzer, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not analyzed any readings yet")
	}
	return nil
}

// LastCycle returns the most recently completed cycle.
func (p *Pipeline) LastCycle() (CycleResult, bool) {
	r := p.last.Load()
	if r == nil {
		return CycleResult{}, false
	}
	return *r, true
}

// Run executes a cycle immediately and then on every interval until the
// context is cancelled. A cycle still running when the next one is due causes
// that tick to be skipped.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"interval", p.settings.Interval,
		"lookback", p.settings.Lookback,
		"rise_threshold", p.settings.RiseThreshold,
		"reporters", len(p.reporters),
		"predictor", p.predictor != nil,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	job := func() {
		if _, err := p.RunCycle(ctx); err != nil {
			p.logger.Debug("cycle interrupted", "error", err)
		}
	}

	logger := cronLogger{logger: p.logger}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", p.settings.Interval), job); err != nil {
		return fmt.Errorf("schedule cycles: %w", err)
	}

	job()
	if ctx.Err() != nil {
		p.logger.Info("pipeline stopping", "reason", ctx.Err())
		return nil
	}

	c.Start()
	<-ctx.Done()
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	return nil
}

// RunCycle performs one fetch, normalize, analyze, predict and report pass.
// Failures of the source, predictor or reporters end up in the result; the
// returned error is only set when ctx is cancelled mid-cycle.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	res := CycleResult{StartedAt: start.UTC()}

	if err := p.runCycle(ctx, &res); err != nil {
		return res, err
	}

	res.Duration = time.Since(start)
	p.metrics.CyclesTotal.WithLabelValues(string(res.Outcome)).Inc()
	p.metrics.CycleDuration.Observe(res.Duration.Seconds())
	p.last.Store(&res)
	return res, nil
}

func (p *Pipeline) runCycle(ctx context.Context, res *CycleResult) error {
	fetchStart := time.Now()
	table, err := p.source.Fetch(ctx)
	p.metrics.SourceFetchDuration.Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("sheet unavailable", "error", err)
		res.Outcome = OutcomeUnavailable
		res.Error = err.Error()
		return nil
	}

	readings, stats, err := domain.Normalize(table)
	res.Stats = stats
	if err != nil {
		p.logger.Error("sheet header cannot be resolved", "error", err)
		res.Outcome = OutcomeSchemaError
		res.Error = err.Error()
		return nil
	}
	p.metrics.RowsFetched.Add(float64(stats.Rows))
	p.metrics.RowsDropped.Add(float64(stats.Dropped))
	if stats.Dropped > 0 {
		p.logger.Debug("rows dropped during normalization", "rows", stats.Rows, "dropped", stats.Dropped)
	}
	p.ready.Store(true)

	analysis := domain.Analyze(readings, p.settings.Lookback, p.settings.RiseThreshold)
	if len(readings) > 0 {
		p.metrics.WaterLevel.Set(analysis.Latest.WaterLevel)
	}

	switch analysis.Outcome {
	case domain.OutcomeInsufficient:
		p.logger.Info("not enough data for trend analysis",
			"readings", len(readings),
			"lookback", p.settings.Lookback,
		)
		res.Outcome = OutcomeInsufficient
		return nil
	case domain.OutcomeNoTrend:
		p.metrics.ChangePerMinute.Set(analysis.ChangePerMinute)
		res.ChangePerMinute = analysis.ChangePerMinute
		p.logger.Info("no significant rise",
			"water_level", analysis.Latest.WaterLevel,
			"change_per_minute", analysis.ChangePerMinute,
			"elapsed_minutes", analysis.ElapsedMinutes,
		)
		res.Outcome = OutcomeNoTrend
		return nil
	}

	p.metrics.ChangePerMinute.Set(analysis.ChangePerMinute)
	res.ChangePerMinute = analysis.ChangePerMinute
	res.Trend = analysis.Trend
	p.logger.Warn("rising water level detected",
		"water_level", analysis.Trend.CurrentLevel,
		"change_per_minute", analysis.Trend.ChangePerMinute,
		"baseline_time", analysis.Baseline.Timestamp,
	)

	if p.predictor == nil {
		p.logger.Warn("no predictor configured, alert not issued")
		res.Outcome = OutcomeTrend
		return nil
	}

	prediction, err := p.predict(ctx, *analysis.Trend)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Error("flood prediction failed", "error", err)
		res.Outcome = OutcomePredictionFailed
		res.Error = err.Error()
		return nil
	}

	alert, err := domain.NewAlert(analysis, prediction, p.settings.DangerLevelCM)
	if err != nil {
		p.logger.Error("build alert", "error", err)
		res.Outcome = OutcomePredictionFailed
		res.Error = err.Error()
		return nil
	}
	res.Alert = &alert
	res.Outcome = OutcomeReported

	p.report(ctx, alert)
	return nil
}

func (p *Pipeline) predict(ctx context.Context, trend domain.TrendResult) (domain.Prediction, error) {
	start := time.Now()
	prediction, err := p.predictor.Predict(ctx, trend, p.settings.DangerLevelCM)
	p.metrics.PredictorDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.PredictorRequests.WithLabelValues("error").Inc()
		return domain.Prediction{}, err
	}
	p.metrics.PredictorRequests.WithLabelValues("success").Inc()
	return prediction, nil
}

// report hands the alert to every reporter. One reporter failing does not
// stop the others.
func (p *Pipeline) report(ctx context.Context, alert domain.Alert) {
	for _, r := range p.reporters {
		if err := r.Report(ctx, alert); err != nil {
			p.logger.Error("alert delivery failed", "reporter", r.Name(), "alert_id", alert.ID, "error", err)
			p.metrics.ReporterErrors.WithLabelValues(r.Name()).Inc()
			continue
		}
		p.metrics.AlertsPublished.WithLabelValues(r.Name()).Inc()
	}
	p.logger.Info("alert issued",
		"alert_id", alert.ID,
		"flood_probability_3hr", alert.Prediction.FloodProbability3h,
		"time_to_danger_level", alert.Prediction.TimeToDangerLevel,
	)
}

// cronLogger routes scheduler messages through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("scheduler: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("scheduler: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
