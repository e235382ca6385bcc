package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/riverwatch-service/internal/adapter/console"
	"github.com/couchcryptid/riverwatch-service/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/riverwatch-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/riverwatch-service/internal/adapter/kafka"
	openaiadapter "github.com/couchcryptid/riverwatch-service/internal/adapter/openai"
	"github.com/couchcryptid/riverwatch-service/internal/adapter/sheets"
	"github.com/couchcryptid/riverwatch-service/internal/config"
	"github.com/couchcryptid/riverwatch-service/internal/domain"
	"github.com/couchcryptid/riverwatch-service/internal/observability"
	"github.com/couchcryptid/riverwatch-service/internal/pipeline"
	"github.com/openai/openai-go/option"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	source, err := newSource(cfg, logger)
	if err != nil {
		logger.Error("failed to create source", "error", err)
		os.Exit(1)
	}

	// Predictor is feature-flagged via OPENAI_API_KEY.
	var predictor domain.Predictor
	if cfg.OpenAIAPIKey != "" {
		p, err := openaiadapter.NewPredictor(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger,
			option.WithRequestTimeout(cfg.OpenAITimeout))
		if err != nil {
			logger.Error("failed to create predictor", "error", err)
			os.Exit(1)
		}
		predictor = p
		if cfg.PredictionCacheSize > 0 {
			predictor = openaiadapter.NewCachedPredictor(p, cfg.PredictionCacheSize)
		}
		logger.Info("openai predictor enabled", "model", cfg.OpenAIModel, "timeout", cfg.OpenAITimeout, "cache_size", cfg.PredictionCacheSize)
	} else {
		logger.Warn("openai predictor disabled, rising trends will not be reported")
	}

	reporters := []pipeline.Reporter{console.NewReporter(os.Stdout, time.Local)}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		reporters = append(reporters, writer)
		logger.Info("kafka alert sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertTopic)
	}

	p := pipeline.New(source, predictor, reporters, pipeline.Settings{
		Lookback:      cfg.Lookback,
		RiseThreshold: cfg.RiseThreshold,
		DangerLevelCM: cfg.DangerLevelCM,
		Interval:      cfg.PollInterval,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start polling.
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if writer != nil {
		closeWriter(writer, pipelineDone, logger)
	}

	logger.Info("shutdown complete")
}

// closeWriter closes w once the pipeline has stopped. A cycle still in flight
// may be reporting through w, so it is left open otherwise. Reports whether w
// was closed.
func closeWriter(w io.Closer, pipelineDone <-chan struct{}, logger *slog.Logger) bool {
	select {
	case <-pipelineDone:
	default:
		logger.Warn("kafka writer left open, pipeline cycle still running")
		return false
	}
	if err := w.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	return true
}

// newSource picks the reading source selected by SOURCE.
func newSource(cfg *config.Config, logger *slog.Logger) (pipeline.Source, error) {
	if cfg.Source == config.SourceCSV {
		logger.Info("reading from csv file", "path", cfg.CSVPath)
		return csvfile.NewSource(cfg.CSVPath), nil
	}
	logger.Info("reading from google sheets", "spreadsheet_id", cfg.SheetsSpreadsheetID, "range", cfg.SheetsRange)
	client, err := sheets.NewClient(context.Background(), sheets.Options{
		SpreadsheetID: cfg.SheetsSpreadsheetID,
		Range:         cfg.SheetsRange,
		APIKey:        cfg.SheetsAPIKey,
		AccessToken:   cfg.SheetsAccessToken,
		Timeout:       cfg.SheetsTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}
