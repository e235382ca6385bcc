package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Source kinds.
const (
	SourceSheets = "sheets"
	SourceCSV    = "csv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Trend policy.
	Lookback      time.Duration
	RiseThreshold float64 // cm/minute, exclusive
	DangerLevelCM float64 // passed through to the predictor
	PollInterval  time.Duration

	// Reading source.
	Source              string
	SheetsSpreadsheetID string
	SheetsRange         string
	SheetsAPIKey        string
	SheetsAccessToken   string
	SheetsTimeout       time.Duration
	CSVPath             string

	// Predictor.
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAITimeout       time.Duration
	PredictionCacheSize int // 0 disables caching

	// Alert sink.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaAlertTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	lookback, err := parsePositiveDuration("LOOKBACK", "15m")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	sheetsTimeout, err := parsePositiveDuration("SHEETS_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	openAITimeout, err := parsePositiveDuration("OPENAI_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	riseThreshold, err := parseFloat("RISE_THRESHOLD", "0.1")
	if err != nil {
		return nil, err
	}
	dangerLevel, err := parseFloat("DANGER_LEVEL_CM", "500")
	if err != nil {
		return nil, err
	}
	if dangerLevel <= 0 {
		return nil, errors.New("invalid DANGER_LEVEL_CM: must be positive")
	}

	cacheSize, err := strconv.Atoi(sharedcfg.EnvOrDefault("PREDICTION_CACHE_SIZE", "32"))
	if err != nil || cacheSize < 0 {
		return nil, errors.New("invalid PREDICTION_CACHE_SIZE: must be a non-negative integer")
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Lookback:      lookback,
		RiseThreshold: riseThreshold,
		DangerLevelCM: dangerLevel,
		PollInterval:  pollInterval,

		Source:              sharedcfg.EnvOrDefault("SOURCE", SourceSheets),
		SheetsSpreadsheetID: os.Getenv("SHEETS_SPREADSHEET_ID"),
		SheetsRange:         sharedcfg.EnvOrDefault("SHEETS_RANGE", "DATA"),
		SheetsAPIKey:        os.Getenv("SHEETS_API_KEY"),
		SheetsAccessToken:   os.Getenv("SHEETS_ACCESS_TOKEN"),
		SheetsTimeout:       sheetsTimeout,
		CSVPath:             os.Getenv("CSV_PATH"),

		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         sharedcfg.EnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		OpenAITimeout:       openAITimeout,
		PredictionCacheSize: cacheSize,

		KafkaEnabled:    kafkaEnabled,
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "water-level-alerts"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Source {
	case SourceSheets:
		if c.SheetsSpreadsheetID == "" {
			return errors.New("SHEETS_SPREADSHEET_ID is required when SOURCE=sheets")
		}
		if c.SheetsAPIKey == "" && c.SheetsAccessToken == "" {
			return errors.New("SHEETS_API_KEY or SHEETS_ACCESS_TOKEN is required when SOURCE=sheets")
		}
	case SourceCSV:
		if c.CSVPath == "" {
			return errors.New("CSV_PATH is required when SOURCE=csv")
		}
	default:
		return fmt.Errorf("invalid SOURCE %q: want %q or %q", c.Source, SourceSheets, SourceCSV)
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaAlertTopic == "" {
			return errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key, def string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s: must be finite", key)
	}
	return v, nil
}
