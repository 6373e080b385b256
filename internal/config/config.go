package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Default staleness thresholds per case feed, in days.
const (
	DefaultStaleDaysCovidUS  = 3
	DefaultStaleDaysUSAFacts = 7
)

// ForecastModels lists the Forecast Hub models the pipeline knows how to serve.
var ForecastModels = []string{"COVIDhub-ensemble", "COVIDhub-baseline", "Google_Harvard-CPF"}

// Config holds all service settings, populated from environment variables.
type Config struct {
	CMDCAPIKey  string
	CMDCBaseURL string

	ZoltarUsername string
	ZoltarPassword string
	ZoltarBaseURL  string
	ForecastModel  string

	// Case feeds are always checked for staleness; the forecast check is off
	// when ForecastStaleDays is 0.
	StaleDaysCovidUS  int
	StaleDaysUSAFacts int
	ForecastStaleDays int

	DataRoot    string
	RulesPath   string
	HTTPTimeout time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RunInterval     time.Duration

	// Kafka raw-record source; disabled when no brokers are set.
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaReadTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := parsePositiveDuration("HTTP_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	runInterval, err := parsePositiveDuration("RUN_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}
	kafkaReadTimeout, err := parsePositiveDuration("KAFKA_READ_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	staleCovidUS, staleUSAFacts := DefaultStaleDaysCovidUS, DefaultStaleDaysUSAFacts
	if os.Getenv("STALE_DAYS_ALLOWED") != "" {
		n, err := parsePositiveInt("STALE_DAYS_ALLOWED", "0")
		if err != nil {
			return nil, err
		}
		staleCovidUS, staleUSAFacts = n, n
	}
	forecastStale, err := parseNonNegativeInt("FORECAST_STALE_DAYS", "0")
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		CMDCAPIKey:  os.Getenv("CMDC_API_KEY"),
		CMDCBaseURL: sharedcfg.EnvOrDefault("CMDC_BASE_URL", "https://api.covid.valorum.ai"),

		ZoltarUsername: os.Getenv("Z_USERNAME"),
		ZoltarPassword: os.Getenv("Z_PASSWORD"),
		ZoltarBaseURL:  sharedcfg.EnvOrDefault("ZOLTAR_BASE_URL", "https://www.zoltardata.com"),
		ForecastModel:  sharedcfg.EnvOrDefault("FORECAST_MODEL", ForecastModels[0]),

		StaleDaysCovidUS:  staleCovidUS,
		StaleDaysUSAFacts: staleUSAFacts,
		ForecastStaleDays: forecastStale,

		DataRoot:    sharedcfg.EnvOrDefault("DATA_ROOT", "data"),
		RulesPath:   os.Getenv("RULES_PATH"),
		HTTPTimeout: httpTimeout,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RunInterval:     runInterval,

		KafkaBrokers:     brokers,
		KafkaSourceTopic: sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-covid-records"),
		KafkaReadTimeout: kafkaReadTimeout,
	}

	if !slices.Contains(ForecastModels, cfg.ForecastModel) {
		return nil, fmt.Errorf("invalid FORECAST_MODEL %q: must be one of %v", cfg.ForecastModel, ForecastModels)
	}
	if cfg.DataRoot == "" {
		return nil, errors.New("DATA_ROOT is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether the Kafka raw-record source is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// ZoltarCredentials reports whether both Forecast Hub credentials are set.
func (c *Config) ZoltarCredentials() bool {
	return c.ZoltarUsername != "" && c.ZoltarPassword != ""
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", key)
	}
	return n, nil
}

func parsePositiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
