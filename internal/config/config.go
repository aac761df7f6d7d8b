package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Provider credentials. A provider with an empty key is disabled.
	GoogleMapsKey string
	BingMapsKey   string

	ProviderTimeout    time.Duration
	ProviderMaxRetries int

	// Deferred mode. KafkaEnabled gates the consumer loop; immediate-mode
	// HTTP lookups work either way.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaJobsTopic    string
	KafkaResultsTopic string
	KafkaGroupID      string

	// Response store. An empty RedisAddr selects the in-process store.
	RedisAddr         string
	ResponseCacheSize int
	ResponseTTL       time.Duration

	// CountiesPath points at a JSON seed of canonical counties. Empty
	// means the resolver starts unseeded and county lookups fail until
	// cities establish their own entries.
	CountiesPath string

	// Reconciliation tunables.
	StaleAfter      time.Duration
	ScoreCliff      float64
	PreferredEngine string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	providerTimeout, err := parseDuration("PROVIDER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	responseTTL, err := parseDuration("RESPONSE_TTL", "720h")
	if err != nil {
		return nil, err
	}
	staleAfter, err := parseDuration("STALE_AFTER", "336h")
	if err != nil {
		return nil, err
	}

	scoreCliff, err := parseFloat("SCORE_CLIFF_CUTOFF", 0.04)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		GoogleMapsKey: os.Getenv("GOOGLE_MAPS_KEY"),
		BingMapsKey:   os.Getenv("BING_MAPS_KEY"),

		ProviderTimeout:    providerTimeout,
		ProviderMaxRetries: parseInt("PROVIDER_MAX_RETRIES", 2),

		KafkaEnabled:      kafkaEnabled,
		KafkaBrokers:      parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaJobsTopic:    envOrDefault("KAFKA_JOBS_TOPIC", "geocode-jobs"),
		KafkaResultsTopic: envOrDefault("KAFKA_RESULTS_TOPIC", "geocode-results"),
		KafkaGroupID:      envOrDefault("KAFKA_GROUP_ID", "geocode-reconciler"),

		RedisAddr:         os.Getenv("REDIS_ADDR"),
		CountiesPath:      os.Getenv("COUNTIES_PATH"),
		ResponseCacheSize: parseInt("RESPONSE_CACHE_SIZE", 10000),
		ResponseTTL:       responseTTL,

		StaleAfter:      staleAfter,
		ScoreCliff:      scoreCliff,
		PreferredEngine: envOrDefault("PREFERRED_ENGINE", "Google"),
	}

	if cfg.GoogleMapsKey == "" && cfg.BingMapsKey == "" {
		return nil, errors.New("at least one of GOOGLE_MAPS_KEY or BING_MAPS_KEY is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaJobsTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_JOBS_TOPIC is empty")
	}
	if cfg.ScoreCliff <= 0 || cfg.ScoreCliff >= 1 {
		return nil, errors.New("SCORE_CLIFF_CUTOFF must be in (0, 1)")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}
