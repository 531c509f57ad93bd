// Package config loads engine settings from environment variables and
// validates them before any record is processed. Validation failures
// here are fatal by design: a bad threshold or alias table must stop the
// run, not silently skew every match decision.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/railsafe/milepost-linkage/internal/domain"
)

// DefaultThresholdM is the spatial acceptance threshold: wide enough to
// absorb GPS/geocoding noise, tight enough not to conflate adjacent
// track segments. A policy default, not a law.
const DefaultThresholdM = 400.0

// Config holds all engine settings.
type Config struct {
	IncidentCSV string
	MilepostCSV string
	SQLitePath  string

	ThresholdM  float64
	StripSuffix bool
	AliasPath   string // optional JSON alias table; empty means built-in
	Workers     int    // 0 means GOMAXPROCS

	BreakdownRailroad bool
	BreakdownState    bool

	HTTPAddr        string // metrics/health listener; empty disables it
	ShutdownTimeout time.Duration

	// Optional enriched-record publishing for the dashboard consumer.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables, applying defaults
// where unset, and validates everything that can be checked without
// touching the input files.
func Load() (*Config, error) {
	threshold, err := parseFloat("SPATIAL_THRESHOLD_M", DefaultThresholdM)
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("RECONCILE_WORKERS", 0)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	brokers := splitList(os.Getenv("KAFKA_BROKERS"))
	kafkaTopic := envOrDefault("KAFKA_TOPIC", "enriched-rail-incidents")
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	dims := splitList(envOrDefault("REPORT_BREAKDOWNS", "railroad,state"))

	cfg := &Config{
		IncidentCSV: os.Getenv("INCIDENT_CSV"),
		MilepostCSV: os.Getenv("MILEPOST_CSV"),
		SQLitePath:  envOrDefault("SQLITE_PATH", "enriched.db"),

		ThresholdM:  threshold,
		StripSuffix: envOrDefault("MILEPOST_SUFFIX_STRIPPING", "true") == "true",
		AliasPath:   os.Getenv("ALIAS_TABLE_PATH"),
		Workers:     workers,

		BreakdownRailroad: contains(dims, "railroad"),
		BreakdownState:    contains(dims, "state"),

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: brokers,
		KafkaTopic:   kafkaTopic,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that must hold before processing starts.
func (c *Config) Validate() error {
	if c.ThresholdM <= 0 {
		return fmt.Errorf("spatial threshold must be positive, got %g", c.ThresholdM)
	}
	if c.Workers < 0 {
		return fmt.Errorf("worker count must be non-negative, got %d", c.Workers)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.KafkaEnabled && c.KafkaTopic == "" {
		return errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
	}
	return nil
}

// Aliases returns the railroad alias table: the file at ALIAS_TABLE_PATH
// when set, the built-in table otherwise. A malformed table is a fatal
// configuration error.
func (c *Config) Aliases() (domain.AliasTable, error) {
	table := domain.DefaultAliases()

	if c.AliasPath != "" {
		data, err := os.ReadFile(c.AliasPath)
		if err != nil {
			return nil, fmt.Errorf("read alias table: %w", err)
		}
		var extra map[string]string
		if err := json.Unmarshal(data, &extra); err != nil {
			return nil, fmt.Errorf("parse alias table %s: %w", c.AliasPath, err)
		}
		// File entries extend and override the built-in table.
		for from, to := range extra {
			table[strings.ToUpper(strings.TrimSpace(from))] = strings.ToUpper(strings.TrimSpace(to))
		}
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
