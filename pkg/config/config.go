// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application-level settings. Database settings live in
// pkg/database and are loaded separately.
type Config struct {
	// Env is the deployment environment name (local, staging, production).
	Env string
	// Host and Port are the HTTP listen address.
	Host string
	Port int
	// Debug enables verbose logging and gin debug mode.
	Debug bool
	// ConnectorURL is the outbound endpoint rendered replies are POSTed
	// to. Empty disables delivery (intents are logged and dropped).
	ConnectorURL string
	// RenderWorkers is the size of the outbound delivery pool.
	RenderWorkers int
	// DelayTick is how often the delay scheduler scans for due timers.
	DelayTick time.Duration
	// LokiURL enables shipping logs to Loki when set.
	LokiURL string
	// Tracing settings, passed through to the telemetry provider.
	TracingEnabled  bool
	TracingExporter string
	TracingEndpoint string
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	port, err := intFromEnv("PORT", 8018)
	if err != nil {
		return Config{}, err
	}
	workers, err := intFromEnv("RENDER_WORKERS", 4)
	if err != nil {
		return Config{}, err
	}
	tickSeconds, err := intFromEnv("DELAY_TICK_SECONDS", 20)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Env:             getEnvOrDefault("APP_ENV", "local"),
		Host:            getEnvOrDefault("HOST", "0.0.0.0"),
		Port:            port,
		Debug:           boolFromEnv("DEBUG"),
		ConnectorURL:    os.Getenv("CONNECTOR_URL"),
		RenderWorkers:   workers,
		DelayTick:       time.Duration(tickSeconds) * time.Second,
		LokiURL:         os.Getenv("LOKI_URL"),
		TracingEnabled:  boolFromEnv("TRACING_ENABLED"),
		TracingExporter: getEnvOrDefault("TRACING_EXPORTER", "otlp"),
		TracingEndpoint: os.Getenv("TRACING_ENDPOINT"),
	}, nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func intFromEnv(key string, defaultVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return val, nil
}

func boolFromEnv(key string) bool {
	val, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && val
}
