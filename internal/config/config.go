// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/shopradar/shopradar/internal/engine"
	"github.com/shopradar/shopradar/internal/oracle"
	"github.com/shopradar/shopradar/internal/places"
)

// DefaultDatabasePath is used when no database path is configured.
const DefaultDatabasePath = "~/.local/share/shopradar/shopradar.db"

// DatabasePath returns the configured cache database path, expanded.
func DatabasePath() string {
	path := viper.GetString("database.path")
	if path == "" {
		path = DefaultDatabasePath
	}
	return ExpandPath(path)
}

// LoadPlacesConfig loads Places API configuration from Viper and environment
// variables. It follows this precedence:
// 1. Viper configuration (from config file or SHOPRADAR_ env vars)
// 2. Direct environment variables (GOOGLE_API_KEY)
func LoadPlacesConfig() (places.Config, error) {
	config := places.Config{
		APIKey:   viper.GetString("places.api_key"),
		Endpoint: viper.GetString("places.endpoint"),
	}

	if config.APIKey == "" {
		config.APIKey = os.Getenv("GOOGLE_API_KEY")
	}

	if err := config.Validate(); err != nil {
		return places.Config{}, err
	}

	return config, nil
}

// LoadOracleConfig loads scoring oracle configuration from Viper and
// environment variables. The OpenAI key is optional; without it summaries
// fall back to the raw sentiment digest.
func LoadOracleConfig() oracle.Config {
	config := oracle.Config{
		ModelURL:          viper.GetString("oracle.model_url"),
		OpenAIAPIKey:      viper.GetString("oracle.openai_api_key"),
		OpenAIModel:       viper.GetString("oracle.openai_model"),
		RequestsPerMinute: viper.GetInt("oracle.requests_per_minute"),
	}

	if config.OpenAIAPIKey == "" {
		config.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}

	return config
}

// LoadEngineConfig loads pipeline configuration from Viper, falling back to
// engine defaults for anything unset.
func LoadEngineConfig() engine.Config {
	config := engine.DefaultConfig()

	if v := viper.GetInt("pipeline.max_workers"); v > 0 {
		config.MaxWorkers = v
	}
	if v := viper.GetInt("pipeline.max_retries"); v > 0 {
		config.MaxRetries = v
	}
	if v := viper.GetDuration("pipeline.retry_base_delay"); v > 0 {
		config.RetryBaseDelay = v
	}
	if v := viper.GetDuration("pipeline.fetch_timeout"); v > 0 {
		config.FetchTimeout = v
	}
	if v := viper.GetDuration("pipeline.ttl_positive"); v > 0 {
		config.TTLPositive = v
	}
	if v := viper.GetDuration("pipeline.ttl_negative"); v > 0 {
		config.TTLNegative = v
	}
	if v := viper.GetFloat64("pipeline.prior_weight"); v > 0 {
		config.PriorWeight = v
	}
	if v := viper.GetFloat64("pipeline.global_avg_fallback"); v > 0 {
		config.GlobalAvgFallback = v
	}

	return config
}

// CacheTTLs returns the configured cache TTLs used by the cleanup command.
func CacheTTLs() (positive, negative time.Duration) {
	cfg := LoadEngineConfig()
	return cfg.TTLPositive, cfg.TTLNegative
}
