// Package engine implements the core enrichment pipeline: candidate
// filtering, cache resolution, bounded-concurrency review enrichment, rating
// smoothing and result assembly.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopradar/shopradar/internal/model"
	"github.com/shopradar/shopradar/internal/service"
)

// Config holds configuration options for the enrichment engine.
type Config struct {
	MaxWorkers        int
	MaxRetries        int
	RetryBaseDelay    time.Duration
	FetchTimeout      time.Duration
	TTLPositive       time.Duration
	TTLNegative       time.Duration
	PriorWeight       float64 // pseudo-count m for bayesian smoothing
	GlobalAvgFallback float64 // global average when a batch has no ratings
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:        4,
		MaxRetries:        3,
		RetryBaseDelay:    5 * time.Second,
		FetchTimeout:      90 * time.Second,
		TTLPositive:       7 * 24 * time.Hour,
		TTLNegative:       24 * time.Hour,
		PriorWeight:       3,
		GlobalAvgFallback: 4.2,
	}
}

// normalize fills in zero values so a partially populated Config is usable.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = def.RetryBaseDelay
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.TTLPositive <= 0 {
		c.TTLPositive = def.TTLPositive
	}
	if c.TTLNegative <= 0 {
		c.TTLNegative = def.TTLNegative
	}
	if c.PriorWeight <= 0 {
		c.PriorWeight = def.PriorWeight
	}
	if c.GlobalAvgFallback <= 0 {
		c.GlobalAvgFallback = def.GlobalAvgFallback
	}
	return c
}

// Engine orchestrates enrichment of place-search candidates.
type Engine struct {
	places service.PlaceSearch
	source service.ReviewSource
	oracle service.ScoringOracle
	cache  service.CacheStore
	config Config

	// Progress, when set, is invoked after every collected outcome. Used by
	// the CLI for its progress bar; never called concurrently.
	Progress func(collected, desired int)
}

// New creates a new enrichment engine with the given dependencies.
func New(places service.PlaceSearch, source service.ReviewSource, oracle service.ScoringOracle, cache service.CacheStore) *Engine {
	return NewWithConfig(places, source, oracle, cache, DefaultConfig())
}

// NewWithConfig creates a new enrichment engine with custom configuration.
func NewWithConfig(places service.PlaceSearch, source service.ReviewSource, oracle service.ScoringOracle, cache service.CacheStore, config Config) *Engine {
	return &Engine{
		places: places,
		source: source,
		oracle: oracle,
		cache:  cache,
		config: config.normalize(),
	}
}

// Enrich runs the full pipeline for one request and returns up to
// DesiredCount shops ranked by smoothed predicted rating. Apart from invalid
// input, the pipeline never surfaces an error: partial failure degrades to a
// shorter (possibly empty) result list.
func (e *Engine) Enrich(ctx context.Context, req model.SearchRequest) ([]model.EnrichedShop, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	req = req.Normalize()

	slog.Info("Starting enrichment pipeline",
		"query", req.Query,
		"radius_m", req.RadiusMeters,
		"sample_size", req.SampleSize,
		"desired_count", req.DesiredCount)

	candidates, err := e.places.Search(ctx, req.Query, req.Lat, req.Lng, req.RadiusMeters)
	if err != nil {
		slog.Error("Place search failed", "query", req.Query, "error", err)
		return []model.EnrichedShop{}, nil
	}

	filtered := e.filterCandidates(ctx, candidates, req.SkipIDs)
	if len(filtered) == 0 {
		slog.Info("No candidates after filtering", "raw_count", len(candidates))
		return []model.EnrichedShop{}, nil
	}

	shops := e.schedule(ctx, filtered, req)

	e.smoothRatings(shops)

	results := assemble(shops, req.DesiredCount)

	slog.Info("Enrichment pipeline complete",
		"candidates", len(filtered),
		"enriched", len(shops),
		"returned", len(results))

	return results, nil
}
