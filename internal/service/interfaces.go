// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopradar/shopradar/internal/model"
)

// PlaceSearch yields the initial candidate list for a query near a location.
type PlaceSearch interface {
	Search(ctx context.Context, query string, lat, lng float64, radiusMeters int) ([]model.Candidate, error)
}

// ReviewSource retrieves raw reviews for one candidate. Implementations must
// be safe to invoke concurrently for different candidates and make no
// ordering guarantee on the returned reviews; callers sort and truncate.
// Failures are reported as *FetchError so the scheduler can distinguish
// retryable from permanent outcomes.
type ReviewSource interface {
	FetchReviews(ctx context.Context, candidateID string, maxReviews int) (model.Reviews, error)
}

// Prediction is the scoring oracle's output for a batch of review texts.
type Prediction struct {
	Explanation string
	Rating      float64 // in [1, 5]; 0 for empty input
}

// ScoringOracle turns review texts into a predicted rating. Empty input
// yields the zero Prediction, never an error.
type ScoringOracle interface {
	Score(ctx context.Context, texts []string) (Prediction, error)
	Summarize(ctx context.Context, texts []string) (string, error)
}

// CacheStore is the keyed persistence contract for enrichment results.
// Positive and negative records live in separate namespaces keyed by the
// candidate fingerprint. Reads apply TTL at lookup time: an expired or
// undecodable record is reported as absent, not as an error.
type CacheStore interface {
	GetPositive(ctx context.Context, id string, ttl time.Duration) (*model.PositiveCacheRecord, error)
	PutPositive(ctx context.Context, record *model.PositiveCacheRecord) error
	GetNegative(ctx context.Context, id string, ttl time.Duration) (*model.NegativeCacheRecord, error)
	PutNegative(ctx context.Context, record *model.NegativeCacheRecord) error
	DeleteExpired(ctx context.Context, positiveTTL, negativeTTL time.Duration) (int64, error)
	Close() error
}

// FetchKind classifies review-fetch failures. Retryable versus permanent is
// a data distinction here rather than an error-type one.
type FetchKind string

// Fetch failure kinds.
const (
	FetchTimeout     FetchKind = "TIMEOUT"
	FetchUnavailable FetchKind = "UNAVAILABLE"
	FetchEmpty       FetchKind = "EMPTY"
)

// FetchError reports a failed review fetch with its kind.
type FetchError struct {
	Err  error
	Kind FetchKind
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s", e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure should be retried with backoff.
func (e *FetchError) Transient() bool {
	return e.Kind == FetchTimeout || e.Kind == FetchUnavailable
}

// AsFetchError unwraps err into a *FetchError if one is present.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
