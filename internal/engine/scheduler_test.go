package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopradar/shopradar/internal/service"
)

func TestScheduleConcurrencyBound(t *testing.T) {
	candidates := testCandidates(10)
	source := newMockReviewSource()
	source.delay = 20 * time.Millisecond
	for _, c := range candidates {
		source.script(c.ID, &fetchScript{reviews: testReviews(c.ID, 5)})
	}

	engine := NewWithConfig(&mockPlaceSearch{candidates: candidates}, source, newMockOracle(), newMemCacheStore(), testConfig(3))

	req := testRequest().Normalize()
	req.DesiredCount = 10

	shops := engine.schedule(context.Background(), candidates, req)
	require.Len(t, shops, 10)

	assert.LessOrEqual(t, source.maxInFlight, 3, "fetch concurrency must stay within the worker bound")
}

func TestScheduleEarlyExit(t *testing.T) {
	// 10 candidates, 2 workers, 3 desired. Once 3 results are collected no
	// further candidates are admitted, so well under 10 fetches happen.
	candidates := testCandidates(10)
	source := newMockReviewSource()
	source.delay = 10 * time.Millisecond
	for _, c := range candidates {
		source.script(c.ID, &fetchScript{reviews: testReviews(c.ID, 5)})
	}

	engine := NewWithConfig(&mockPlaceSearch{candidates: candidates}, source, newMockOracle(), newMemCacheStore(), testConfig(2))

	req := testRequest().Normalize()
	req.DesiredCount = 3

	shops := engine.schedule(context.Background(), candidates, req)
	assert.Len(t, shops, 3)

	source.mu.Lock()
	fetches := source.totalFetches
	source.mu.Unlock()
	assert.Less(t, fetches, 10, "stop latch should prevent admitting every candidate")
}

func TestScheduleStopDropsSurplusResults(t *testing.T) {
	// With more workers than the desired count, several fetches are in
	// flight when the latch flips; surplus results are dropped, never
	// appended past the target.
	candidates := testCandidates(8)
	source := newMockReviewSource()
	source.delay = 5 * time.Millisecond
	for _, c := range candidates {
		source.script(c.ID, &fetchScript{reviews: testReviews(c.ID, 5)})
	}

	engine := NewWithConfig(&mockPlaceSearch{candidates: candidates}, source, newMockOracle(), newMemCacheStore(), testConfig(8))

	req := testRequest().Normalize()
	req.DesiredCount = 2

	shops := engine.schedule(context.Background(), candidates, req)
	assert.Len(t, shops, 2)
}

func TestScheduleProgressCallback(t *testing.T) {
	candidates := testCandidates(4)
	source := newMockReviewSource()
	for _, c := range candidates {
		source.script(c.ID, &fetchScript{reviews: testReviews(c.ID, 5)})
	}

	engine := NewWithConfig(&mockPlaceSearch{candidates: candidates}, source, newMockOracle(), newMemCacheStore(), testConfig(1))

	var calls []int
	engine.Progress = func(collected, desired int) {
		calls = append(calls, collected)
	}

	req := testRequest().Normalize()
	req.DesiredCount = 4

	shops := engine.schedule(context.Background(), candidates, req)
	require.Len(t, shops, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, calls)
}

func TestProcessCandidateEmptyWritesNegative(t *testing.T) {
	candidates := testCandidates(1)
	source := newMockReviewSource() // no script: fetch reports empty
	cache := newMemCacheStore()

	engine := NewWithConfig(&mockPlaceSearch{candidates: candidates}, source, newMockOracle(), cache, testConfig(1))

	result := engine.processCandidate(context.Background(), candidates[0], testRequest().Normalize(), newStopSignal())

	assert.Equal(t, statusSkipped, result.status)
	assert.Nil(t, result.shop)
	assert.True(t, cache.hasNegative(candidates[0].ID))
	assert.Equal(t, 1, source.callCount(candidates[0].ID), "empty is permanent, no retries")
}

func TestProcessCandidateTransientRetrySucceeds(t *testing.T) {
	candidates := testCandidates(1)
	source := newMockReviewSource()
	source.script(candidates[0].ID, &fetchScript{
		reviews: testReviews("a", 5),
		failures: []error{
			&service.FetchError{Kind: service.FetchTimeout},
			&service.FetchError{Kind: service.FetchUnavailable},
		},
	})
	cache := newMemCacheStore()

	engine := NewWithConfig(&mockPlaceSearch{candidates: candidates}, source, newMockOracle(), cache, testConfig(1))

	result := engine.processCandidate(context.Background(), candidates[0], testRequest().Normalize(), newStopSignal())

	assert.Equal(t, statusDone, result.status)
	require.NotNil(t, result.shop)
	assert.Equal(t, 3, source.callCount(candidates[0].ID), "two transient failures then success")
	assert.False(t, cache.hasNegative(candidates[0].ID))
	assert.True(t, cache.hasPositive(candidates[0].ID))
}

func TestProcessCandidateTransientExhaustionWritesNegative(t *testing.T) {
	candidates := testCandidates(1)
	source := newMockReviewSource()
	source.script(candidates[0].ID, &fetchScript{
		reviews: testReviews("a", 5),
		failures: []error{
			&service.FetchError{Kind: service.FetchUnavailable},
			&service.FetchError{Kind: service.FetchUnavailable},
			&service.FetchError{Kind: service.FetchUnavailable},
		},
	})
	cache := newMemCacheStore()

	engine := NewWithConfig(&mockPlaceSearch{candidates: candidates}, source, newMockOracle(), cache, testConfig(1))

	result := engine.processCandidate(context.Background(), candidates[0], testRequest().Normalize(), newStopSignal())

	assert.Equal(t, statusFailed, result.status)
	assert.Equal(t, 3, source.callCount(candidates[0].ID))
	assert.True(t, cache.hasNegative(candidates[0].ID), "exhausted transient retries earn a cooldown")
}

func TestProcessCandidateOracleFailureNoCacheWrite(t *testing.T) {
	candidates := testCandidates(1)
	source := newMockReviewSource()
	source.script(candidates[0].ID, &fetchScript{reviews: testReviews("a", 5)})
	oracle := newMockOracle()
	oracle.scoreErr = errors.New("oracle unreachable")
	cache := newMemCacheStore()

	engine := NewWithConfig(&mockPlaceSearch{candidates: candidates}, source, oracle, cache, testConfig(1))

	result := engine.processCandidate(context.Background(), candidates[0], testRequest().Normalize(), newStopSignal())

	assert.Equal(t, statusFailed, result.status)
	assert.False(t, cache.hasPositive(candidates[0].ID), "oracle failure must not be cached")
	assert.False(t, cache.hasNegative(candidates[0].ID), "oracle failure must not suppress the candidate")
}

func TestProcessCandidateStoppedBeforeFetch(t *testing.T) {
	candidates := testCandidates(1)
	source := newMockReviewSource()
	source.script(candidates[0].ID, &fetchScript{reviews: testReviews("a", 5)})

	engine := NewWithConfig(&mockPlaceSearch{candidates: candidates}, source, newMockOracle(), newMemCacheStore(), testConfig(1))

	stop := newStopSignal()
	stop.Stop()

	result := engine.processCandidate(context.Background(), candidates[0], testRequest().Normalize(), stop)

	assert.Equal(t, statusCanceled, result.status)
	assert.Zero(t, source.callCount(candidates[0].ID))
}

func TestScheduleFullScenario(t *testing.T) {
	// Ten candidates, three workers, five desired. Two candidates are
	// permanently empty and one needs three attempts; exactly five distinct
	// shops come back regardless.
	candidates := testCandidates(10)
	source := newMockReviewSource()
	for i, c := range candidates {
		switch i {
		case 2, 7:
			// permanently empty: no script
		case 4:
			source.script(c.ID, &fetchScript{
				reviews: testReviews(c.ID, 5),
				failures: []error{
					&service.FetchError{Kind: service.FetchTimeout},
					&service.FetchError{Kind: service.FetchTimeout},
				},
			})
		default:
			source.script(c.ID, &fetchScript{reviews: testReviews(c.ID, 5)})
		}
	}
	cache := newMemCacheStore()

	engine := NewWithConfig(&mockPlaceSearch{candidates: candidates}, source, newMockOracle(), cache, testConfig(3))

	req := testRequest().Normalize()
	req.DesiredCount = 5

	shops := engine.schedule(context.Background(), candidates, req)
	require.Len(t, shops, 5)

	seen := make(map[string]bool)
	for _, shop := range shops {
		assert.False(t, seen[shop.ID], "duplicate shop %s", shop.ID)
		seen[shop.ID] = true
	}
}

func TestStopSignalIdempotent(t *testing.T) {
	stop := newStopSignal()
	assert.False(t, stop.Stopped())
	stop.Stop()
	stop.Stop() // second call must not panic
	assert.True(t, stop.Stopped())
}
