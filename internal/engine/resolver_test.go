package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopradar/shopradar/internal/model"
)

func cachedRecord(id string, reviewCount int, age time.Duration) *model.PositiveCacheRecord {
	return &model.PositiveCacheRecord{
		ID:              id,
		Name:            "Cached Shop",
		Address:         "2 Cache Rd",
		Rating:          4.5,
		Lat:             52.52,
		Lng:             13.405,
		Summary:         "stored summary",
		Explanation:     "stored explanation",
		PredictedRating: 4.1,
		Reviews:         testReviews(id, reviewCount),
		CachedAt:        time.Now().UTC().Add(-age),
	}
}

func TestResolveCache(t *testing.T) {
	tests := []struct {
		name    string
		record  *model.PositiveCacheRecord
		wantHit bool
	}{
		{
			name:    "fresh record with enough reviews",
			record:  cachedRecord("a-place", 10, time.Hour),
			wantHit: true,
		},
		{
			name:    "expired record",
			record:  cachedRecord("a-place", 10, 8*24*time.Hour),
			wantHit: false,
		},
		{
			name:    "too few stored reviews",
			record:  cachedRecord("a-place", 3, time.Hour),
			wantHit: false,
		},
		{
			name:    "absent record",
			record:  nil,
			wantHit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := newMemCacheStore()
			if tt.record != nil {
				require.NoError(t, cache.PutPositive(context.Background(), tt.record))
			}
			engine := NewWithConfig(&mockPlaceSearch{}, newMockReviewSource(), newMockOracle(), cache, testConfig(1))

			record := engine.resolveCache(context.Background(), "a-place", 5)
			if tt.wantHit {
				assert.NotNil(t, record)
			} else {
				assert.Nil(t, record)
			}
		})
	}
}

func TestResolveCacheLookupErrorIsMiss(t *testing.T) {
	cache := newMemCacheStore()
	cache.getErr = errors.New("db locked")
	engine := NewWithConfig(&mockPlaceSearch{}, newMockReviewSource(), newMockOracle(), cache, testConfig(1))

	assert.Nil(t, engine.resolveCache(context.Background(), "a-place", 5))
}

func TestEnrichFromCache(t *testing.T) {
	cache := newMemCacheStore()
	oracle := newMockOracle()
	engine := NewWithConfig(&mockPlaceSearch{}, newMockReviewSource(), oracle, cache, testConfig(1))

	record := cachedRecord("a-place", 10, time.Hour)
	shop, err := engine.enrichFromCache(context.Background(), record, 5)
	require.NoError(t, err)

	assert.True(t, shop.FromCache)
	assert.Equal(t, "a-place", shop.ID)
	assert.Equal(t, "stored summary", shop.Summary, "stored summary is reused, not regenerated")
	assert.Equal(t, 5, shop.ReviewCount, "stored reviews truncated to the requested sample")
	assert.Equal(t, 1, oracle.calls(), "cached reviews are re-scored once")

	// Stored record keeps all ten reviews.
	assert.Len(t, record.Reviews, 10)
}

func TestCacheHitSkipsFetch(t *testing.T) {
	candidates := testCandidates(1)
	cache := newMemCacheStore()
	require.NoError(t, cache.PutPositive(context.Background(),
		cachedRecord(candidates[0].ID, 10, time.Hour)))

	source := newMockReviewSource()
	oracle := newMockOracle()
	engine := NewWithConfig(&mockPlaceSearch{candidates: candidates}, source, oracle, cache, testConfig(1))

	result := engine.processCandidate(context.Background(), candidates[0], testRequest().Normalize(), newStopSignal())

	assert.Equal(t, statusDone, result.status)
	require.NotNil(t, result.shop)
	assert.True(t, result.shop.FromCache)
	assert.Zero(t, source.callCount(candidates[0].ID), "cache hit must not fetch")
	assert.Equal(t, 1, oracle.calls())
}
