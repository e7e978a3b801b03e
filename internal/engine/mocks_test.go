package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopradar/shopradar/internal/model"
	"github.com/shopradar/shopradar/internal/service"
)

// mockPlaceSearch returns a fixed candidate list.
type mockPlaceSearch struct {
	candidates []model.Candidate
	err        error
}

func (m *mockPlaceSearch) Search(_ context.Context, _ string, _, _ float64, _ int) ([]model.Candidate, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.candidates, nil
}

// fetchScript configures a mock source's behavior for one candidate.
// Failures are consumed in order; once exhausted the fetch succeeds with
// the configured reviews.
type fetchScript struct {
	reviews  model.Reviews
	failures []error
}

// mockReviewSource serves scripted fetches and instruments concurrency so
// tests can assert the worker bound.
type mockReviewSource struct {
	mu           sync.Mutex
	scripts      map[string]*fetchScript
	delay        time.Duration
	calls        map[string]int
	inFlight     int
	maxInFlight  int
	totalFetches int
}

func newMockReviewSource() *mockReviewSource {
	return &mockReviewSource{
		scripts: make(map[string]*fetchScript),
		calls:   make(map[string]int),
	}
}

func (m *mockReviewSource) script(id string, script *fetchScript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[id] = script
}

func (m *mockReviewSource) FetchReviews(ctx context.Context, candidateID string, maxReviews int) (model.Reviews, error) {
	m.mu.Lock()
	m.calls[candidateID]++
	m.totalFetches++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	script := m.scripts[candidateID]
	var failure error
	if script != nil && len(script.failures) > 0 {
		failure = script.failures[0]
		script.failures = script.failures[1:]
	}
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			m.mu.Lock()
			m.inFlight--
			m.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()

	if failure != nil {
		return nil, failure
	}
	if script == nil || len(script.reviews) == 0 {
		return nil, &service.FetchError{Kind: service.FetchEmpty}
	}

	reviews := make(model.Reviews, len(script.reviews))
	copy(reviews, script.reviews)
	return reviews.Truncate(maxReviews), nil
}

func (m *mockReviewSource) callCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

// mockOracle scores batches with a fixed per-candidate rating, keyed by the
// first review text, and counts invocations.
type mockOracle struct {
	mu         sync.Mutex
	ratings    map[string]float64 // first text -> rating
	defaultVal float64
	scoreErr   error
	scoreCalls int
}

func newMockOracle() *mockOracle {
	return &mockOracle{
		ratings:    make(map[string]float64),
		defaultVal: 4.0,
	}
}

func (m *mockOracle) Score(_ context.Context, texts []string) (service.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoreCalls++

	if m.scoreErr != nil {
		return service.Prediction{}, m.scoreErr
	}
	if len(texts) == 0 {
		return service.Prediction{}, nil
	}

	rating := m.defaultVal
	if r, ok := m.ratings[texts[0]]; ok {
		rating = r
	}
	return service.Prediction{
		Rating:      rating,
		Explanation: fmt.Sprintf("scored %d reviews", len(texts)),
	}, nil
}

func (m *mockOracle) Summarize(_ context.Context, texts []string) (string, error) {
	if len(texts) == 0 {
		return "No reviews.", nil
	}
	return fmt.Sprintf("%d reviews summarized", len(texts)), nil
}

func (m *mockOracle) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scoreCalls
}

// memCacheStore is an in-memory CacheStore for tests.
type memCacheStore struct {
	mu       sync.Mutex
	positive map[string]*model.PositiveCacheRecord
	negative map[string]*model.NegativeCacheRecord
	getErr   error
}

func newMemCacheStore() *memCacheStore {
	return &memCacheStore{
		positive: make(map[string]*model.PositiveCacheRecord),
		negative: make(map[string]*model.NegativeCacheRecord),
	}
}

func (m *memCacheStore) GetPositive(_ context.Context, id string, ttl time.Duration) (*model.PositiveCacheRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	record, ok := m.positive[id]
	if !ok || time.Since(record.CachedAt) >= ttl {
		return nil, nil
	}
	return record, nil
}

func (m *memCacheStore) PutPositive(_ context.Context, record *model.PositiveCacheRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positive[record.ID] = record
	return nil
}

func (m *memCacheStore) GetNegative(_ context.Context, id string, ttl time.Duration) (*model.NegativeCacheRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	record, ok := m.negative[id]
	if !ok || !record.Suppresses(time.Now(), ttl) {
		return nil, nil
	}
	return record, nil
}

func (m *memCacheStore) PutNegative(_ context.Context, record *model.NegativeCacheRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.negative[record.ID] = record
	return nil
}

func (m *memCacheStore) DeleteExpired(_ context.Context, _, _ time.Duration) (int64, error) {
	return 0, nil
}

func (m *memCacheStore) Close() error { return nil }

func (m *memCacheStore) hasNegative(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.negative[id]
	return ok
}

func (m *memCacheStore) hasPositive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.positive[id]
	return ok
}

// testReviews builds n reviews for a candidate with descending ages.
func testReviews(prefix string, n int) model.Reviews {
	reviews := make(model.Reviews, n)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		reviews[i] = model.ReviewRecord{
			Author:      fmt.Sprintf("%s-author-%d", prefix, i),
			Text:        fmt.Sprintf("%s review %d", prefix, i),
			Rating:      4,
			PublishedAt: base.Add(-time.Duration(i) * 24 * time.Hour),
		}
	}
	return reviews
}
