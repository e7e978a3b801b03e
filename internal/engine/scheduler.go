package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopradar/shopradar/internal/common"
	"github.com/shopradar/shopradar/internal/model"
	"github.com/shopradar/shopradar/internal/service"
)

// errStopped aborts a candidate's state machine when the scheduler has
// already collected enough results.
var errStopped = errors.New("enrichment stopped")

// candidateStatus records how a candidate's state machine ended.
type candidateStatus string

const (
	statusDone     candidateStatus = "DONE"
	statusSkipped  candidateStatus = "SKIPPED"
	statusFailed   candidateStatus = "FAILED"
	statusCanceled candidateStatus = "CANCELED"
)

// workResult is one candidate's outcome, delivered in completion order.
type workResult struct {
	shop        *model.EnrichedShop // set only for statusDone
	candidateID string
	status      candidateStatus
}

// stopSignal is a one-way latch that tells workers to stop admitting work.
// It is separate from the request context on purpose: flipping it must not
// abort fetches already in flight, only prevent new ones from starting.
type stopSignal struct {
	ch   chan struct{}
	once sync.Once
}

func newStopSignal() *stopSignal {
	return &stopSignal{ch: make(chan struct{})}
}

func (s *stopSignal) Stop() {
	s.once.Do(func() { close(s.ch) })
}

func (s *stopSignal) Stopped() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// schedule runs the per-candidate state machine across a bounded worker
// pool and collects outcomes in completion order. Once DesiredCount shops
// have been collected it stops admitting candidates and lets in-flight work
// drain; surplus results are dropped. Pool exhaustion before the target is
// reached returns whatever was collected, never an error.
func (e *Engine) schedule(ctx context.Context, candidates []model.Candidate, req model.SearchRequest) []*model.EnrichedShop {
	workChan := make(chan model.Candidate, len(candidates))
	for _, candidate := range candidates {
		workChan <- candidate
	}
	close(workChan)

	resultsChan := make(chan workResult, len(candidates))
	stop := newStopSignal()

	var wg sync.WaitGroup
	wg.Add(e.config.MaxWorkers)

	for i := 0; i < e.config.MaxWorkers; i++ {
		go func(workerID int) {
			defer wg.Done()
			e.enrichmentWorker(ctx, workerID, workChan, resultsChan, req, stop)
		}(i)
	}

	// Close results once all workers have drained.
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	collected := make([]*model.EnrichedShop, 0, req.DesiredCount)
	for result := range resultsChan {
		if result.status != statusDone || result.shop == nil {
			continue
		}
		if len(collected) >= req.DesiredCount {
			// Target already met; this fetch was mid-flight when the stop
			// latch flipped and its result is discarded.
			slog.Debug("Dropping surplus enrichment result",
				"candidate_id", result.candidateID)
			continue
		}

		collected = append(collected, result.shop)
		if e.Progress != nil {
			e.Progress(len(collected), req.DesiredCount)
		}

		if len(collected) >= req.DesiredCount {
			stop.Stop()
		}
	}

	return collected
}

// enrichmentWorker runs candidates' state machines sequentially until the
// work channel is drained, the stop latch flips, or the context ends.
func (e *Engine) enrichmentWorker(
	ctx context.Context,
	workerID int,
	workChan <-chan model.Candidate,
	resultsChan chan<- workResult,
	req model.SearchRequest,
	stop *stopSignal,
) {
	for candidate := range workChan {
		if stop.Stopped() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		result := e.processCandidate(ctx, candidate, req, stop)

		slog.Debug("candidate processed",
			"worker_id", workerID,
			"candidate_id", result.candidateID,
			"status", result.status)

		resultsChan <- result
	}
}

// processCandidate drives one candidate through the enrichment state
// machine: cache resolution, then (on miss) fetch with retry, scoring,
// summary and cache write.
func (e *Engine) processCandidate(ctx context.Context, candidate model.Candidate, req model.SearchRequest, stop *stopSignal) workResult {
	id := candidate.Fingerprint()
	result := workResult{candidateID: id}

	// RESOLVING
	if record := e.resolveCache(ctx, id, req.SampleSize); record != nil {
		shop, err := e.enrichFromCache(ctx, record, req.SampleSize)
		if err != nil {
			slog.Error("Scoring cached reviews failed",
				"candidate_id", id,
				"error", err)
			result.status = statusFailed
			return result
		}
		result.shop = shop
		result.status = statusDone
		return result
	}

	// FETCHING
	reviews, fetchErr := e.fetchWithRetry(ctx, id, req.SampleSize, stop)
	switch {
	case fetchErr == nil:
		// fall through to scoring
	case errors.Is(fetchErr, errStopped):
		result.status = statusCanceled
		return result
	default:
		if fe, ok := service.AsFetchError(fetchErr); ok && fe.Kind == service.FetchEmpty {
			e.writeNegative(ctx, id)
			result.status = statusSkipped
			return result
		}
		// Transient failures that exhausted their retries also earn a
		// cooldown so the next request does not immediately re-attempt.
		if fe, ok := service.AsFetchError(fetchErr); ok && fe.Transient() {
			e.writeNegative(ctx, id)
		}
		slog.Warn("Review fetch failed",
			"candidate_id", id,
			"error", fetchErr)
		result.status = statusFailed
		return result
	}

	reviews = reviews.Dedupe()
	reviews.SortByDateDesc()
	reviews = reviews.Truncate(req.SampleSize)

	texts := reviews.Texts()
	if len(texts) == 0 {
		e.writeNegative(ctx, id)
		result.status = statusSkipped
		return result
	}

	// SCORING. Oracle failures are not cached so the candidate is retried
	// on the next request instead of suppressed.
	prediction, err := e.oracle.Score(ctx, texts)
	if err != nil {
		slog.Error("Scoring oracle failed",
			"candidate_id", id,
			"review_count", len(texts),
			"error", err)
		result.status = statusFailed
		return result
	}

	summary, err := e.oracle.Summarize(ctx, texts)
	if err != nil {
		slog.Warn("Summary generation failed",
			"candidate_id", id,
			"error", err)
		summary = ""
	}

	// CACHE_WRITE
	e.writePositive(ctx, candidate, reviews, prediction, summary)

	result.shop = &model.EnrichedShop{
		Candidate:   candidate,
		Reviews:     reviews,
		Summary:     summary,
		Explanation: prediction.Explanation,
		ReviewCount: len(reviews),
		RawRating:   prediction.Rating,
	}
	result.status = statusDone
	return result
}

// fetchWithRetry fetches reviews with per-attempt timeout and exponential
// backoff. Transient failures (timeout, unavailable) are retried up to
// MaxRetries; empty and unclassified failures are permanent. The stop latch
// is checked at attempt boundaries only, so a running fetch always
// completes its attempt.
func (e *Engine) fetchWithRetry(ctx context.Context, candidateID string, sampleSize int, stop *stopSignal) (model.Reviews, error) {
	var (
		reviews model.Reviews
		lastErr error
	)

	retryErr := common.WithRetry(ctx, func() error {
		if stop.Stopped() {
			lastErr = errStopped
			return &common.RetryableError{Err: errStopped, Retryable: false}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
		defer cancel()

		fetched, err := e.source.FetchReviews(attemptCtx, candidateID, sampleSize)
		if err == nil {
			reviews = fetched
			lastErr = nil
			return nil
		}

		// A deadline expiry that the source did not classify itself is a
		// timeout, which is transient.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			if _, ok := service.AsFetchError(err); !ok {
				err = &service.FetchError{Kind: service.FetchTimeout, Err: err}
			}
		}

		lastErr = err
		if fe, ok := service.AsFetchError(err); ok {
			return &common.RetryableError{Err: err, Retryable: fe.Transient()}
		}
		return &common.RetryableError{Err: err, Retryable: false}
	}, service.RetryOptions{
		MaxAttempts:  e.config.MaxRetries,
		InitialDelay: e.config.RetryBaseDelay,
		MaxDelay:     10 * time.Minute,
		Multiplier:   2.0,
	})

	if retryErr == nil {
		return reviews, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, retryErr
}

// writeNegative records a nothing-useful-here marker; failures are logged,
// not surfaced, since the marker is an optimization.
func (e *Engine) writeNegative(ctx context.Context, candidateID string) {
	record := &model.NegativeCacheRecord{
		ID:      candidateID,
		AddedAt: time.Now().UTC(),
	}
	if err := e.cache.PutNegative(ctx, record); err != nil {
		slog.Warn("Failed to write negative cache record",
			"candidate_id", candidateID,
			"error", err)
	}
}

// writePositive persists a successful enrichment for reuse by later
// requests. Failures are logged and the result is still returned.
func (e *Engine) writePositive(ctx context.Context, candidate model.Candidate, reviews model.Reviews, prediction service.Prediction, summary string) {
	record := &model.PositiveCacheRecord{
		ID:              candidate.Fingerprint(),
		Name:            candidate.Name,
		Address:         candidate.Address,
		Rating:          candidate.Rating,
		Lat:             candidate.Lat,
		Lng:             candidate.Lng,
		Summary:         summary,
		Explanation:     prediction.Explanation,
		PredictedRating: prediction.Rating,
		Reviews:         reviews,
		CachedAt:        time.Now().UTC(),
	}
	if err := e.cache.PutPositive(ctx, record); err != nil {
		slog.Warn("Failed to write positive cache record",
			"candidate_id", record.ID,
			"error", err)
	}
}
