package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopradar/shopradar/internal/model"
)

// resolveCache decides whether cached data satisfies the request for one
// candidate. A hit requires an unexpired positive record holding at least
// sampleSize reviews; anything else (absent, expired, too few reviews,
// undecodable) is a miss and the caller proceeds to live enrichment.
func (e *Engine) resolveCache(ctx context.Context, candidateID string, sampleSize int) *model.PositiveCacheRecord {
	record, err := e.cache.GetPositive(ctx, candidateID, e.config.TTLPositive)
	if err != nil {
		slog.Warn("Positive cache lookup failed, treating as miss",
			"candidate_id", candidateID,
			"error", err)
		return nil
	}
	if record == nil {
		return nil
	}
	if !record.Valid(time.Now(), e.config.TTLPositive, sampleSize) {
		return nil
	}
	return record
}

// enrichFromCache re-derives a prediction from a cached record. The stored
// score is not reused: re-scoring the most recent sampleSize stored reviews
// lets the requested sample size change without re-fetching. The stored
// summary is kept as-is since it describes the same snapshot.
func (e *Engine) enrichFromCache(ctx context.Context, record *model.PositiveCacheRecord, sampleSize int) (*model.EnrichedShop, error) {
	reviews := make(model.Reviews, len(record.Reviews))
	copy(reviews, record.Reviews)
	reviews.SortByDateDesc()
	reviews = reviews.Truncate(sampleSize)

	prediction, err := e.oracle.Score(ctx, reviews.Texts())
	if err != nil {
		return nil, err
	}

	return &model.EnrichedShop{
		Candidate:   record.Candidate(),
		Reviews:     reviews,
		Summary:     record.Summary,
		Explanation: prediction.Explanation,
		ReviewCount: len(reviews),
		RawRating:   prediction.Rating,
		FromCache:   true,
	}, nil
}
