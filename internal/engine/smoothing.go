package engine

import (
	"math"

	"github.com/shopradar/shopradar/internal/model"
)

// ApplyBayesianRating blends a raw predicted rating with a global average
// using m-estimate smoothing: (raw*count + globalAvg*m) / (count + m).
// A zero review count collapses to the global average, so a single extreme
// review cannot dominate the ranking.
func ApplyBayesianRating(raw float64, reviewCount int, globalAvg, priorWeight float64) float64 {
	smoothed := (raw*float64(reviewCount) + globalAvg*priorWeight) / (float64(reviewCount) + priorWeight)
	return math.Round(smoothed*100) / 100
}

// smoothRatings computes the batch-wide prior and rewrites each shop's
// PredictedRating with the smoothed value. The raw oracle output stays in
// RawRating and is never returned as the ranking score.
func (e *Engine) smoothRatings(shops []*model.EnrichedShop) {
	globalAvg := e.batchGlobalAverage(shops)

	for _, shop := range shops {
		shop.PredictedRating = ApplyBayesianRating(
			shop.RawRating, shop.ReviewCount, globalAvg, e.config.PriorWeight)
	}
}

// batchGlobalAverage is the mean of the batch's positive raw ratings, or
// the configured fallback when the batch has none.
func (e *Engine) batchGlobalAverage(shops []*model.EnrichedShop) float64 {
	var sum float64
	var count int
	for _, shop := range shops {
		if shop.RawRating > 0 {
			sum += shop.RawRating
			count++
		}
	}
	if count == 0 {
		return e.config.GlobalAvgFallback
	}
	return sum / float64(count)
}
