package engine

import (
	"sort"

	"github.com/shopradar/shopradar/internal/model"
)

// assemble orders enriched shops by smoothed rating descending and truncates
// to the desired count. Ties fall back to the raw rating, then to the
// candidate id, so output ordering is deterministic for fixed inputs.
func assemble(shops []*model.EnrichedShop, desiredCount int) []model.EnrichedShop {
	sorted := make([]*model.EnrichedShop, len(shops))
	copy(sorted, shops)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PredictedRating != sorted[j].PredictedRating {
			return sorted[i].PredictedRating > sorted[j].PredictedRating
		}
		if sorted[i].RawRating != sorted[j].RawRating {
			return sorted[i].RawRating > sorted[j].RawRating
		}
		return sorted[i].Candidate.Fingerprint() < sorted[j].Candidate.Fingerprint()
	})

	if desiredCount > 0 && len(sorted) > desiredCount {
		sorted = sorted[:desiredCount]
	}

	results := make([]model.EnrichedShop, len(sorted))
	for i, shop := range sorted {
		results[i] = *shop
	}
	return results
}
