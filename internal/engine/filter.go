package engine

import (
	"context"
	"log/slog"

	"github.com/shopradar/shopradar/internal/model"
)

// filterCandidates drops candidates the caller asked to skip and candidates
// under an unexpired negative-cache cooldown. Order is preserved and the
// input is not mutated. The view of the cache is the one at call time;
// races with concurrent writers are acceptable.
func (e *Engine) filterCandidates(ctx context.Context, candidates []model.Candidate, skipIDs map[string]bool) []model.Candidate {
	filtered := make([]model.Candidate, 0, len(candidates))

	for _, candidate := range candidates {
		id := candidate.Fingerprint()

		if skipIDs[id] {
			continue
		}

		marker, err := e.cache.GetNegative(ctx, id, e.config.TTLNegative)
		if err != nil {
			// A broken cache read must not drop the candidate.
			slog.Warn("Negative cache lookup failed",
				"candidate_id", id,
				"error", err)
		} else if marker != nil {
			slog.Debug("Skipping negatively cached candidate",
				"candidate_id", id,
				"added_at", marker.AddedAt)
			continue
		}

		filtered = append(filtered, candidate)
	}

	return filtered
}
