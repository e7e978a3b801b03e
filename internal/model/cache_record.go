package model

import "time"

// PositiveCacheRecord is the cached enrichment result for one candidate.
// It snapshots the reviews that produced the derived fields so a later
// request can re-score them without re-fetching.
type PositiveCacheRecord struct {
	CachedAt        time.Time
	ID              string
	Name            string
	Address         string
	Summary         string
	Explanation     string
	Reviews         Reviews
	Rating          float64 // provider rating at enrichment time
	PredictedRating float64 // raw oracle output at enrichment time
	Lat             float64
	Lng             float64
}

// Valid reports whether the record is usable for a request wanting
// sampleSize reviews. Age is measured against CachedAt regardless of reads,
// and a record holding fewer reviews than requested counts as a miss even
// when unexpired.
func (p *PositiveCacheRecord) Valid(now time.Time, ttl time.Duration, sampleSize int) bool {
	if now.Sub(p.CachedAt) >= ttl {
		return false
	}
	return len(p.Reviews) >= sampleSize
}

// Candidate reconstructs the candidate fields stored in the record.
func (p *PositiveCacheRecord) Candidate() Candidate {
	return Candidate{
		ID:      p.ID,
		Name:    p.Name,
		Address: p.Address,
		Rating:  p.Rating,
		Lat:     p.Lat,
		Lng:     p.Lng,
	}
}

// NegativeCacheRecord marks a candidate that yielded nothing usable, so the
// pipeline skips it until the cooldown window passes.
type NegativeCacheRecord struct {
	AddedAt time.Time
	ID      string
}

// Suppresses reports whether the candidate should still be skipped.
func (n *NegativeCacheRecord) Suppresses(now time.Time, ttl time.Duration) bool {
	return now.Sub(n.AddedAt) < ttl
}
