package model

import (
	"crypto/sha256"
	"fmt"
)

// Candidate represents a shop returned by place search, before enrichment.
type Candidate struct {
	ID      string
	Name    string
	Address string
	Rating  float64 // coarse rating reported by the place provider
	Lat     float64
	Lng     float64
}

// Fingerprint returns the stable cache key for this candidate. The place
// provider's id is already stable, so it is used directly when present;
// otherwise a hash of the identifying fields stands in.
func (c *Candidate) Fingerprint() string {
	if c.ID != "" {
		return c.ID
	}
	data := fmt.Sprintf("%s:%s:%.6f:%.6f", c.Name, c.Address, c.Lat, c.Lng)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// EnrichedShop is the final output unit returned to the caller. Candidate is
// embedded so callers address identity fields directly (shop.ID, shop.Name).
// PredictedRating always carries the smoothed value; the raw oracle output
// is kept separately for tie-breaking and display.
type EnrichedShop struct {
	Candidate
	Reviews         Reviews
	Summary         string
	Explanation     string
	ReviewCount     int
	PredictedRating float64
	RawRating       float64
	FromCache       bool
}
