// Package model defines the core domain models used throughout the application.
package model

import "fmt"

// Default request parameters.
const (
	DefaultSampleSize   = 10
	DefaultDesiredCount = 5
)

// SearchRequest holds one pipeline invocation's parameters. Instances are
// immutable once built; Normalize returns a copy with defaults applied.
type SearchRequest struct {
	Query        string
	SkipIDs      map[string]bool
	Lat          float64
	Lng          float64
	RadiusMeters int
	SampleSize   int
	DesiredCount int
}

// Validate rejects requests missing the fields the pipeline cannot run
// without. Invalid input is the only error the pipeline surfaces to callers.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query is required")
	}
	if r.Lat == 0 && r.Lng == 0 {
		return fmt.Errorf("location is required")
	}
	if r.RadiusMeters <= 0 {
		return fmt.Errorf("radius must be positive, got %d", r.RadiusMeters)
	}
	return nil
}

// Normalize returns a copy with defaults filled in for optional fields.
func (r SearchRequest) Normalize() SearchRequest {
	if r.SampleSize <= 0 {
		r.SampleSize = DefaultSampleSize
	}
	if r.DesiredCount <= 0 {
		r.DesiredCount = DefaultDesiredCount
	}
	if r.SkipIDs == nil {
		r.SkipIDs = map[string]bool{}
	}
	return r
}
