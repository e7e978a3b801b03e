// Package places adapts the Google Places API to the pipeline's PlaceSearch
// and ReviewSource contracts.
package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	places "google.golang.org/api/places/v1"

	"github.com/shopradar/shopradar/internal/common"
	"github.com/shopradar/shopradar/internal/model"
	"github.com/shopradar/shopradar/internal/service"
)

const (
	// searchFieldMask selects candidate-level fields on text search. The
	// page token must be requested explicitly or pagination stops early.
	searchFieldMask = "places.id,places.displayName,places.formattedAddress,places.rating,places.location,nextPageToken"
	// reviewFieldMask selects the review payload on place details.
	reviewFieldMask = "id,reviews"

	// searchPageSize is the Places API ceiling per text-search page.
	searchPageSize = 20
	// maxSearchPages caps how far Search follows next-page tokens.
	maxSearchPages = 3
)

// errPagesDone halts the page iterator once maxSearchPages is reached.
var errPagesDone = errors.New("search pagination done")

// Config holds Places API client configuration.
type Config struct {
	APIKey   string
	Endpoint string // overrides the API base URL, empty for production
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: places API key", common.ErrMissingConfig)
	}
	return nil
}

// Client wraps the Places API service.
type Client struct {
	svc *places.Service
}

// NewClient creates a Places API client authenticated with an API key.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := places.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create places service: %w", err)
	}

	return &Client{svc: svc}, nil
}

// Search finds shops matching the query near a location, following
// next-page tokens up to maxSearchPages. Results missing an id or a rating
// are dropped, and the radius is enforced with a distance check because the
// API treats the circle as a bias, not a filter.
func (c *Client) Search(ctx context.Context, query string, lat, lng float64, radiusMeters int) ([]model.Candidate, error) {
	req := &places.GoogleMapsPlacesV1SearchTextRequest{
		TextQuery: query + " store",
		PageSize:  searchPageSize,
		LocationBias: &places.GoogleMapsPlacesV1SearchTextRequestLocationBias{
			Circle: &places.GoogleMapsPlacesV1Circle{
				Center: &places.GoogleTypeLatLng{
					Latitude:  lat,
					Longitude: lng,
				},
				Radius: float64(radiusMeters),
			},
		},
	}

	call := c.svc.Places.SearchText(req)
	call.Header().Set("X-Goog-FieldMask", searchFieldMask)

	var (
		candidates []model.Candidate
		returned   int
		pages      int
	)
	err := call.Pages(ctx, func(resp *places.GoogleMapsPlacesV1SearchTextResponse) error {
		returned += len(resp.Places)
		for _, place := range resp.Places {
			if place.Id == "" || place.Rating == 0 {
				continue
			}

			candidate := model.Candidate{
				ID:      place.Id,
				Address: place.FormattedAddress,
				Rating:  place.Rating,
			}
			if place.DisplayName != nil {
				candidate.Name = place.DisplayName.Text
			}
			if place.Location != nil {
				candidate.Lat = place.Location.Latitude
				candidate.Lng = place.Location.Longitude
			}

			if Distance(lat, lng, candidate.Lat, candidate.Lng) > float64(radiusMeters) {
				continue
			}

			candidates = append(candidates, candidate)
		}

		pages++
		if pages >= maxSearchPages {
			return errPagesDone
		}
		return nil
	})
	if err != nil && !errors.Is(err, errPagesDone) {
		return nil, fmt.Errorf("place search failed: %w", err)
	}

	slog.Debug("place search complete",
		"query", query,
		"pages", pages,
		"returned", returned,
		"kept", len(candidates))

	return candidates, nil
}

// FetchReviews retrieves reviews for one candidate from place details.
// Failures are mapped onto the pipeline's fetch-failure kinds so the
// scheduler can decide retryability from data rather than error shape.
func (c *Client) FetchReviews(ctx context.Context, candidateID string, maxReviews int) (model.Reviews, error) {
	call := c.svc.Places.Get("places/" + candidateID).Context(ctx)
	call.Header().Set("X-Goog-FieldMask", reviewFieldMask)

	place, err := call.Do()
	if err != nil {
		return nil, mapFetchError(err)
	}

	reviews := make(model.Reviews, 0, len(place.Reviews))
	for _, review := range place.Reviews {
		record := model.ReviewRecord{
			Rating: review.Rating,
		}
		if review.AuthorAttribution != nil {
			record.Author = review.AuthorAttribution.DisplayName
		}
		if review.Text != nil {
			record.Text = review.Text.Text
		}
		if review.PublishTime != "" {
			if published, parseErr := time.Parse(time.RFC3339, review.PublishTime); parseErr == nil {
				record.PublishedAt = published
			}
		}
		if record.Text == "" {
			continue
		}
		reviews = append(reviews, record)
	}

	if len(reviews) == 0 {
		return nil, &service.FetchError{Kind: service.FetchEmpty}
	}

	reviews = reviews.Dedupe()
	reviews.SortByDateDesc()
	return reviews.Truncate(maxReviews), nil
}

// mapFetchError translates transport failures into fetch-failure kinds.
func mapFetchError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &service.FetchError{Kind: service.FetchTimeout, Err: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 404:
			return &service.FetchError{Kind: service.FetchEmpty, Err: err}
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return &service.FetchError{Kind: service.FetchUnavailable, Err: err}
		}
	}

	return fmt.Errorf("place details failed: %w", err)
}
