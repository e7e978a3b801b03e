package oracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// predictorClient talks to the rating model server. The model itself (a
// fine-tuned transformer feeding a gradient-boosted regressor) is a black
// box behind a small JSON endpoint.
type predictorClient struct {
	httpClient *http.Client
	baseURL    string
}

func newPredictorClient(baseURL string) *predictorClient {
	return &predictorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type predictRequest struct {
	Reviews []string `json:"reviews"`
}

type predictResponse struct {
	Ratings []float64 `json:"ratings"`
}

// Predict returns one predicted rating per input text, each in [1,5].
func (c *predictorClient) Predict(ctx context.Context, texts []string) ([]float64, error) {
	body, err := json.Marshal(predictRequest{Reviews: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed predictResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(parsed.Ratings) != len(texts) {
		return nil, fmt.Errorf("model server returned %d ratings for %d reviews", len(parsed.Ratings), len(texts))
	}

	for i, rating := range parsed.Ratings {
		if rating < 1 || rating > 5 {
			return nil, fmt.Errorf("rating %d out of range: %.2f", i, rating)
		}
	}

	return parsed.Ratings, nil
}
