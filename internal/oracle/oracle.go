// Package oracle implements the scoring oracle: a trained rating model served
// over HTTP produces per-review ratings, and an LLM turns the raw signal into
// plain-language summaries and explanations.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/shopradar/shopradar/internal/common"
	"github.com/shopradar/shopradar/internal/service"
)

// Config holds scoring oracle configuration.
type Config struct {
	ModelURL          string
	OpenAIAPIKey      string
	OpenAIModel       string
	RequestsPerMinute int
	CacheTTL          time.Duration
}

// Oracle implements service.ScoringOracle. Rating prediction and language
// generation are separate upstream services; both calls sit behind a shared
// rate limiter, and identical inputs are memoized so re-scoring a cached
// review snapshot does not re-bill.
type Oracle struct {
	predictor  *predictorClient
	summarizer summarizer
	limiter    *rateLimiter
	cache      *predictionCache
}

// summarizer generates free text from a prompt. Satisfied by the OpenAI
// client and by test fakes.
type summarizer interface {
	Generate(ctx context.Context, instruction, text string) (string, error)
}

// New creates a scoring oracle from configuration.
func New(cfg Config) (*Oracle, error) {
	if cfg.ModelURL == "" {
		return nil, fmt.Errorf("%w: oracle model URL", common.ErrMissingConfig)
	}

	predictor := newPredictorClient(cfg.ModelURL)

	var gen summarizer
	if cfg.OpenAIAPIKey != "" {
		gen = newOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}

	return &Oracle{
		predictor:  predictor,
		summarizer: gen,
		limiter:    newRateLimiter(cfg.RequestsPerMinute),
		cache:      newPredictionCache(cfg.CacheTTL),
	}, nil
}

// Close releases background resources.
func (o *Oracle) Close() {
	o.limiter.Close()
	o.cache.Close()
}

// Score predicts a rating in [1,5] for a batch of review texts and attaches
// a plain-language explanation. Empty input returns the zero prediction and
// never an error.
func (o *Oracle) Score(ctx context.Context, texts []string) (service.Prediction, error) {
	texts = nonEmpty(texts)
	if len(texts) == 0 {
		return service.Prediction{}, nil
	}

	key := cacheKey(texts)
	if cached, ok := o.cache.get(key); ok {
		return cached, nil
	}

	if err := o.limiter.wait(ctx); err != nil {
		return service.Prediction{}, err
	}

	ratings, err := o.predictor.Predict(ctx, texts)
	if err != nil {
		return service.Prediction{}, fmt.Errorf("%w: %v", common.ErrOracleFailed, err)
	}
	if len(ratings) == 0 {
		return service.Prediction{}, fmt.Errorf("%w: no ratings returned", common.ErrOracleFailed)
	}

	prediction := service.Prediction{
		Rating: round2(mean(ratings)),
	}
	prediction.Explanation = o.explain(ctx, texts, ratings)

	o.cache.set(key, prediction)
	return prediction, nil
}

// Summarize buckets reviews by predicted sentiment and asks the LLM to
// rewrite the digest in plain English. Degrades to the raw digest when no
// LLM is configured or the call fails.
func (o *Oracle) Summarize(ctx context.Context, texts []string) (string, error) {
	texts = nonEmpty(texts)
	if len(texts) == 0 {
		return "No reviews.", nil
	}

	if err := o.limiter.wait(ctx); err != nil {
		return "", err
	}

	ratings, err := o.predictor.Predict(ctx, texts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrOracleFailed, err)
	}

	raw := sentimentDigest(texts, ratings)
	if o.summarizer == nil {
		return raw, nil
	}

	summary, err := o.summarizer.Generate(ctx, "Rewrite in plain English.", raw)
	if err != nil {
		slog.Warn("Summary generation failed, using raw digest", "error", err)
		return raw, nil
	}
	return summary, nil
}

// explain produces the user-facing explanation for a prediction. An LLM
// failure degrades to the raw digest rather than failing the candidate.
func (o *Oracle) explain(ctx context.Context, texts []string, ratings []float64) string {
	raw := sentimentDigest(texts, ratings)
	if o.summarizer == nil {
		return raw
	}

	explanation, err := o.summarizer.Generate(ctx, "Explain simply why this review got its score.", raw)
	if err != nil {
		slog.Warn("Explanation generation failed, using raw digest", "error", err)
		return raw
	}
	return explanation
}

// sentimentDigest groups reviews into positive/neutral/negative buckets by
// predicted rating and assembles a short digest with two examples per bucket.
func sentimentDigest(texts []string, ratings []float64) string {
	var positive, neutral, negative []string
	for i, text := range texts {
		rating := 0.0
		if i < len(ratings) {
			rating = ratings[i]
		}
		switch {
		case rating >= 4:
			positive = append(positive, text)
		case rating > 2:
			neutral = append(neutral, text)
		default:
			negative = append(negative, text)
		}
	}

	var parts []string
	appendBucket := func(label string, bucket []string) {
		if len(bucket) == 0 {
			return
		}
		sample := strings.Join(bucket[:min(2, len(bucket))], "; ")
		if len(bucket) > 2 {
			sample += "..."
		}
		parts = append(parts, fmt.Sprintf("%d %s: %s", len(bucket), label, sample))
	}
	appendBucket("positive", positive)
	appendBucket("neutral", neutral)
	appendBucket("negative", negative)

	return strings.Join(parts, "\n")
}

func nonEmpty(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
