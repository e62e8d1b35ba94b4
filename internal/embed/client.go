// Package embed implements the Embedding Adapter: embed(text) -> vector
// and embed_batch(texts) -> vectors, with retry-with-backoff and
// L2-normalization of every returned vector.
package embed

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"pravachan-index/internal/config"
	"pravachan-index/internal/pkgerrors"
)

// Adapter is the capability set callers depend on. GoogleAdapter is the
// only implementation; the cmd entrypoints construct it directly and
// cfg.EmbeddingsProvider is not consulted.
type Adapter interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// GoogleAdapter is the default provider, backed by genai's embedding
// model.
type GoogleAdapter struct {
	cfg     *config.Config
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewGoogleAdapter(cfg *config.Config) *GoogleAdapter {
	return &GoogleAdapter{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "embedding-adapter",
			Timeout: 30 * time.Second,
		}),
	}
}

func (a *GoogleAdapter) Dimension() int {
	return a.cfg.EmbeddingDimensions
}

func (a *GoogleAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, pkgerrors.CancellationError("embedding rate limiter wait cancelled")
	}

	operation := func() ([]float32, error) {
		result, err := a.breaker.Execute(func() (interface{}, error) {
			return a.callOnce(ctx, text)
		})
		if err != nil {
			return nil, err
		}
		return result.([]float32), nil
	}

	vector, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(a.cfg.EmbeddingMaxRetries)),
	)
	if err != nil {
		return nil, pkgerrors.EmbeddingError("embedding call exhausted retries", err)
	}

	return l2Normalize(vector), nil
}

func (a *GoogleAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := a.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed_batch: item %d: %w", i, err)
		}
		out[i] = vector
	}
	return out, nil
}

func (a *GoogleAdapter) callOnce(ctx context.Context, text string) ([]float32, error) {
	if a.cfg.EmbeddingTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(a.cfg.EmbeddingTimeoutSec)*time.Second)
		defer cancel()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(a.cfg.GoogleAPIKey))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	model := client.EmbeddingModel(a.cfg.GoogleEmbeddingsModel)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embedding.Values, nil
}

// l2Normalize returns a unit-norm copy of vector, matching the universal
// invariant that every indexed chunk's vector has ‖v‖₂ ≈ 1.0.
func l2Normalize(vector []float32) []float32 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return vector
	}
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
