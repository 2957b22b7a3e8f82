package llm

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"
)

// RateLimited wraps a model so calls wait for a token bucket. One limiter is
// shared by every run using the model.
type RateLimited struct {
	Model   llms.Model
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with a burst of one.
func NewRateLimited(model llms.Model, perMinute float64) *RateLimited {
	every := time.Duration(float64(time.Minute) / perMinute)
	return &RateLimited{
		Model:   model,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}

func (r *RateLimited) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Model.GenerateContent(ctx, messages, options...)
}

func (r *RateLimited) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, r, prompt, options...)
}
