package generator

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	domai "github.com/bryanwahyu/career-insight/internal/domain/ai"
	"github.com/bryanwahyu/career-insight/internal/domain/insights"
	"github.com/bryanwahyu/career-insight/internal/infra/ai/prompt"
)

const defaultTimeout = 60 * time.Second

// Generator implements insights.Generator: one completion call, strict parse, no retry.
type Generator struct {
	client  domai.Client
	limiter *rate.Limiter
	timeout time.Duration
}

type Option func(*Generator)

// WithRateLimit caps completion calls at rpm per minute with the given burst.
func WithRateLimit(rpm, burst int) Option {
	return func(g *Generator) {
		if rpm <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
	}
}

// WithTimeout bounds a single completion call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func New(client domai.Client, opts ...Option) *Generator {
	g := &Generator{client: client, timeout: defaultTimeout}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Generator) Produce(ctx context.Context, category string) (insights.Generation, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return insights.Generation{}, &insights.GenerationError{Reason: "category is empty"}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return insights.Generation{}, &insights.GenerationError{Category: category, Reason: "rate limiter", Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.client.Complete(ctx, prompt.InsightSystemPrompt(), prompt.InsightUserPrompt(category))
	if err != nil {
		return insights.Generation{}, &insights.GenerationError{Category: category, Reason: "completion failed", Err: err}
	}

	p, err := ParsePayload(raw)
	if err != nil {
		var ge *insights.GenerationError
		if errors.As(err, &ge) {
			ge.Category = category
		}
		return insights.Generation{}, err
	}
	return insights.Generation{Payload: p, Raw: raw}, nil
}
