package router

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/brandcraft/brandcraft/internal/cache"
	"github.com/brandcraft/brandcraft/internal/pricing"
	"github.com/brandcraft/brandcraft/internal/provider"
	"github.com/brandcraft/brandcraft/internal/task"
)

// Result is the normalized outcome of a routed call. It is immutable once
// returned; the router keeps no reference to it.
type Result struct {
	Task      task.Task           `json:"task"`
	Provider  string              `json:"provider"`
	Model     string              `json:"model"`
	Text      string              `json:"text,omitempty"`
	ImageRef  string              `json:"image_url,omitempty"`
	Sentiment *provider.Sentiment `json:"sentiment,omitempty"`
	Usage     provider.Usage      `json:"usage"`
	Cost      decimal.Decimal     `json:"cost_estimate"`

	// Cached marks a cache hit so callers can skip double-billing; it is
	// not serialized, keeping cached responses byte-identical.
	Cached bool `json:"-"`
}

// Chains holds the static, ordered provider preference per task. Order is
// configuration, not runtime-computed: first-success-wins with ordered
// preference, never fastest-wins.
type Chains struct {
	Text      map[task.Task][]provider.TextGenerator
	Images    []provider.ImageGenerator
	Sentiment provider.SentimentClassifier
}

// Router owns the adapter chains, the response cache and the price table.
// It is an explicitly constructed value with no package-level state, so
// tests run it against mock adapters.
type Router struct {
	chains   Chains
	cache    cache.Cache
	prices   *pricing.Table
	cacheTTL time.Duration
	breakers map[string]*gobreaker.CircuitBreaker
	log      *zap.Logger
	tracer   trace.Tracer
}

func New(chains Chains, c cache.Cache, prices *pricing.Table, cacheTTL time.Duration, log *zap.Logger) *Router {
	breakers := make(map[string]*gobreaker.CircuitBreaker)
	addBreaker := func(name string) {
		if _, ok := breakers[name]; ok {
			return
		}
		breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    5 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}
	for _, chain := range chains.Text {
		for _, p := range chain {
			addBreaker(p.Name())
		}
	}
	for _, p := range chains.Images {
		addBreaker(p.Name())
	}

	return &Router{
		chains:   chains,
		cache:    c,
		prices:   prices,
		cacheTTL: cacheTTL,
		breakers: breakers,
		log:      log,
		tracer:   otel.Tracer("brandcraft/router"),
	}
}

// Route resolves a task against its provider chain: cache lookup, then
// sequential fallback (each adapter exhausts its own retries before the
// router advances), then cost annotation and cache store. All failures
// come back as a *Error value; Route never panics.
func (r *Router) Route(ctx context.Context, t task.Task, payload string) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "router.route",
		trace.WithAttributes(attribute.String("task", t.String())),
	)
	defer span.End()

	key := cacheKey(t, payload)
	if t.Cacheable() && r.cache != nil {
		var cached Result
		if err := r.cache.Get(ctx, key, &cached); err == nil {
			r.log.Debug("cache hit", zap.String("task", t.String()))
			span.SetAttributes(attribute.Bool("cache.hit", true))
			cached.Cached = true
			return &cached, nil
		}
	}

	var (
		res *Result
		err error
	)
	switch t {
	case task.Sentiment:
		res, err = r.routeSentiment(ctx, payload)
	case task.Logo:
		res, err = r.routeImage(ctx, payload)
	default:
		res, err = r.routeText(ctx, t, payload)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	res.Usage = res.Usage.Normalized()
	res.Cost = r.prices.Estimate(res.Provider, res.Model, res.Usage.PromptTokens, res.Usage.CompletionTokens)
	span.SetAttributes(
		attribute.String("provider", res.Provider),
		attribute.Int("usage.total_tokens", res.Usage.TotalTokens),
	)

	if t.Cacheable() && r.cache != nil {
		if err := r.cache.Set(ctx, key, res, r.cacheTTL); err != nil {
			r.log.Warn("cache store failed", zap.String("task", t.String()), zap.Error(err))
		}
	}
	return res, nil
}

func (r *Router) routeText(ctx context.Context, t task.Task, payload string) (*Result, error) {
	var failures []string
	for _, p := range r.chains.Text[t] {
		cb := r.breakers[p.Name()]
		if cb != nil && cb.State() == gobreaker.StateOpen {
			failures = append(failures, p.Name()+": circuit open")
			continue
		}

		gen, err := executeText(cb, func() (*provider.Generation, error) {
			return p.GenerateText(ctx, payload)
		})
		if err != nil {
			r.log.Warn("text provider failed, advancing",
				zap.String("task", t.String()),
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}

		return &Result{
			Task:     t,
			Provider: p.Name(),
			Model:    p.Model(),
			Text:     gen.Text,
			Usage:    gen.Usage,
		}, nil
	}
	return nil, r.exhausted(t, failures)
}

func (r *Router) routeImage(ctx context.Context, payload string) (*Result, error) {
	var failures []string
	for _, p := range r.chains.Images {
		cb := r.breakers[p.Name()]
		if cb != nil && cb.State() == gobreaker.StateOpen {
			failures = append(failures, p.Name()+": circuit open")
			continue
		}

		img, err := executeImage(cb, func() (*provider.Image, error) {
			return p.GenerateImage(ctx, payload)
		})
		if err != nil {
			r.log.Warn("image provider failed, advancing",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}

		return &Result{
			Task:     task.Logo,
			Provider: p.Name(),
			Model:    p.Model(),
			ImageRef: img.Ref,
			Usage:    img.Usage,
		}, nil
	}
	return nil, r.exhausted(task.Logo, failures)
}

func (r *Router) routeSentiment(ctx context.Context, payload string) (*Result, error) {
	p := r.chains.Sentiment
	if p == nil {
		return nil, r.exhausted(task.Sentiment, nil)
	}

	// Sentiment degrades inside the adapter instead of falling back: no
	// second sentiment provider exists in the minimal configuration.
	s := p.ClassifySentiment(ctx, payload)
	if s.Err != "" {
		r.log.Warn("sentiment degraded", zap.String("provider", p.Name()), zap.String("cause", s.Err))
	}
	return &Result{
		Task:      task.Sentiment,
		Provider:  p.Name(),
		Model:     p.Model(),
		Sentiment: &s,
	}, nil
}

func (r *Router) exhausted(t task.Task, failures []string) *Error {
	err := newExhaustedError(t, failures)
	r.log.Error("all providers exhausted", zap.String("task", t.String()), zap.String("details", err.Details))
	return err
}

func executeText(cb *gobreaker.CircuitBreaker, call func() (*provider.Generation, error)) (*provider.Generation, error) {
	if cb == nil {
		return call()
	}
	v, err := cb.Execute(func() (interface{}, error) { return call() })
	if err != nil {
		return nil, err
	}
	return v.(*provider.Generation), nil
}

func executeImage(cb *gobreaker.CircuitBreaker, call func() (*provider.Image, error)) (*provider.Image, error) {
	if cb == nil {
		return call()
	}
	v, err := cb.Execute(func() (interface{}, error) { return call() })
	if err != nil {
		return nil, err
	}
	return v.(*provider.Image), nil
}
