package llm

import (
	"context"
	"errors"
	"time"

	"github.com/WessleyAI/partselect-assistant/pkg/fn"
	"github.com/WessleyAI/partselect-assistant/pkg/metrics"
	"github.com/WessleyAI/partselect-assistant/pkg/resilience"
)

// GuardOpts configures the protection around one provider.
type GuardOpts struct {
	Name    string
	Breaker resilience.BreakerOpts
	Limiter resilience.LimiterOpts
	Retry   fn.RetryOpts
	// Timeout bounds each attempt; zero leaves the caller's deadline alone.
	Timeout time.Duration
	Metrics *metrics.Registry
}

// Guard applies rate limiting, a circuit breaker and retry to provider calls
// and records their outcome.
type Guard struct {
	name    string
	breaker *resilience.Breaker
	limiter *resilience.Limiter
	retry   fn.RetryOpts
	timeout time.Duration
	metrics *metrics.Registry
}

// NewGuard builds a Guard. Permanent errors (bad request, missing key) do
// not count toward tripping the breaker.
func NewGuard(opts GuardOpts) *Guard {
	bo := opts.Breaker
	bo.Name = opts.Name
	if bo.IsFailure == nil {
		bo.IsFailure = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !fn.IsPermanent(err)
		}
	}
	if m := opts.Metrics; m != nil {
		next := bo.OnStateChange
		bo.OnStateChange = func(name string, from, to resilience.State) {
			m.BreakerState.WithLabelValues(name).Set(float64(to))
			if next != nil {
				next(name, from, to)
			}
		}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = fn.DefaultRetry
	}
	return &Guard{
		name:    opts.Name,
		breaker: resilience.NewBreaker(bo),
		limiter: resilience.NewLimiter(opts.Limiter),
		retry:   opts.Retry,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
	}
}

// State reports the breaker state.
func (g *Guard) State() resilience.State { return g.breaker.State() }

func guarded[T any](g *Guard, ctx context.Context, kind string, call func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result := fn.Retry(ctx, g.retry, func(ctx context.Context) fn.Result[T] {
		if err := g.limiter.Wait(ctx); err != nil {
			return fn.Err[T](fn.Permanent(err))
		}
		return resilience.CallResult(g.breaker, ctx, func(ctx context.Context) fn.Result[T] {
			if g.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, g.timeout)
				defer cancel()
			}
			v, err := call(ctx)
			return fn.FromPair(v, err)
		})
	})
	v, err := result.Unwrap()
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = fn.Permanent(err)
	}
	if g.metrics != nil {
		g.metrics.LLMRequests.WithLabelValues(g.name, kind, metrics.Status(err)).Inc()
		g.metrics.LLMDuration.WithLabelValues(g.name, kind).Observe(time.Since(start).Seconds())
	}
	return v, err
}

type guardedChatter struct {
	next  Chatter
	guard *Guard
}

func (c guardedChatter) Chat(ctx context.Context, msgs []Message, opts Options) (string, error) {
	return guarded(c.guard, ctx, "chat", func(ctx context.Context) (string, error) {
		return c.next.Chat(ctx, msgs, opts)
	})
}

// Chatter wraps c with the guard.
func (g *Guard) Chatter(c Chatter) Chatter { return guardedChatter{next: c, guard: g} }

type guardedEmbedder struct {
	next  Embedder
	guard *Guard
}

func (e guardedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return guarded(e.guard, ctx, "embed", func(ctx context.Context) ([][]float32, error) {
		return e.next.Embed(ctx, texts)
	})
}

// Embedder wraps e with the guard.
func (g *Guard) Embedder(e Embedder) Embedder { return guardedEmbedder{next: e, guard: g} }
