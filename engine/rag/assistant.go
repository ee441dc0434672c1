// Package rag answers customer messages: deterministic catalog rules first,
// then retrieval-grounded or free-form generation.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/WessleyAI/partselect-assistant/engine/catalog"
	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/engine/semantic"
	"github.com/WessleyAI/partselect-assistant/pkg/metrics"
)

// Retriever finds catalog documents similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.Hit, error)
}

// Index is a Retriever that can be rebuilt from the catalog.
type Index interface {
	Retriever
	Build(ctx context.Context, parts []domain.Part) error
	Built() bool
	Len() int
}

// Generator produces an answer for a prompt. allowFree selects whether the
// model may go beyond the prompt's context.
type Generator interface {
	Generate(ctx context.Context, provider, prompt string, allowFree bool) (string, error)
}

// Reply is the outcome of answering one message.
type Reply struct {
	Text     string
	Route    domain.Route
	Rule     string // set when Route is RouteRuleMatch
	Provider string // set when a generator was called
	TopScore float64
	PartID   string
	ModelID  string
}

// Options wires an Assistant.
type Options struct {
	Catalog   *catalog.Store
	Index     Index // nil runs without retrieval
	Generator Generator
	Rules     []Rule // nil uses DefaultRules
	Metrics   *metrics.Registry
	Logger    *slog.Logger
}

// Assistant routes messages to a rule or a generation strategy. It is safe
// for concurrent use; the catalog is swapped atomically on reload.
type Assistant struct {
	catalog atomic.Pointer[catalog.Store]
	// reloadMu serializes catalog swaps with index builds so the index
	// always ends up built from the newest catalog.
	reloadMu  sync.Mutex
	index     Index
	generator Generator
	rules     []Rule
	metrics   *metrics.Registry
	logger    *slog.Logger
}

// New creates an Assistant.
func New(opts Options) *Assistant {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rules == nil {
		opts.Rules = DefaultRules()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.New(nil)
	}
	a := &Assistant{
		index:     opts.Index,
		generator: opts.Generator,
		rules:     opts.Rules,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	a.catalog.Store(opts.Catalog)
	return a
}

// Catalog returns the live catalog snapshot.
func (a *Assistant) Catalog() *catalog.Store { return a.catalog.Load() }

// IndexStatus reports whether retrieval is available and its size.
func (a *Assistant) IndexStatus() (built bool, docs int) {
	if a.index == nil {
		return false, 0
	}
	return a.index.Built(), a.index.Len()
}

// Answer routes message and produces a reply. Only a generator failure is
// returned as an error; the partially filled Reply still carries the route.
func (a *Assistant) Answer(ctx context.Context, message, provider string) (Reply, error) {
	msg, err := domain.NormalizeMessage(message)
	if err != nil {
		return Reply{}, err
	}
	turn := NewTurn(msg, a.Catalog())
	reply := Reply{PartID: turn.PartID, ModelID: turn.ModelID}

	for _, r := range a.rules {
		if r.Match(turn) {
			reply.Text = r.Handle(turn)
			reply.Route = domain.RouteRuleMatch
			reply.Rule = r.Name
			a.observe(reply)
			return reply, nil
		}
	}

	var prompt string
	allowFree := true
	if !turn.PartIntent() {
		reply.Route = domain.RouteGeneral
		prompt = GeneralPrompt(msg)
	} else {
		hits := a.retrieve(ctx, msg)
		if len(hits) > 0 {
			reply.TopScore = hits[0].Score
			if a.metrics != nil {
				a.metrics.RetrievalScore.Observe(reply.TopScore)
			}
		}
		if len(hits) > 0 && reply.TopScore >= GroundingThreshold {
			reply.Route = domain.RouteGrounded
			prompt = GroundedPrompt(semantic.FormatContext(hits), msg)
			allowFree = false
		} else {
			reply.Route = domain.RouteUngrounded
			prompt = FallbackPrompt(msg)
		}
	}

	reply.Provider = provider
	a.observe(reply)
	if a.generator == nil {
		return reply, fmt.Errorf("rag: answer (%s): no generator configured", reply.Route)
	}
	text, err := a.generator.Generate(ctx, provider, prompt, allowFree)
	if err != nil {
		return reply, fmt.Errorf("rag: answer (%s): %w", reply.Route, err)
	}
	reply.Text = text
	return reply, nil
}

func (a *Assistant) retrieve(ctx context.Context, msg string) []domain.Hit {
	if a.index == nil {
		return nil
	}
	hits, err := a.index.Retrieve(ctx, msg, RetrieveTopK)
	if err != nil {
		a.logger.Warn("retrieval failed, answering ungrounded", "error", err)
		return nil
	}
	return hits
}

func (a *Assistant) observe(r Reply) {
	a.logger.Debug("message routed", "route", r.Route.String(), "rule", r.Rule,
		"part_id", r.PartID, "model_id", r.ModelID, "top_score", r.TopScore)
	if a.metrics == nil {
		return
	}
	a.metrics.ChatRequests.WithLabelValues(r.Route.String()).Inc()
	if r.Rule != "" {
		a.metrics.RuleHits.WithLabelValues(r.Rule).Inc()
	}
}

// Reload swaps in store and rebuilds the index from it. The catalog swap
// always happens; an index build failure leaves retrieval unavailable and
// is returned. Reloads run one at a time. Without an index the reload is
// just the catalog swap.
func (a *Assistant) Reload(ctx context.Context, store *catalog.Store) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()
	a.catalog.Store(store)
	a.logger.Info("catalog loaded", "parts", store.Len())
	return a.rebuild(ctx)
}

// RebuildIndex rebuilds the index from the live catalog. It returns
// ErrIndexNotBuilt when the Assistant has no index.
func (a *Assistant) RebuildIndex(ctx context.Context) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()
	if a.index == nil {
		return fmt.Errorf("rag: rebuild: %w", domain.ErrIndexNotBuilt)
	}
	return a.rebuild(ctx)
}

func (a *Assistant) rebuild(ctx context.Context) error {
	if a.index == nil {
		a.logger.Debug("no index configured, skipping rebuild")
		return nil
	}
	err := a.index.Build(ctx, a.Catalog().Parts())
	if a.metrics != nil {
		a.metrics.IndexBuilds.WithLabelValues(metrics.Status(err)).Inc()
		a.metrics.IndexDocuments.Set(float64(a.index.Len()))
	}
	if err != nil {
		return fmt.Errorf("rag: rebuild: %w", err)
	}
	return nil
}
