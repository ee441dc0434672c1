package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
)

// System prompts, chosen by whether the answer may go beyond retrieved
// context.
const (
	SystemFree = "You are a helpful assistant for PartSelect customers. You can answer questions about " +
		"refrigerators and dishwashers, including parts, installation, maintenance tips, troubleshooting, " +
		"detergent recommendations, and best practices. Always answer in plain English and be concise."
	SystemStrict = "You are a support assistant for PartSelect refrigerator/dishwasher parts. Only use the " +
		"provided context or concrete part/model details. If unsure, say you are not sure."
)

// Router dispatches generation to a named provider.
type Router struct {
	mu       sync.RWMutex
	chatters map[string]Chatter
	def      string
	opts     Options
}

// NewRouter creates a Router whose empty provider name resolves to def.
func NewRouter(def string, opts Options) *Router {
	return &Router{chatters: make(map[string]Chatter), def: def, opts: opts}
}

// Register adds or replaces a provider.
func (r *Router) Register(name string, c Chatter) {
	r.mu.Lock()
	r.chatters[name] = c
	r.mu.Unlock()
}

// Providers lists registered provider names, sorted.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.chatters))
	for n := range r.chatters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Default is the provider used when none is named.
func (r *Router) Default() string { return r.def }

// Generate sends prompt to provider with the system prompt selected by
// allowFree.
func (r *Router) Generate(ctx context.Context, provider, prompt string, allowFree bool) (string, error) {
	if provider == "" {
		provider = r.def
	}
	r.mu.RLock()
	c, ok := r.chatters[provider]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("llm: generate: provider %q: %w", provider, domain.ErrUnknownProvider)
	}
	system := SystemStrict
	if allowFree {
		system = SystemFree
	}
	msgs := []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}
	out, err := c.Chat(ctx, msgs, r.opts)
	if err != nil {
		return "", fmt.Errorf("llm: generate %s: %w", provider, err)
	}
	return out, nil
}
