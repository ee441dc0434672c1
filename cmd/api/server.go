package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/WessleyAI/partselect-assistant/engine/catalog"
	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/engine/rag"
	"github.com/WessleyAI/partselect-assistant/pkg/metrics"
	"github.com/WessleyAI/partselect-assistant/pkg/mid"
	"github.com/WessleyAI/partselect-assistant/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// CompatIndex answers reverse compatibility lookups and keeps itself in
// sync with the catalog. Implemented by graph.CompatGraph.
type CompatIndex interface {
	PartsForModel(ctx context.Context, model string) ([]domain.Part, error)
	SyncCatalog(ctx context.Context, parts []domain.Part) error
}

type server struct {
	assistant       *rag.Assistant
	compat          CompatIndex           // nil uses the in-memory catalog
	events          natsutil.MsgPublisher // nil disables chat events
	catalogPath     string
	defaultProvider string
	metrics         *metrics.Registry
	logger          *slog.Logger
	now             func() time.Time

	reloadMu sync.Mutex // one file read, graph sync and rebuild at a time
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/parts", s.handleSearchParts)
	mux.HandleFunc("GET /api/parts/{id}", s.handleGetPart)
	mux.HandleFunc("GET /api/models/{model}/parts", s.handleModelParts)
	mux.HandleFunc("POST /api/index/rebuild", s.handleRebuild)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// --- Chat ---

// ChatRequest is the JSON body for POST /chat.
type ChatRequest struct {
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
}

// ChatResponse is the JSON response for POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	provider, known := domain.NormalizeProvider(req.Provider, s.defaultProvider)
	if !known {
		s.logger.Warn("unknown provider, using default", "requested", req.Provider, "provider", provider)
	}

	reply, err := s.assistant.Answer(r.Context(), req.Message, provider)
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		writeJSON(w, http.StatusOK, ChatResponse{Response: rag.EmptyMessageReply})
		return
	case err != nil:
		s.logger.Error("answer generation failed",
			"err", err,
			"route", reply.Route.String(),
			"provider", reply.Provider,
			"request_id", mid.RequestIDFrom(r.Context()),
		)
		s.publish(r.Context(), reply, true)
		writeJSON(w, http.StatusOK, ChatResponse{Response: rag.FailureReply})
		return
	}

	s.publish(r.Context(), reply, false)
	writeJSON(w, http.StatusOK, ChatResponse{Response: reply.Text})
}

func (s *server) publish(ctx context.Context, reply rag.Reply, failed bool) {
	if s.events == nil {
		return
	}
	ev := rag.NewChatRouted(reply, failed, s.now())
	if err := natsutil.Publish(ctx, s.events, rag.SubjectChatRouted, ev); err != nil {
		s.logger.Warn("chat event publish failed", "err", err)
	}
}

// --- Health ---

// HealthResponse is the JSON response for GET /api/health.
type HealthResponse struct {
	Status         string `json:"status"`
	IndexBuilt     bool   `json:"index_built"`
	IndexDocuments int    `json:"index_documents"`
	CatalogParts   int    `json:"catalog_parts"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	built, docs := s.assistant.IndexStatus()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		IndexBuilt:     built,
		IndexDocuments: docs,
		CatalogParts:   s.assistant.Catalog().Len(),
	})
}

// --- Parts ---

// PartsResponse lists catalog parts.
type PartsResponse struct {
	Parts []domain.Part `json:"parts"`
}

func (s *server) handleSearchParts(w http.ResponseWriter, r *http.Request) {
	parts := s.assistant.Catalog().Search(r.URL.Query().Get("q"))
	if parts == nil {
		parts = []domain.Part{}
	}
	writeJSON(w, http.StatusOK, PartsResponse{Parts: parts})
}

func (s *server) handleGetPart(w http.ResponseWriter, r *http.Request) {
	part, ok := s.assistant.Catalog().Get(strings.ToUpper(strings.TrimSpace(r.PathValue("id"))))
	if !ok {
		http.Error(w, `{"error":"part not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, part)
}

func (s *server) handleModelParts(w http.ResponseWriter, r *http.Request) {
	model := strings.ToUpper(strings.TrimSpace(r.PathValue("model")))

	var parts []domain.Part
	if s.compat != nil {
		var err error
		parts, err = s.compat.PartsForModel(r.Context(), model)
		if err != nil {
			s.logger.Warn("compat graph lookup failed, using catalog", "model", model, "err", err)
			parts = nil
		}
	}
	if parts == nil {
		parts = s.assistant.Catalog().CompatibleWith(model)
	}
	if parts == nil {
		parts = []domain.Part{}
	}
	writeJSON(w, http.StatusOK, PartsResponse{Parts: parts})
}

// --- Index ---

// RebuildResponse is the JSON response for POST /api/index/rebuild.
type RebuildResponse struct {
	IndexBuilt bool   `json:"index_built"`
	Documents  int    `json:"documents"`
	Error      string `json:"error,omitempty"`
}

func (s *server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	resp, err := s.reload(r.Context())
	code := http.StatusOK
	if err != nil {
		s.logger.Error("index rebuild failed", "err", err)
		resp.Error = err.Error()
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, resp)
}

// reload re-reads the catalog file, swaps it in and rebuilds the index.
// A catalog file that fails to load leaves the live catalog in place.
func (s *server) reload(ctx context.Context) (RebuildResponse, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	store, err := catalog.LoadFile(s.catalogPath)
	if err != nil {
		built, docs := s.assistant.IndexStatus()
		return RebuildResponse{IndexBuilt: built, Documents: docs}, err
	}
	if s.compat != nil {
		if err := s.compat.SyncCatalog(ctx, store.Parts()); err != nil {
			s.logger.Warn("compat graph sync failed", "err", err)
		}
	}
	err = s.assistant.Reload(ctx, store)
	built, docs := s.assistant.IndexStatus()
	return RebuildResponse{IndexBuilt: built, Documents: docs}, err
}

// subscribeReload reloads the catalog whenever a CatalogReload event arrives.
func (s *server) subscribeReload(nc *nats.Conn) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, rag.SubjectCatalogReload,
		func(ctx context.Context, ev rag.CatalogReload) {
			s.logger.Info("catalog reload requested", "reason", ev.Reason)
			if _, err := s.reload(ctx); err != nil {
				s.logger.Error("catalog reload failed", "err", err)
			}
		},
		func(err error) { s.logger.Error("bad reload event", "err", err) },
	)
}
