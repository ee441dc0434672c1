package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/partselect-assistant/engine/domain"
	"github.com/WessleyAI/partselect-assistant/engine/rag"
	"github.com/WessleyAI/partselect-assistant/pkg/fn"
	"github.com/WessleyAI/partselect-assistant/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// Consumer runs part upsert messages through the pipeline, re-publishing
// failures with a retry count and dead-lettering them after MaxRetries.
// When the pipeline records parts in a catalog, each success is followed by
// a catalog reload event.
type Consumer struct {
	pipeline fn.Stage[domain.Part, string]
	pub      natsutil.MsgPublisher
	deps     Deps
	log      *slog.Logger
}

// NewConsumer creates a Consumer that publishes retries and dead letters
// through pub.
func NewConsumer(deps Deps, pub natsutil.MsgPublisher) *Consumer {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{pipeline: NewPipeline(deps), pub: pub, deps: deps, log: log}
}

// StartConsumer subscribes a Consumer to UpsertSubject.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	return nc.Subscribe(UpsertSubject, NewConsumer(deps, nc).Handle)
}

// Handle processes one message.
func (c *Consumer) Handle(msg *nats.Msg) {
	ctx, part, err := natsutil.Decode[domain.Part](msg)
	if err != nil {
		c.log.Error("ingest: unmarshal failed", "error", err)
		c.deadLetter(msg, err, natsutil.RetryCount(msg))
		c.ack(msg)
		return
	}

	result := c.pipeline(ctx, part)
	if id, err := result.Unwrap(); err == nil {
		c.log.Info("ingest: success", "part_id", id)
		c.count("ok")
		c.notifyReload(ctx, id)
		c.ack(msg)
		return
	}

	_, pipeErr := result.Unwrap()
	retries := natsutil.RetryCount(msg) + 1
	c.log.Error("ingest: pipeline failed", "error", pipeErr, "part_id", part.ID, "retry", retries)

	// Invalid records will never succeed; skip the retry loop.
	var verr *domain.ValidationError
	if retries >= MaxRetries || errors.As(pipeErr, &verr) {
		c.deadLetter(msg, pipeErr, retries)
	} else if err := natsutil.Republish(c.pub, msg, retries); err != nil {
		c.log.Error("ingest: retry publish failed", "error", err)
	} else {
		c.count("retry")
	}
	c.ack(msg)
}

func (c *Consumer) notifyReload(ctx context.Context, partID string) {
	if c.deps.Catalog == nil {
		return
	}
	ev := rag.CatalogReload{Reason: fmt.Sprintf("ingested %s", partID)}
	if err := natsutil.Publish(ctx, c.pub, rag.SubjectCatalogReload, ev); err != nil {
		c.log.Error("ingest: reload notify failed", "error", err, "part_id", partID)
	}
}

func (c *Consumer) deadLetter(msg *nats.Msg, cause error, retries int) {
	dlq := dlqMessage{Payload: msg.Data, Error: cause.Error(), Retries: retries}
	if err := natsutil.Publish(context.Background(), c.pub, DLQSubject, dlq); err != nil {
		c.log.Error("ingest: DLQ publish failed", "error", err)
		return
	}
	c.count("dlq")
}

func (c *Consumer) count(status string) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.IngestProcessed.WithLabelValues(status).Inc()
	}
}

// ack acknowledges JetStream deliveries; core NATS messages have no reply.
func (c *Consumer) ack(msg *nats.Msg) {
	if msg.Reply != "" {
		_ = msg.Ack()
	}
}
