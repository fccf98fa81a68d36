package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shineyder/ticket-system/internal/domain"
	"github.com/shineyder/ticket-system/internal/events"
	"github.com/shineyder/ticket-system/internal/idempotency"
	"github.com/shineyder/ticket-system/internal/observability"
)

const consumerName = "publisher"

// StreamClient is the slice of the go-redis client the publisher needs.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamPublisher publishes persisted events to a Redis Stream, keyed by
// aggregate id so all events of one ticket stay ordered on the wire. It is
// an idempotent at-least-once consumer.
type StreamPublisher struct {
	client  StreamClient
	stream  string
	guard   idempotency.Guard
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewStreamPublisher constructs the publisher for the given stream.
func NewStreamPublisher(client StreamClient, stream string, guard idempotency.Guard, logger *zap.Logger, metrics *observability.Metrics) *StreamPublisher {
	return &StreamPublisher{
		client:  client,
		stream:  stream,
		guard:   guard,
		logger:  logger,
		metrics: metrics,
	}
}

// Name identifies this consumer for idempotency keys and logs.
func (p *StreamPublisher) Name() string { return consumerName }

// Handle publishes every event of the batch regardless of aggregate type.
// Serialization and publish failures are logged and the loop continues; the
// dispatcher's redelivery of the batch is the retry mechanism.
func (p *StreamPublisher) Handle(ctx context.Context, batch events.PersistedBatch) error {
	for _, evt := range batch.Events {
		p.publishEvent(ctx, evt)
	}
	return nil
}

func (p *StreamPublisher) publishEvent(ctx context.Context, evt domain.Event) {
	seen, err := p.guard.Seen(ctx, consumerName, evt.EventID())
	if err != nil {
		p.logger.Error("idempotency check failed",
			zap.String("topic", p.stream),
			zap.String("event_type", string(evt.Type())),
			zap.String("aggregate_id", evt.AggregateID()),
			zap.Error(err))
		p.metrics.RecordFailed(consumerName, string(evt.Type()))
		return
	}
	if seen {
		p.logger.Debug("event already published, skipping",
			zap.String("event_id", evt.EventID()),
			zap.String("event_type", string(evt.Type())))
		p.metrics.RecordSkipped(consumerName, string(evt.Type()))
		return
	}

	payload, err := serializePayload(evt)
	if err != nil {
		p.logger.Error("event payload serialization failed",
			zap.String("topic", p.stream),
			zap.String("event_type", string(evt.Type())),
			zap.String("aggregate_id", evt.AggregateID()),
			zap.Error(err))
		p.metrics.RecordFailed(consumerName, string(evt.Type()))
		return
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"key":        evt.AggregateID(),
			"event_type": string(evt.Type()),
			"payload":    payload,
		},
	}).Err(); err != nil {
		p.logger.Error("event publish failed",
			zap.String("topic", p.stream),
			zap.String("event_type", string(evt.Type())),
			zap.String("aggregate_id", evt.AggregateID()),
			zap.Error(err))
		p.metrics.RecordFailed(consumerName, string(evt.Type()))
		return
	}

	if err := p.guard.Mark(ctx, consumerName, evt.EventID()); err != nil {
		p.logger.Warn("idempotency mark failed",
			zap.String("event_id", evt.EventID()),
			zap.Error(err))
	}
	p.metrics.RecordProcessed(consumerName, string(evt.Type()))
	p.logger.Debug("event published",
		zap.String("topic", p.stream),
		zap.String("event_type", string(evt.Type())),
		zap.String("aggregate_id", evt.AggregateID()))
}

// serializePayload renders the event's own fields plus occurred_on in a
// fixed textual timestamp format.
func serializePayload(evt domain.Event) (string, error) {
	raw, err := json.Marshal(evt)
	if err != nil {
		return "", err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", err
	}
	fields["occurred_on"] = evt.OccurredOn().UTC().Format(time.RFC3339)

	body, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
