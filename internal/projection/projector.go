package projection

import (
	"context"

	"go.uber.org/zap"

	"github.com/shineyder/ticket-system/internal/domain"
	"github.com/shineyder/ticket-system/internal/events"
	"github.com/shineyder/ticket-system/internal/idempotency"
	"github.com/shineyder/ticket-system/internal/observability"
	"github.com/shineyder/ticket-system/internal/repository"
)

const consumerName = "projector"

// ListInvalidator drops all cached list-query entries in one call.
type ListInvalidator interface {
	InvalidateList(ctx context.Context) error
}

// HistoryLoader supplies an aggregate's full event history for rebuilds.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, aggregateID string) ([]domain.Event, error)
}

// Projector folds persisted ticket events into the read model. It is an
// idempotent at-least-once consumer: a redelivered event id is a no-op.
type Projector struct {
	reads       repository.TicketReadRepository
	guard       idempotency.Guard
	invalidator ListInvalidator
	history     HistoryLoader
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewProjector constructs the projector.
func NewProjector(
	reads repository.TicketReadRepository,
	guard idempotency.Guard,
	invalidator ListInvalidator,
	history HistoryLoader,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Projector {
	return &Projector{
		reads:       reads,
		guard:       guard,
		invalidator: invalidator,
		history:     history,
		logger:      logger,
		metrics:     metrics,
	}
}

// Name identifies this consumer for idempotency keys and logs.
func (p *Projector) Name() string { return consumerName }

// Handle folds each event of the batch into the read model in persisted
// order. A failing event is logged and skipped; it never aborts its siblings
// or propagates to the dispatcher. The list cache is invalidated once per
// batch when at least one event was newly applied.
func (p *Projector) Handle(ctx context.Context, batch events.PersistedBatch) error {
	if batch.AggregateType != domain.AggregateTypeTicket {
		return nil
	}

	applied := 0
	for _, evt := range batch.Events {
		if p.projectEvent(ctx, evt) {
			applied++
		}
	}

	if applied > 0 {
		if err := p.invalidator.InvalidateList(ctx); err != nil {
			p.logger.Warn("list cache invalidation failed",
				zap.String("aggregate_id", batch.AggregateID),
				zap.Error(err))
		}
	}
	return nil
}

func (p *Projector) projectEvent(ctx context.Context, evt domain.Event) bool {
	seen, err := p.guard.Seen(ctx, consumerName, evt.EventID())
	if err != nil {
		p.logger.Error("idempotency check failed",
			zap.String("aggregate_id", evt.AggregateID()),
			zap.String("event_type", string(evt.Type())),
			zap.Error(err))
		p.metrics.RecordFailed(consumerName, string(evt.Type()))
		return false
	}
	if seen {
		p.logger.Debug("event already projected, skipping",
			zap.String("event_id", evt.EventID()),
			zap.String("event_type", string(evt.Type())))
		p.metrics.RecordSkipped(consumerName, string(evt.Type()))
		return false
	}

	current, err := p.reads.FindByID(ctx, evt.AggregateID())
	if err != nil {
		p.logger.Error("read model lookup failed",
			zap.String("aggregate_id", evt.AggregateID()),
			zap.String("event_type", string(evt.Type())),
			zap.Error(err))
		p.metrics.RecordFailed(consumerName, string(evt.Type()))
		return false
	}

	updated := p.fold(current, evt)
	if updated == nil {
		return false
	}

	if err := p.reads.Save(ctx, updated); err != nil {
		p.logger.Error("read model save failed",
			zap.String("aggregate_id", evt.AggregateID()),
			zap.String("event_type", string(evt.Type())),
			zap.Error(err))
		p.metrics.RecordFailed(consumerName, string(evt.Type()))
		return false
	}

	if err := p.guard.Mark(ctx, consumerName, evt.EventID()); err != nil {
		// The save already landed; a failed mark only risks a harmless
		// re-application of the same immutable event.
		p.logger.Warn("idempotency mark failed",
			zap.String("event_id", evt.EventID()),
			zap.Error(err))
	}
	p.metrics.RecordProcessed(consumerName, string(evt.Type()))
	return true
}

// fold applies one event to the current document, returning nil when the
// event does not produce a document to save.
func (p *Projector) fold(current *domain.TicketReadModel, evt domain.Event) *domain.TicketReadModel {
	switch e := evt.(type) {
	case domain.TicketCreated:
		return &domain.TicketReadModel{
			TicketID:    e.TicketID,
			Title:       e.Title,
			Description: e.Description,
			Priority:    e.Priority,
			Status:      domain.TicketStatusOpen,
			CreatedAt:   e.At,
			ResolvedAt:  nil,
		}
	case domain.TicketResolved:
		if current == nil {
			// Resolving a never-created ticket is a data integrity
			// anomaly, not a crash.
			p.logger.Warn("resolved event for missing read model",
				zap.String("ticket_id", e.TicketID),
				zap.String("event_id", e.ID))
			return nil
		}
		resolvedAt := e.At
		updated := *current
		updated.Status = domain.TicketStatusResolved
		updated.ResolvedAt = &resolvedAt
		return &updated
	default:
		return nil
	}
}

// Rebuild replays the aggregate's full history through the same fold,
// overwriting the read model. It is the repair path for detected drift.
func (p *Projector) Rebuild(ctx context.Context, aggregateID string) error {
	history, err := p.history.LoadHistory(ctx, aggregateID)
	if err != nil {
		return err
	}

	var doc *domain.TicketReadModel
	for _, evt := range history {
		if next := p.fold(doc, evt); next != nil {
			doc = next
		}
	}
	if doc == nil {
		return nil
	}
	if err := p.reads.Save(ctx, doc); err != nil {
		return err
	}
	if err := p.invalidator.InvalidateList(ctx); err != nil {
		p.logger.Warn("list cache invalidation failed",
			zap.String("aggregate_id", aggregateID),
			zap.Error(err))
	}
	return nil
}
