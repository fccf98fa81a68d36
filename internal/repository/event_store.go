package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shineyder/ticket-system/internal/domain"
	"github.com/shineyder/ticket-system/pkg/util"
)

const uniqueViolationCode = "23505"

// EventStore persists ticket events append-only with per-aggregate
// sequencing and reconstructs aggregates by replaying them.
type EventStore interface {
	Save(ctx context.Context, ticket *domain.Ticket) ([]domain.Event, error)
	Load(ctx context.Context, aggregateID string) (*domain.Ticket, error)
	LoadHistory(ctx context.Context, aggregateID string) ([]domain.Event, error)
}

type eventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore instantiates the store.
func NewEventStore(pool *pgxpool.Pool) EventStore {
	return &eventStore{pool: pool}
}

// Save drains the aggregate's uncommitted events and inserts them in one
// transaction, assigning consecutive sequence numbers after the current
// maximum. Either the whole batch commits or none of it does. A concurrent
// writer losing the sequence race surfaces as a retryable conflict.
func (s *eventStore) Save(ctx context.Context, ticket *domain.Ticket) ([]domain.Event, error) {
	events := ticket.PullUncommittedEvents()
	if len(events) == 0 {
		return nil, nil
	}

	aggregateID := ticket.ID

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, util.NewPersistenceFailure(aggregateID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const maxSeqQuery = `
        SELECT COALESCE(MAX(sequence_number), 0)
        FROM ticket_events WHERE aggregate_id=$1`
	var currentSequence int
	if err := tx.QueryRow(ctx, maxSeqQuery, aggregateID).Scan(&currentSequence); err != nil {
		return nil, util.NewPersistenceFailure(aggregateID, err)
	}

	const insertQuery = `
        INSERT INTO ticket_events
            (aggregate_id, aggregate_type, event_type, event_id, payload, sequence_number, occurred_on, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	for _, evt := range events {
		currentSequence++
		payload, err := encodePayload(evt)
		if err != nil {
			return nil, util.NewPersistenceFailure(aggregateID, err)
		}
		if _, err := tx.Exec(ctx, insertQuery,
			aggregateID,
			domain.AggregateTypeTicket,
			string(evt.Type()),
			evt.EventID(),
			payload,
			currentSequence,
			evt.OccurredOn(),
			1,
		); err != nil {
			if isUniqueViolation(err) {
				return nil, util.NewConflict("concurrent append detected, reload and retry", map[string]any{
					"aggregate_id":    aggregateID,
					"sequence_number": currentSequence,
				})
			}
			return nil, util.NewPersistenceFailure(aggregateID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, util.NewConflict("concurrent append detected, reload and retry", map[string]any{
				"aggregate_id": aggregateID,
			})
		}
		return nil, util.NewPersistenceFailure(aggregateID, err)
	}

	return events, nil
}

// Load rebuilds the aggregate from its full event history.
func (s *eventStore) Load(ctx context.Context, aggregateID string) (*domain.Ticket, error) {
	history, err := s.LoadHistory(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	return domain.ReconstituteFromHistory(aggregateID, history)
}

// LoadHistory returns the aggregate's decoded events in persisted order. It
// is also the projector's rebuild path.
func (s *eventStore) LoadHistory(ctx context.Context, aggregateID string) ([]domain.Event, error) {
	const query = `
        SELECT aggregate_id, aggregate_type, event_type, event_id, payload, sequence_number, occurred_on, version
        FROM ticket_events
        WHERE aggregate_id=$1
        ORDER BY sequence_number ASC`
	rows, err := s.pool.Query(ctx, query, aggregateID)
	if err != nil {
		return nil, util.NewPersistenceFailure(aggregateID, err)
	}
	defer rows.Close()

	var history []domain.Event
	for rows.Next() {
		var rec eventRecord
		if err := rows.Scan(
			&rec.AggregateID,
			&rec.AggregateType,
			&rec.EventType,
			&rec.EventID,
			&rec.Payload,
			&rec.SequenceNumber,
			&rec.OccurredOn,
			&rec.Version,
		); err != nil {
			return nil, util.NewPersistenceFailure(aggregateID, err)
		}
		evt, err := decodeEvent(rec)
		if err != nil {
			return nil, err
		}
		history = append(history, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewPersistenceFailure(aggregateID, err)
	}

	if len(history) == 0 {
		return nil, util.NewAggregateNotFound(aggregateID)
	}
	return history, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
