package events

import (
	"github.com/shineyder/ticket-system/internal/domain"
)

// PersistedBatch carries the events a single event store save actually
// wrote, in persisted order. It is the unit of work handed to downstream
// consumers.
type PersistedBatch struct {
	AggregateID   string
	AggregateType string
	Events        []domain.Event
}
