package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketResolved EventType = "ticket_resolved"
)

// Event is an immutable fact about a ticket aggregate. Implementations form a
// closed set of variants; state transitions happen only by applying them.
type Event interface {
	Type() EventType
	AggregateID() string
	EventID() string
	OccurredOn() time.Time
}

// TicketCreated records the creation of a ticket.
type TicketCreated struct {
	ID          string         `json:"event_id"`
	TicketID    string         `json:"ticket_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority"`
	At          time.Time      `json:"-"`
}

func (e TicketCreated) Type() EventType       { return EventTicketCreated }
func (e TicketCreated) AggregateID() string   { return e.TicketID }
func (e TicketCreated) EventID() string       { return e.ID }
func (e TicketCreated) OccurredOn() time.Time { return e.At }

// TicketResolved records the resolution of a ticket. It carries only the
// aggregate id; the resolution time is the event time.
type TicketResolved struct {
	ID       string    `json:"event_id"`
	TicketID string    `json:"ticket_id"`
	At       time.Time `json:"-"`
}

func (e TicketResolved) Type() EventType       { return EventTicketResolved }
func (e TicketResolved) AggregateID() string   { return e.TicketID }
func (e TicketResolved) EventID() string       { return e.ID }
func (e TicketResolved) OccurredOn() time.Time { return e.At }

func newEventID() string {
	return uuid.NewString()
}
