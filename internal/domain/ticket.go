package domain

import (
	"strings"
	"time"

	"github.com/shineyder/ticket-system/pkg/util"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusResolved TicketStatus = "resolved"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// ParsePriority validates a raw priority string.
func ParsePriority(raw string) (TicketPriority, error) {
	switch TicketPriority(strings.ToLower(strings.TrimSpace(raw))) {
	case TicketPriorityLow:
		return TicketPriorityLow, nil
	case TicketPriorityMedium:
		return TicketPriorityMedium, nil
	case TicketPriorityHigh:
		return TicketPriorityHigh, nil
	default:
		return "", util.NewValidationError("priority must be low, medium or high", map[string]any{"priority": raw})
	}
}

// AggregateTypeTicket tags stored events and persisted batches.
const AggregateTypeTicket = "Ticket"

// Ticket is the event-sourced aggregate for support requests. Its state is
// the left-fold of its event history; no field is written outside apply.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Priority    TicketPriority
	Status      TicketStatus
	CreatedAt   time.Time
	ResolvedAt  *time.Time

	uncommitted []Event
}

// NewTicket creates a ticket by emitting and applying a TicketCreated event.
func NewTicket(id, title, description string, priority TicketPriority) (*Ticket, error) {
	if strings.TrimSpace(id) == "" {
		return nil, util.NewValidationError("ticket id required", nil)
	}
	if strings.TrimSpace(title) == "" {
		return nil, util.NewValidationError("ticket title required", nil)
	}
	if _, err := ParsePriority(string(priority)); err != nil {
		return nil, err
	}

	t := &Ticket{}
	if err := t.record(TicketCreated{
		ID:          newEventID(),
		TicketID:    id,
		Title:       title,
		Description: description,
		Priority:    priority,
		At:          time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// Resolve transitions an open ticket to resolved. Resolving a ticket that is
// not open fails with a conflict and emits nothing.
func (t *Ticket) Resolve() error {
	if t.Status != TicketStatusOpen {
		return util.NewConflict("ticket is not open", map[string]any{
			"ticket_id": t.ID,
			"status":    string(t.Status),
		})
	}
	return t.record(TicketResolved{
		ID:       newEventID(),
		TicketID: t.ID,
		At:       time.Now().UTC(),
	})
}

// ReconstituteFromHistory rebuilds a ticket by replaying its event history in
// order. Events are applied without being recorded as uncommitted.
func ReconstituteFromHistory(id string, history []Event) (*Ticket, error) {
	t := &Ticket{ID: id}
	for _, evt := range history {
		if err := t.apply(evt); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// PullUncommittedEvents returns and clears the uncommitted buffer. Each
// locally emitted event is handed to the caller exactly once.
func (t *Ticket) PullUncommittedEvents() []Event {
	events := t.uncommitted
	t.uncommitted = nil
	return events
}

func (t *Ticket) record(evt Event) error {
	if err := t.apply(evt); err != nil {
		return err
	}
	t.uncommitted = append(t.uncommitted, evt)
	return nil
}

// apply folds a single event into local state. An unrecognized event type is
// tolerated as a no-op; a structurally malformed event is fatal.
func (t *Ticket) apply(evt Event) error {
	switch e := evt.(type) {
	case TicketCreated:
		if e.TicketID == "" || e.Title == "" {
			return util.NewMalformedEvent(string(EventTicketCreated), "missing ticket_id or title", nil)
		}
		t.ID = e.TicketID
		t.Title = e.Title
		t.Description = e.Description
		t.Priority = e.Priority
		t.Status = TicketStatusOpen
		t.CreatedAt = e.At
		t.ResolvedAt = nil
	case TicketResolved:
		if e.TicketID == "" {
			return util.NewMalformedEvent(string(EventTicketResolved), "missing ticket_id", nil)
		}
		resolvedAt := e.At
		t.Status = TicketStatusResolved
		t.ResolvedAt = &resolvedAt
	default:
		// Unknown event kinds replay as no-ops for forward compatibility.
	}
	return nil
}
