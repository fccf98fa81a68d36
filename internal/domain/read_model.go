package domain

import "time"

// TicketReadModel is the denormalized projection of a ticket, rebuildable
// from the event log and eventually consistent with it.
type TicketReadModel struct {
	TicketID      string         `json:"ticket_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Priority      TicketPriority `json:"priority"`
	Status        TicketStatus   `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	LastUpdatedAt time.Time      `json:"last_updated_at"`
}
