package dto

import (
	"time"

	"github.com/shineyder/ticket-system/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// TicketResponse renders a read model document.
type TicketResponse struct {
	TicketID      string     `json:"ticket_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
}

// FromReadModel maps a document into its response shape.
func FromReadModel(doc *domain.TicketReadModel) TicketResponse {
	return TicketResponse{
		TicketID:      doc.TicketID,
		Title:         doc.Title,
		Description:   doc.Description,
		Priority:      string(doc.Priority),
		Status:        string(doc.Status),
		CreatedAt:     doc.CreatedAt,
		ResolvedAt:    doc.ResolvedAt,
		LastUpdatedAt: doc.LastUpdatedAt,
	}
}
