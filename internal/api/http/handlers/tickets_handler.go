package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/shineyder/ticket-system/internal/api/dto"
	"github.com/shineyder/ticket-system/internal/service"
	"github.com/shineyder/ticket-system/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" {
		return util.NewValidationError("title and description required", nil)
	}
	if strings.TrimSpace(req.ID) == "" {
		req.ID = uuid.NewString()
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.CreateTicketInput{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"ticket_id": ticket.ID,
		"status":    string(ticket.Status),
	}})
}

// ResolveTicket POST /tickets/:id/resolve.
func (h *TicketsHandler) ResolveTicket(c *fiber.Ctx) error {
	if err := h.service.ResolveTicket(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{
		"ticket_id": c.Params("id"),
	}})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	doc, err := h.service.GetTicketByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromReadModel(doc)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	docs, err := h.service.ListTickets(c.UserContext(), c.Query("order_by"), c.Query("order_direction"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(docs))
	for i := range docs {
		items = append(items, dto.FromReadModel(&docs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
