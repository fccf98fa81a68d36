package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/shineyder/ticket-system/internal/domain"
	"github.com/shineyder/ticket-system/internal/events"
	"github.com/shineyder/ticket-system/internal/repository"
	"github.com/shineyder/ticket-system/pkg/util"
)

// TicketService coordinates the command and query use cases around the
// event store and the read model.
type TicketService struct {
	store      repository.EventStore
	reads      repository.TicketReadRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	EventStore repository.EventStore
	ReadRepo   repository.TicketReadRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	ID          string
	Title       string
	Description string
	Priority    string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		store:      deps.EventStore,
		reads:      deps.ReadRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket creates a ticket aggregate, persists its events and hands the
// persisted batch to downstream consumers.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	priority, err := domain.ParsePriority(input.Priority)
	if err != nil {
		return nil, err
	}

	ticket, err := domain.NewTicket(strings.TrimSpace(input.ID), strings.TrimSpace(input.Title), input.Description, priority)
	if err != nil {
		return nil, err
	}

	persisted, err := s.store.Save(ctx, ticket)
	if err != nil {
		return nil, err
	}
	s.dispatchPersisted(ctx, ticket.ID, persisted)
	return ticket, nil
}

// ResolveTicket loads the aggregate, applies the resolution and persists the
// resulting event.
func (s *TicketService) ResolveTicket(ctx context.Context, id string) error {
	ticket, err := s.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := ticket.Resolve(); err != nil {
		return err
	}

	persisted, err := s.store.Save(ctx, ticket)
	if err != nil {
		return err
	}
	s.dispatchPersisted(ctx, ticket.ID, persisted)
	return nil
}

// GetTicketByID serves the read side for a single ticket.
func (s *TicketService) GetTicketByID(ctx context.Context, id string) (*domain.TicketReadModel, error) {
	doc, err := s.reads.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, util.NewAggregateNotFound(id)
	}
	return doc, nil
}

// ListTickets serves the read side for list queries.
func (s *TicketService) ListTickets(ctx context.Context, orderBy, orderDirection string) ([]domain.TicketReadModel, error) {
	return s.reads.FindAll(ctx, orderBy, orderDirection)
}

func (s *TicketService) dispatchPersisted(ctx context.Context, aggregateID string, persisted []domain.Event) {
	if len(persisted) == 0 {
		return
	}
	s.dispatcher.Dispatch(ctx, events.PersistedBatch{
		AggregateID:   aggregateID,
		AggregateType: domain.AggregateTypeTicket,
		Events:        persisted,
	})
	s.logger.Debug("persisted batch dispatched",
		zap.String("aggregate_id", aggregateID),
		zap.Int("events", len(persisted)))
}
