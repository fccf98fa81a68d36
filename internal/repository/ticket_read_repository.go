package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shineyder/ticket-system/internal/domain"
	"github.com/shineyder/ticket-system/pkg/util"
)

// TicketReadRepository stores the denormalized ticket projection.
type TicketReadRepository interface {
	Save(ctx context.Context, doc *domain.TicketReadModel) error
	FindByID(ctx context.Context, ticketID string) (*domain.TicketReadModel, error)
	FindAll(ctx context.Context, orderBy, orderDirection string) ([]domain.TicketReadModel, error)
}

// sortableColumns is the allow-list for findAll ordering. Anything else
// falls back to the default.
var sortableColumns = map[string]struct{}{
	"created_at":      {},
	"last_updated_at": {},
	"priority":        {},
	"status":          {},
	"title":           {},
}

const (
	defaultOrderBy        = "created_at"
	defaultOrderDirection = "desc"
)

type ticketReadRepository struct {
	pool *pgxpool.Pool
}

// NewTicketReadRepository instantiates the repository.
func NewTicketReadRepository(pool *pgxpool.Pool) TicketReadRepository {
	return &ticketReadRepository{pool: pool}
}

// Save upserts by ticket id. created_at is fixed on first insert and never
// overwritten; last_updated_at refreshes on every call.
func (r *ticketReadRepository) Save(ctx context.Context, doc *domain.TicketReadModel) error {
	const query = `
        INSERT INTO ticket_read_models
            (ticket_id, title, description, priority, status, created_at, resolved_at, last_updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
        ON CONFLICT (ticket_id) DO UPDATE SET
            title=EXCLUDED.title,
            description=EXCLUDED.description,
            priority=EXCLUDED.priority,
            status=EXCLUDED.status,
            resolved_at=EXCLUDED.resolved_at,
            last_updated_at=NOW()`
	if _, err := r.pool.Exec(ctx, query,
		doc.TicketID,
		doc.Title,
		doc.Description,
		string(doc.Priority),
		string(doc.Status),
		doc.CreatedAt,
		doc.ResolvedAt,
	); err != nil {
		return util.NewPersistenceFailure(doc.TicketID, err)
	}
	return nil
}

// FindByID reads a single document. A missing document returns nil without
// error; the projector treats that as "not yet created".
func (r *ticketReadRepository) FindByID(ctx context.Context, ticketID string) (*domain.TicketReadModel, error) {
	const query = `
        SELECT ticket_id, title, description, priority, status, created_at, resolved_at, last_updated_at
        FROM ticket_read_models WHERE ticket_id=$1`
	var doc domain.TicketReadModel
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&doc.TicketID,
		&doc.Title,
		&doc.Description,
		&doc.Priority,
		&doc.Status,
		&doc.CreatedAt,
		&doc.ResolvedAt,
		&doc.LastUpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, util.NewPersistenceFailure(ticketID, err)
	}
	return &doc, nil
}

func (r *ticketReadRepository) FindAll(ctx context.Context, orderBy, orderDirection string) ([]domain.TicketReadModel, error) {
	orderBy, orderDirection = SanitizeSort(orderBy, orderDirection)

	query := `
        SELECT ticket_id, title, description, priority, status, created_at, resolved_at, last_updated_at
        FROM ticket_read_models
        ORDER BY ` + orderBy + " " + strings.ToUpper(orderDirection)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, util.NewPersistenceFailure("", err)
	}
	defer rows.Close()

	docs := []domain.TicketReadModel{}
	for rows.Next() {
		var doc domain.TicketReadModel
		if err := rows.Scan(
			&doc.TicketID,
			&doc.Title,
			&doc.Description,
			&doc.Priority,
			&doc.Status,
			&doc.CreatedAt,
			&doc.ResolvedAt,
			&doc.LastUpdatedAt,
		); err != nil {
			return nil, util.NewPersistenceFailure("", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewPersistenceFailure("", err)
	}
	return docs, nil
}

// SanitizeSort validates sort parameters against the allow-list, falling
// back to the safe default. Exported so the cache layer derives keys from
// the same normalized values.
func SanitizeSort(orderBy, orderDirection string) (string, string) {
	orderBy = strings.ToLower(strings.TrimSpace(orderBy))
	if _, ok := sortableColumns[orderBy]; !ok {
		orderBy = defaultOrderBy
	}
	orderDirection = strings.ToLower(strings.TrimSpace(orderDirection))
	if orderDirection != "asc" && orderDirection != "desc" {
		orderDirection = defaultOrderDirection
	}
	return orderBy, orderDirection
}
