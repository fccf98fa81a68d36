package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shineyder/ticket-system/internal/domain"
	"github.com/shineyder/ticket-system/pkg/util"
)

func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		t.Skip("DB_URL not set (integration test)")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func newTicketID() string {
	return "it-" + uuid.NewString()
}

func TestEventStore_SaveLoadRoundTrip(t *testing.T) {
	pool := integrationPool(t)
	store := NewEventStore(pool)
	ctx := context.Background()
	id := newTicketID()

	ticket, err := domain.NewTicket(id, "Fix login", "desc", domain.TicketPriorityHigh)
	if err != nil {
		t.Fatalf("NewTicket: %v", err)
	}
	persisted, err := store.Save(ctx, ticket)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(persisted) != 1 {
		t.Fatalf("persisted = %d events, want 1", len(persisted))
	}

	loaded, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Title != "Fix login" || loaded.Priority != domain.TicketPriorityHigh {
		t.Fatalf("loaded = %+v, want title %q priority %q", loaded, "Fix login", domain.TicketPriorityHigh)
	}
	if loaded.Status != domain.TicketStatusOpen {
		t.Fatalf("Status = %q, want %q", loaded.Status, domain.TicketStatusOpen)
	}
	if loaded.ResolvedAt != nil {
		t.Fatalf("ResolvedAt = %v, want nil", loaded.ResolvedAt)
	}
}

func TestEventStore_FoldIndependentOfSaveBoundaries(t *testing.T) {
	pool := integrationPool(t)
	store := NewEventStore(pool)
	ctx := context.Background()
	id := newTicketID()

	ticket, err := domain.NewTicket(id, "Fix login", "desc", domain.TicketPriorityMedium)
	if err != nil {
		t.Fatalf("NewTicket: %v", err)
	}
	if _, err := store.Save(ctx, ticket); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	loaded, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := loaded.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := store.Save(ctx, loaded); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	final, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("final Load: %v", err)
	}
	if final.Status != domain.TicketStatusResolved {
		t.Fatalf("Status = %q, want %q", final.Status, domain.TicketStatusResolved)
	}
	if final.ResolvedAt == nil {
		t.Fatal("ResolvedAt not set")
	}

	history, err := store.LoadHistory(ctx, id)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d events, want 2", len(history))
	}
}

func TestEventStore_SaveEmptyBufferIsNoOp(t *testing.T) {
	pool := integrationPool(t)
	store := NewEventStore(pool)
	ctx := context.Background()
	id := newTicketID()

	ticket, err := domain.NewTicket(id, "Fix login", "desc", domain.TicketPriorityLow)
	if err != nil {
		t.Fatalf("NewTicket: %v", err)
	}
	ticket.PullUncommittedEvents()

	persisted, err := store.Save(ctx, ticket)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(persisted) != 0 {
		t.Fatalf("persisted = %d events, want 0", len(persisted))
	}
}

func TestEventStore_LoadMissingAggregateIsNotFound(t *testing.T) {
	pool := integrationPool(t)
	store := NewEventStore(pool)

	_, err := store.Load(context.Background(), "ghost-id-"+uuid.NewString())
	if !util.IsNotFound(err) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestEventStore_SaveAtomicityOnMidBatchFailure(t *testing.T) {
	pool := integrationPool(t)
	store := NewEventStore(pool)
	ctx := context.Background()
	id := newTicketID()

	// Occupy sequence 2 so a two-event batch fails on its second insert.
	const blocker = `
        INSERT INTO ticket_events
            (aggregate_id, aggregate_type, event_type, event_id, payload, sequence_number, occurred_on, version)
        VALUES ($1,'Ticket','ticket_resolved',$2,'{"ticket_id":"x"}',2,NOW(),1)`
	if _, err := pool.Exec(ctx, blocker, id, uuid.NewString()); err != nil {
		t.Fatalf("seed blocker row: %v", err)
	}

	ticket, err := domain.NewTicket(id, "Fix login", "desc", domain.TicketPriorityLow)
	if err != nil {
		t.Fatalf("NewTicket: %v", err)
	}
	if err := ticket.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	_, err = store.Save(ctx, ticket)
	if !util.IsConflict(err) {
		t.Fatalf("Save error = %v, want conflict", err)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM ticket_events WHERE aggregate_id=$1`, id).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("persisted rows = %d, want 1 (only the blocker)", count)
	}
}

func TestEventStore_ConcurrentSaveSameSequenceConflicts(t *testing.T) {
	pool := integrationPool(t)
	store := NewEventStore(pool)
	ctx := context.Background()
	id := newTicketID()

	ticket, err := domain.NewTicket(id, "Fix login", "desc", domain.TicketPriorityLow)
	if err != nil {
		t.Fatalf("NewTicket: %v", err)
	}
	if _, err := store.Save(ctx, ticket); err != nil {
		t.Fatalf("seed Save: %v", err)
	}

	loser, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load loser: %v", err)
	}
	if err := loser.Resolve(); err != nil {
		t.Fatalf("Resolve loser: %v", err)
	}

	// The winning writer holds an open transaction on sequence 2 while the
	// loser saves; the loser blocks on the unique index and must surface a
	// conflict once the winner commits.
	winnerTx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin winner tx: %v", err)
	}
	defer winnerTx.Rollback(ctx) //nolint:errcheck
	const winnerInsert = `
        INSERT INTO ticket_events
            (aggregate_id, aggregate_type, event_type, event_id, payload, sequence_number, occurred_on, version)
        VALUES ($1,'Ticket','ticket_resolved',$2,$3,2,NOW(),1)`
	if _, err := winnerTx.Exec(ctx, winnerInsert, id, uuid.NewString(), `{"ticket_id":"`+id+`"}`); err != nil {
		t.Fatalf("winner insert: %v", err)
	}

	var wg sync.WaitGroup
	var loserErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, loserErr = store.Save(ctx, loser)
	}()

	time.Sleep(200 * time.Millisecond)
	if err := winnerTx.Commit(ctx); err != nil {
		t.Fatalf("winner commit: %v", err)
	}
	wg.Wait()

	if !util.IsConflict(loserErr) {
		t.Fatalf("loser Save error = %v, want conflict", loserErr)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM ticket_events WHERE aggregate_id=$1`, id).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("persisted rows = %d, want 2 (created + winner resolved)", count)
	}
}
