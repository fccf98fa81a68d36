package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shineyder/ticket-system/internal/domain"
)

type recordingConsumer struct {
	mu       sync.Mutex
	name     string
	failures int
	batches  []PersistedBatch
}

func (c *recordingConsumer) Name() string { return c.name }

func (c *recordingConsumer) Handle(_ context.Context, batch PersistedBatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return errors.New("transient failure")
	}
	c.batches = append(c.batches, batch)
	return nil
}

func (c *recordingConsumer) received() []PersistedBatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]PersistedBatch{}, c.batches...)
}

func testBatch() PersistedBatch {
	return PersistedBatch{
		AggregateID:   "T1",
		AggregateType: domain.AggregateTypeTicket,
		Events: []domain.Event{
			domain.TicketCreated{ID: "e1", TicketID: "T1", Title: "Fix login", Priority: domain.TicketPriorityLow, At: time.Now()},
		},
	}
}

func fastBackoff() BackoffConfig {
	return BackoffConfig{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDispatcher_DeliversToAllConsumers(t *testing.T) {
	dispatcher := NewAsyncDispatcher(zap.NewNop(), 3, fastBackoff())
	first := &recordingConsumer{name: "projector"}
	second := &recordingConsumer{name: "publisher"}
	dispatcher.Subscribe(first)
	dispatcher.Subscribe(second)

	dispatcher.Dispatch(context.Background(), testBatch())
	dispatcher.Close()

	if got := first.received(); len(got) != 1 {
		t.Fatalf("first consumer received %d batches, want 1", len(got))
	}
	if got := second.received(); len(got) != 1 {
		t.Fatalf("second consumer received %d batches, want 1", len(got))
	}
}

func TestDispatcher_RetriesFailedDelivery(t *testing.T) {
	dispatcher := NewAsyncDispatcher(zap.NewNop(), 5, fastBackoff())
	consumer := &recordingConsumer{name: "projector", failures: 2}
	dispatcher.Subscribe(consumer)

	dispatcher.Dispatch(context.Background(), testBatch())
	dispatcher.Close()

	if got := consumer.received(); len(got) != 1 {
		t.Fatalf("consumer received %d batches after retries, want 1", len(got))
	}
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	dispatcher := NewAsyncDispatcher(zap.NewNop(), 2, fastBackoff())
	consumer := &recordingConsumer{name: "projector", failures: 5}
	dispatcher.Subscribe(consumer)

	dispatcher.Dispatch(context.Background(), testBatch())
	dispatcher.Close()

	if got := consumer.received(); len(got) != 0 {
		t.Fatalf("consumer received %d batches, want 0 (delivery exhausted)", len(got))
	}
}

func TestDispatcher_EmptyBatchIsNotDispatched(t *testing.T) {
	dispatcher := NewAsyncDispatcher(zap.NewNop(), 3, fastBackoff())
	consumer := &recordingConsumer{name: "projector"}
	dispatcher.Subscribe(consumer)

	dispatcher.Dispatch(context.Background(), PersistedBatch{AggregateID: "T1", AggregateType: domain.AggregateTypeTicket})
	dispatcher.Close()

	if got := consumer.received(); len(got) != 0 {
		t.Fatalf("consumer received %d batches, want 0", len(got))
	}
}

func TestDispatcher_FailingConsumerDoesNotBlockOthers(t *testing.T) {
	dispatcher := NewAsyncDispatcher(zap.NewNop(), 1, fastBackoff())
	failing := &recordingConsumer{name: "publisher", failures: 10}
	healthy := &recordingConsumer{name: "projector"}
	dispatcher.Subscribe(failing)
	dispatcher.Subscribe(healthy)

	dispatcher.Dispatch(context.Background(), testBatch())
	dispatcher.Close()

	if got := healthy.received(); len(got) != 1 {
		t.Fatalf("healthy consumer received %d batches, want 1", len(got))
	}
}
