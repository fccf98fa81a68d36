package events

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Consumer handles a persisted batch of events. Handle is invoked with
// at-least-once semantics and must be idempotent.
type Consumer interface {
	Name() string
	Handle(ctx context.Context, batch PersistedBatch) error
}

// Dispatcher fans persisted batches out to registered consumers.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch PersistedBatch)
	Subscribe(consumer Consumer)
	Close()
}

// asyncDispatcher delivers each batch to every consumer on its own
// goroutine, off the synchronous write path, retrying failed deliveries with
// exponential backoff up to a bounded number of attempts.
type asyncDispatcher struct {
	mu          sync.RWMutex
	consumers   []Consumer
	wg          sync.WaitGroup
	logger      *zap.Logger
	maxAttempts int
	backoff     BackoffConfig
	rng         *rand.Rand
	rngMu       sync.Mutex
}

// NewAsyncDispatcher creates a dispatcher with the given redelivery bounds.
func NewAsyncDispatcher(logger *zap.Logger, maxAttempts int, backoff BackoffConfig) Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &asyncDispatcher{
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Subscribe registers a consumer for all future batches.
func (d *asyncDispatcher) Subscribe(consumer Consumer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.consumers = append(d.consumers, consumer)
}

// Dispatch hands the batch to every consumer asynchronously. The write path
// has already committed, so delivery failures never surface to the caller.
func (d *asyncDispatcher) Dispatch(ctx context.Context, batch PersistedBatch) {
	if len(batch.Events) == 0 {
		return
	}

	d.mu.RLock()
	consumers := append([]Consumer{}, d.consumers...)
	d.mu.RUnlock()

	for _, consumer := range consumers {
		d.wg.Add(1)
		go func(c Consumer) {
			defer d.wg.Done()
			d.deliver(c, batch)
		}(consumer)
	}
}

// Close waits for in-flight deliveries to finish.
func (d *asyncDispatcher) Close() {
	d.wg.Wait()
}

func (d *asyncDispatcher) deliver(consumer Consumer, batch PersistedBatch) {
	// Delivery outlives the request that triggered the save.
	ctx := context.Background()

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err := consumer.Handle(ctx, batch)
		if err == nil {
			return
		}

		if attempt == d.maxAttempts {
			d.logger.Error("batch delivery exhausted retries",
				zap.String("consumer", consumer.Name()),
				zap.String("aggregate_id", batch.AggregateID),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return
		}

		delay := d.jitteredDelay(attempt)
		d.logger.Warn("batch delivery failed, retrying",
			zap.String("consumer", consumer.Name()),
			zap.String("aggregate_id", batch.AggregateID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		time.Sleep(delay)
	}
}

func (d *asyncDispatcher) jitteredDelay(attempt int) time.Duration {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return nextDelay(attempt, d.backoff, d.rng)
}
