package worker

import (
	"github.com/shineyder/ticket-system/internal/events"
)

// RegisterConsumers subscribes the downstream consumers of persisted event
// batches. Each consumer receives every batch independently.
func RegisterConsumers(dispatcher events.Dispatcher, consumers ...events.Consumer) {
	if dispatcher == nil {
		return
	}
	for _, consumer := range consumers {
		if consumer != nil {
			dispatcher.Subscribe(consumer)
		}
	}
}
