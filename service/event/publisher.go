package event

import (
	"context"
	"log"

	"github.com/pollevbot/pollevbot/service/messaging"
	"github.com/pollevbot/pollevbot/service/messaging/memory"
)

// Publisher fans status events out to an underlying queue. A nil Publisher
// is valid and drops every event, so callers never need to guard emission.
type Publisher struct {
	queue messaging.Queue[Event]
}

// NewPublisher creates a publisher over the supplied queue.
func NewPublisher(queue messaging.Queue[Event]) *Publisher {
	return &Publisher{queue: queue}
}

// NewMemoryPublisher creates a publisher backed by an in-memory queue.
func NewMemoryPublisher() *Publisher {
	return NewPublisher(memory.NewQueue[Event](memory.DefaultConfig()))
}

// Publish emits an event; delivery is best effort.
func (p *Publisher) Publish(ctx context.Context, e *Event) {
	if p == nil || p.queue == nil || e == nil {
		return
	}
	if err := p.queue.Publish(ctx, e); err != nil {
		log.Printf("failed to publish status event: %v", err)
	}
}

// Publishf stamps and emits a status event with the supplied severity.
func (p *Publisher) Publishf(ctx context.Context, severity Severity, message string) {
	p.Publish(ctx, New(severity, message))
}

// Queue exposes the underlying queue so listeners can be attached.
func (p *Publisher) Queue() messaging.Queue[Event] {
	if p == nil {
		return nil
	}
	return p.queue
}
