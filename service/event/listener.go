package event

import (
	"context"

	"github.com/pollevbot/pollevbot/service/messaging"
)

// Handler consumes a single status event.
type Handler func(*Event)

// Listener drains a status queue on a background goroutine and applies the
// handler to every event, in publication order.
type Listener struct {
	queue   messaging.Queue[Event]
	handler Handler
	cancel  context.CancelFunc
}

// NewListener creates a listener over the supplied queue.
func NewListener(queue messaging.Queue[Event], handler Handler) *Listener {
	return &Listener{queue: queue, handler: handler}
}

// Start begins consuming events until Stop is called or ctx is cancelled.
func (l *Listener) Start(ctx context.Context) {
	if l.queue == nil || l.handler == nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	go func() {
		for {
			msg, err := l.queue.Consume(ctx)
			if err != nil {
				return
			}
			l.handler(msg.T())
			_ = msg.Ack()
		}
	}()
}

// Stop terminates the listener goroutine.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
}
