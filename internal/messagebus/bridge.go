package messagebus

import (
	"context"
	"log"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/eventbus"
)

// EventPublisher abstracts event publishing for testability.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *eventbus.Event) error
}

// Verify NatsMessageBus implements the publisher interface at compile time.
var _ EventPublisher = (*NatsMessageBus)(nil)

// Bridge forwards events from the in-process event bus to an external
// publisher. The scheduler keeps emitting to its local bus only; the bridge
// is what makes those events visible outside the process.
type Bridge struct {
	eventBus  *eventbus.EventBus
	publisher EventPublisher
	cancel    context.CancelFunc
}

// NewBridge creates a bridge; call Start to begin forwarding.
func NewBridge(eb *eventbus.EventBus, publisher EventPublisher) *Bridge {
	return &Bridge{
		eventBus:  eb,
		publisher: publisher,
	}
}

// Start subscribes to the local event bus and forwards every event until
// Stop is called. Forwarding failures are logged and dropped; the local bus
// remains the source of truth for in-process consumers.
func (b *Bridge) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	sub := b.eventBus.Subscribe("nats-bridge", nil)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-sub.Channel:
				if !ok {
					return
				}
				if err := b.publisher.PublishEvent(ctx, event); err != nil {
					log.Printf("failed to forward event %s: %v", event.ID, err)
				}
			}
		}
	}()
}

// Stop ends forwarding and unsubscribes from the local bus.
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.eventBus.Unsubscribe("nats-bridge")
}
