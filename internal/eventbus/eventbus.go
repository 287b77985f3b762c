package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/metrics"
)

// EventType represents the type of event
type EventType string

const (
	EventTypeTaskQueued    EventType = "task.queued"
	EventTypeTaskAssigned  EventType = "task.assigned"
	EventTypeTaskCompleted EventType = "task.completed"
	EventTypeTaskFailed    EventType = "task.failed"

	EventTypeAgentRegistered   EventType = "agent.registered"
	EventTypeAgentDeregistered EventType = "agent.deregistered"
	EventTypeAgentStatusChange EventType = "agent.status_change"

	EventTypePermissionDenied EventType = "permission.denied"
	EventTypeQuotaExceeded    EventType = "quota.exceeded"
	EventTypeConfigUpdated    EventType = "config.updated"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"` // Component that generated the event
	Data      map[string]interface{} `json:"data"`   // Event payload
}

// Subscriber represents an event subscriber
type Subscriber struct {
	ID      string
	Channel chan *Event
	Filter  func(*Event) bool // Optional filter function
}

// EventBus provides in-process pub/sub event messaging. Lifecycle events are
// distributed asynchronously; publication never blocks the scheduler.
type EventBus struct {
	subscribers map[string]*Subscriber
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	buffer      chan *Event
	metrics     *metrics.Metrics

	// Ring buffer for recent event history (ephemeral, lost on restart)
	recentEvents []*Event
	recentIdx    int
	recentCount  int
}

// NewEventBus creates a new event bus with the given publish buffer size.
// m may be nil, in which case publish counts are not recorded.
func NewEventBus(bufferSize int, m *metrics.Metrics) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		subscribers:  make(map[string]*Subscriber),
		ctx:          ctx,
		cancel:       cancel,
		buffer:       make(chan *Event, bufferSize),
		metrics:      m,
		recentEvents: make([]*Event, 1000),
	}

	go eb.processEvents()

	return eb
}

// Publish publishes an event to all subscribers
func (eb *EventBus) Publish(event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if event.ID == "" {
		event.ID = fmt.Sprintf("%s-%d", event.Type, time.Now().UnixNano())
	}

	// Add to buffer for async processing
	select {
	case eb.buffer <- event:
		if eb.metrics != nil {
			eb.metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
		}
		return nil
	default:
		return fmt.Errorf("event buffer is full")
	}
}

// PublishTaskEvent publishes a task lifecycle event.
func (eb *EventBus) PublishTaskEvent(eventType EventType, taskID, source string, data map[string]interface{}) error {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["task_id"] = taskID

	return eb.Publish(&Event{
		Type:   eventType,
		Source: source,
		Data:   data,
	})
}

// PublishAgentEvent publishes an agent-related event.
func (eb *EventBus) PublishAgentEvent(eventType EventType, agentID, source string, data map[string]interface{}) error {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["agent_id"] = agentID

	return eb.Publish(&Event{
		Type:   eventType,
		Source: source,
		Data:   data,
	})
}

// Subscribe creates a new subscription to events
func (eb *EventBus) Subscribe(subscriberID string, filter func(*Event) bool) *Subscriber {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if sub, exists := eb.subscribers[subscriberID]; exists {
		return sub
	}

	sub := &Subscriber{
		ID:      subscriberID,
		Channel: make(chan *Event, 100),
		Filter:  filter,
	}

	eb.subscribers[subscriberID] = sub
	return sub
}

// Unsubscribe removes a subscriber
func (eb *EventBus) Unsubscribe(subscriberID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if sub, exists := eb.subscribers[subscriberID]; exists {
		close(sub.Channel)
		delete(eb.subscribers, subscriberID)
	}
}

// processEvents processes events from the buffer and distributes to subscribers
func (eb *EventBus) processEvents() {
	for {
		select {
		case <-eb.ctx.Done():
			return
		case event, ok := <-eb.buffer:
			if !ok || event == nil {
				return
			}
			eb.distributeEvent(event)
		}
	}
}

// distributeEvent sends event to all matching subscribers
func (eb *EventBus) distributeEvent(event *Event) {
	// Store in ring buffer for history queries
	eb.mu.Lock()
	eb.recentEvents[eb.recentIdx] = event
	eb.recentIdx = (eb.recentIdx + 1) % len(eb.recentEvents)
	if eb.recentCount < len(eb.recentEvents) {
		eb.recentCount++
	}
	eb.mu.Unlock()

	// Sends happen under the read lock so Unsubscribe and Close, which
	// close subscriber channels under the write lock, cannot interleave
	// with a send. Sends are non-blocking, so the lock is held briefly.
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, sub := range eb.subscribers {
		if sub.Filter != nil && !sub.Filter(event) {
			continue
		}

		select {
		case sub.Channel <- event:
		default:
			// Subscriber channel is full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// GetRecentEvents returns recent events from the ring buffer, filtered by
// optional eventType. Results are returned newest-first, up to limit.
func (eb *EventBus) GetRecentEvents(limit int, eventType string) []*Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if limit <= 0 || limit > eb.recentCount {
		limit = eb.recentCount
	}

	result := make([]*Event, 0, limit)
	// Walk backwards from most recent
	for i := 0; i < eb.recentCount && len(result) < limit; i++ {
		idx := (eb.recentIdx - 1 - i + len(eb.recentEvents)) % len(eb.recentEvents)
		ev := eb.recentEvents[idx]
		if ev == nil {
			continue
		}
		if eventType != "" && string(ev.Type) != eventType {
			continue
		}
		result = append(result, ev)
	}
	return result
}

// Close shuts down the event bus
func (eb *EventBus) Close() {
	eb.cancel()
	close(eb.buffer)

	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, sub := range eb.subscribers {
		close(sub.Channel)
	}
	eb.subscribers = make(map[string]*Subscriber)
}
