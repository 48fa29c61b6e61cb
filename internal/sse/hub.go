package sse

import (
	"log/slog"
	"sync"
)

// TopicLogs carries every newly stored access log.
const TopicLogs = "logs"

// Event is one message pushed to live subscribers.
type Event struct {
	Type string // "log"
	Data []byte // JSON payload
}

// Hub fans events out to per-topic subscribers. Slow subscribers lose events
// rather than block publishers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{} // topic -> set of channels
	logger      *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a subscriber for topic. The returned cancel function
// must be called when the subscriber goes away; it closes the channel.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, 64)
	h.mu.Lock()
	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[chan Event]struct{})
	}
	h.subscribers[topic][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[topic], ch)
			if len(h.subscribers[topic]) == 0 {
				delete(h.subscribers, topic)
			}
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers event to every subscriber of topic without blocking.
func (h *Hub) Publish(topic string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[topic] {
		select {
		case ch <- event:
		default:
			h.logger.Warn("sse: dropped event for slow client", "topic", topic)
		}
	}
}

// SubscriberCount returns the number of active subscribers for topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}
