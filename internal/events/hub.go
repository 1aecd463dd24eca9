package events

import (
	"log/slog"
	"sync"

	"skysort/internal/logging"
)

const (
	hubBuffer        = 256
	subscriberBuffer = 64
)

// Hub fans analyzer events out to subscribers. Publish is safe from any
// goroutine and never blocks; a single consumer goroutine drains the queue
// and delivers in publish order. Slow subscribers lose events rather than
// stalling the pipeline.
type Hub struct {
	logger *slog.Logger
	queue  chan Event
	done   chan struct{}

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewHub(logger *slog.Logger) *Hub {
	h := &Hub{
		logger: logging.NewComponentLogger(logger, "events"),
		queue:  make(chan Event, hubBuffer),
		done:   make(chan struct{}),
		subs:   make(map[int]chan Event),
	}
	go h.run()
	return h
}

// Publish enqueues an event. Events published after Close, or while the
// queue is full, are dropped with a warning.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	select {
	case h.queue <- event:
	default:
		h.logger.Warn("event queue full, dropping event",
			logging.String(logging.FieldEventType, event.Kind()))
	}
	h.mu.Unlock()
}

// Subscribe registers a listener. The returned cancel function removes the
// subscription and closes the channel; calling it twice is safe.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Close stops accepting events, lets the consumer drain what is queued, and
// closes every subscriber channel. It blocks until delivery finishes.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		<-h.done
		return
	}
	h.closed = true
	close(h.queue)
	h.mu.Unlock()
	<-h.done
}

func (h *Hub) run() {
	for event := range h.queue {
		h.dispatch(event)
	}
	h.mu.Lock()
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub)
	}
	h.mu.Unlock()
	close(h.done)
}

// dispatch delivers under the mutex so a concurrent cancel cannot close a
// channel between the snapshot and the send. Sends never block, so holding
// the lock here is cheap.
func (h *Hub) dispatch(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		select {
		case sub <- event:
		default:
			h.logger.Warn("slow subscriber, dropping event",
				logging.String(logging.FieldEventType, event.Kind()))
		}
	}
}
