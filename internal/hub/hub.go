// Package hub fans engine events out to per-session outboxes.
//
// Each connected session owns an outbox queue drained by its connection's
// writer. Broadcast reaches sessions that have joined; Send reaches one
// session. Neither blocks: a session whose outbox reaches the configured
// limit is evicted by closing its outbox, which makes the connection close
// and run the normal disconnect path.
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/updown/internal/metrics"
	"github.com/rickgao/updown/internal/model"
	"github.com/rickgao/updown/internal/queue"
)

// ErrAlreadySubscribed is returned when a session id is reused.
var ErrAlreadySubscribed = errors.New("session already subscribed")

// Config holds hub configuration.
type Config struct {
	OutboxLimit    int // Max queued frames per session before eviction
	OutboxCapacity int // Initial ring capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		OutboxLimit:    256,
		OutboxCapacity: 16,
	}
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Subscribers int   `json:"subscribers"`
	Members     int   `json:"members"`
	Queued      int   `json:"queued"` // Frames waiting in all outboxes
	Resizes     int   `json:"resizes"`
	Sent        int64 `json:"sent"`
	Dropped     int64 `json:"dropped"`
	Evicted     int64 `json:"evicted"`
}

// Hub implements the engine's Broadcaster over queue-backed outboxes.
type Hub struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	outboxes map[string]*queue.Queue[[]byte]
	members  map[string]struct{}

	sent    atomic.Int64
	dropped atomic.Int64
	evicted atomic.Int64
}

// New creates a Hub.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OutboxCapacity < 1 {
		cfg.OutboxCapacity = DefaultConfig().OutboxCapacity
	}
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		outboxes: make(map[string]*queue.Queue[[]byte]),
		members:  make(map[string]struct{}),
	}
}

// Subscribe creates the outbox for id. The caller drains it until it is
// closed.
func (h *Hub) Subscribe(id string) (*queue.Queue[[]byte], error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.outboxes[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubscribed, id)
	}
	q := queue.New[[]byte](h.cfg.OutboxCapacity, h.cfg.OutboxLimit)
	h.outboxes[id] = q
	return q, nil
}

// Unsubscribe closes and forgets the outbox of id. Safe to call repeatedly.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	q, ok := h.outboxes[id]
	delete(h.outboxes, id)
	delete(h.members, id)
	h.mu.Unlock()

	if ok {
		q.Close()
	}
}

// Join adds id to broadcast delivery.
func (h *Hub) Join(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.outboxes[id]; ok {
		h.members[id] = struct{}{}
	}
}

// Leave removes id from broadcast delivery.
func (h *Hub) Leave(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.members, id)
}

// Broadcast delivers ev to every joined session.
func (h *Hub) Broadcast(ev model.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "event", ev.Name, "error", err)
		return
	}

	var lagging []string

	h.mu.RLock()
	for id := range h.members {
		if !h.push(id, h.outboxes[id], frame) {
			lagging = append(lagging, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range lagging {
		h.evict(id)
	}
}

// Send delivers ev to id only.
func (h *Hub) Send(id string, ev model.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "event", ev.Name, "session", id, "error", err)
		return
	}

	h.mu.RLock()
	q, ok := h.outboxes[id]
	delivered := ok && h.push(id, q, frame)
	h.mu.RUnlock()

	if !ok {
		h.dropped.Add(1)
		h.metrics.IncHubDropped()
		h.logger.Debug("event for unknown session dropped", "event", ev.Name, "session", id)
		return
	}
	if !delivered {
		h.evict(id)
	}
}

// push queues frame and reports whether the outbox accepted it. Caller
// holds at least the read lock.
func (h *Hub) push(id string, q *queue.Queue[[]byte], frame []byte) bool {
	if q == nil {
		return false
	}
	if err := q.Push(frame); err != nil {
		h.dropped.Add(1)
		h.metrics.IncHubDropped()
		if errors.Is(err, queue.ErrFull) {
			h.logger.Warn("session outbox full", "session", id, "limit", h.cfg.OutboxLimit)
		}
		return false
	}
	h.sent.Add(1)
	return true
}

func (h *Hub) evict(id string) {
	h.mu.Lock()
	q, ok := h.outboxes[id]
	if ok {
		delete(h.outboxes, id)
		delete(h.members, id)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	q.Close()
	h.evicted.Add(1)
	h.metrics.IncHubEvicted()
	h.logger.Warn("evicted lagging session", "session", id)
}

// Len returns the number of subscribed sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.outboxes)
}

// Stats returns hub counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	subs, members := len(h.outboxes), len(h.members)
	var queued, resizes int
	for _, q := range h.outboxes {
		qs := q.Stats()
		queued += qs.Len
		resizes += qs.Resizes
	}
	h.mu.RUnlock()

	return Stats{
		Subscribers: subs,
		Members:     members,
		Queued:      queued,
		Resizes:     resizes,
		Sent:        h.sent.Load(),
		Dropped:     h.dropped.Load(),
		Evicted:     h.evicted.Load(),
	}
}
