package hub

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rickgao/updown/internal/metrics"
	"github.com/rickgao/updown/internal/model"
	"github.com/rickgao/updown/internal/queue"
)

func newTestHub(limit int) *Hub {
	return New(Config{OutboxLimit: limit, OutboxCapacity: 4}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func priceUpdate(price float64) model.Event {
	return model.Event{
		Name: model.EventPriceUpdate,
		Data: model.PriceUpdate{MarketID: "normal", Time: 1, Price: price},
	}
}

func decode(t *testing.T, frame []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(frame, &m); err != nil {
		t.Fatalf("invalid frame %s: %v", frame, err)
	}
	return m
}

func TestSubscribe_Duplicate(t *testing.T) {
	h := newTestHub(0)

	if _, err := h.Subscribe("a"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := h.Subscribe("a"); !errors.Is(err, ErrAlreadySubscribed) {
		t.Errorf("second Subscribe error = %v, want ErrAlreadySubscribed", err)
	}
}

func TestBroadcast_OnlyJoinedSessions(t *testing.T) {
	h := newTestHub(0)
	a, _ := h.Subscribe("a")
	b, _ := h.Subscribe("b")
	h.Join("a")

	h.Broadcast(priceUpdate(101))

	if a.Len() != 1 {
		t.Errorf("a.Len() = %d, want 1", a.Len())
	}
	if b.Len() != 0 {
		t.Errorf("b.Len() = %d, want 0 (not joined)", b.Len())
	}

	m := decode(t, a.PopBatch(1)[0])
	if m["event"] != model.EventPriceUpdate {
		t.Errorf("event = %v, want priceUpdate", m["event"])
	}
	data := m["data"].(map[string]any)
	if data["marketId"] != "normal" || data["price"] != 101.0 {
		t.Errorf("data = %v", data)
	}
}

func TestSend_OwnerOnly(t *testing.T) {
	h := newTestHub(0)
	a, _ := h.Subscribe("a")
	b, _ := h.Subscribe("b")
	h.Join("a")
	h.Join("b")

	h.Send("a", model.Event{Name: model.EventBetResult, Data: model.BetResult{Success: false, Message: "Invalid bet amount"}})

	if a.Len() != 1 || b.Len() != 0 {
		t.Errorf("a.Len() = %d, b.Len() = %d, want 1, 0", a.Len(), b.Len())
	}
	if s := h.Stats(); s.Queued != 1 {
		t.Errorf("Stats().Queued = %d, want 1", s.Queued)
	}
}

func TestSend_NotJoinedStillDelivers(t *testing.T) {
	h := newTestHub(0)
	a, _ := h.Subscribe("a")

	h.Send("a", model.Event{Name: model.EventInitialData, Data: model.InitialData{Balance: 1000}})

	if a.Len() != 1 {
		t.Errorf("a.Len() = %d, want 1", a.Len())
	}
}

func TestSend_UnknownSessionDropped(t *testing.T) {
	h := newTestHub(0)

	h.Send("ghost", priceUpdate(1))

	if s := h.Stats(); s.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", s.Dropped)
	}
}

func TestLeave(t *testing.T) {
	h := newTestHub(0)
	a, _ := h.Subscribe("a")
	h.Join("a")
	h.Leave("a")

	h.Broadcast(priceUpdate(1))

	if a.Len() != 0 {
		t.Errorf("a.Len() = %d after Leave, want 0", a.Len())
	}
}

func TestBroadcast_EvictsLaggingSession(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := New(Config{OutboxLimit: 3, OutboxCapacity: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)), m)

	slow, _ := h.Subscribe("slow")
	fast, _ := h.Subscribe("fast")
	h.Join("slow")
	h.Join("fast")

	for i := 0; i < 4; i++ {
		h.Broadcast(priceUpdate(float64(100 + i)))
		fast.PopBatch(1)
	}

	if err := fast.Push([]byte("still open")); err != nil {
		t.Errorf("fast outbox Push error = %v, want nil", err)
	}
	fast.PopBatch(0)
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}

	// Evicted sessions keep what was queued so the writer can flush it.
	if slow.Len() != 3 {
		t.Errorf("slow.Len() = %d, want 3", slow.Len())
	}
	if _, err := slow.Pop(t.Context()); err != nil {
		t.Errorf("Pop on evicted outbox failed: %v", err)
	}
	slow.PopBatch(0)
	if _, err := slow.Pop(t.Context()); !errors.Is(err, queue.ErrClosed) {
		t.Errorf("Pop on drained evicted outbox error = %v, want ErrClosed", err)
	}

	s := h.Stats()
	if s.Evicted != 1 {
		t.Errorf("Evicted = %d, want 1", s.Evicted)
	}
	if got := testutil.ToFloat64(m.HubEvicted); got != 1 {
		t.Errorf("hub_evicted_total = %v, want 1", got)
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	h := newTestHub(0)
	a, _ := h.Subscribe("a")
	h.Join("a")

	h.Unsubscribe("a")
	h.Unsubscribe("a")

	if _, err := a.Pop(t.Context()); !errors.Is(err, queue.ErrClosed) {
		t.Errorf("Pop() error = %v, want ErrClosed", err)
	}
	if s := h.Stats(); s.Subscribers != 0 || s.Members != 0 {
		t.Errorf("Stats() = %+v, want empty", s)
	}

	// The id can be reused after unsubscribing.
	if _, err := h.Subscribe("a"); err != nil {
		t.Errorf("re-Subscribe failed: %v", err)
	}
}

func TestJoin_RequiresSubscription(t *testing.T) {
	h := newTestHub(0)
	h.Join("ghost")

	if s := h.Stats(); s.Members != 0 {
		t.Errorf("Members = %d, want 0", s.Members)
	}
}
