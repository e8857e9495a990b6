package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/updown/internal/market"
	"github.com/rickgao/updown/internal/model"
)

var epoch = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// fakeClock hands out a single manual ticker.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch, ticker: &fakeTicker{ch: make(chan time.Time)}}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker { return c.ticker }

// Tick advances the clock by d and delivers a tick. It returns once the
// engine has received it.
func (c *fakeClock) Tick(d time.Duration) time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	c.ticker.ch <- now
	return now
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

// recorder is a Broadcaster that keeps everything it is given.
type recorder struct {
	mu        sync.Mutex
	members   map[string]bool
	broadcast []model.Event
	sent      map[string][]model.Event
}

func newRecorder() *recorder {
	return &recorder{members: make(map[string]bool), sent: make(map[string][]model.Event)}
}

func (r *recorder) Join(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[id] = true
}

func (r *recorder) Leave(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
}

func (r *recorder) Broadcast(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast = append(r.broadcast, ev)
	for id := range r.members {
		r.sent[id] = append(r.sent[id], ev)
	}
}

func (r *recorder) Send(id string, ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[id] = append(r.sent[id], ev)
}

func (r *recorder) events(id string) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.sent[id]...)
}

// eventsNamed returns the events of one kind sent to id.
func (r *recorder) eventsNamed(id, name string) []model.Event {
	var out []model.Event
	for _, ev := range r.events(id) {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) isMember(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[id]
}

type sinkRecorder struct {
	mu  sync.Mutex
	all []model.Settlement
}

func (s *sinkRecorder) Record(st model.Settlement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = append(s.all, st)
}

func (s *sinkRecorder) settlements() []model.Settlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Settlement(nil), s.all...)
}

// seqSource replays draws, then repeats 0.5 (no movement).
type seqSource struct {
	mu    sync.Mutex
	draws []float64
}

func (s *seqSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.draws) == 0 {
		return 0.5
	}
	v := s.draws[0]
	s.draws = s.draws[1:]
	return v
}

func (s *seqSource) push(draws ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws = append(s.draws, draws...)
}

// fataler is satisfied by *testing.T and *rapid.T.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

type harness struct {
	engine *Engine
	clock  *fakeClock
	out    *recorder
	sink   *sinkRecorder
	src    *seqSource
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultDefs() []market.Definition {
	return []market.Definition{
		{Name: "calm", Multiplier: 1.8, Volatility: 0.5, StartPrice: 100},
		{Name: "normal", Multiplier: 1.9, Volatility: 1.0, StartPrice: 100},
		{Name: "wild", Multiplier: 2.0, Volatility: 2.0, StartPrice: 100},
	}
}

// newHarness builds an unstarted engine over a single "normal" market.
func newHarness(t fataler, defs ...market.Definition) *harness {
	t.Helper()
	if len(defs) == 0 {
		defs = []market.Definition{{Name: "normal", Multiplier: 1.9, Volatility: 1.0, StartPrice: 100}}
	}
	set, err := market.NewSet(defs, 50, epoch)
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}

	h := &harness{
		clock: newFakeClock(),
		out:   newRecorder(),
		sink:  &sinkRecorder{},
		src:   &seqSource{},
	}
	h.engine = New(DefaultConfig(), set,
		market.NewPriceEngine(h.src, decimal.NewFromInt(10)),
		h.out,
		WithClock(h.clock),
		WithSink(h.sink),
		WithLogger(discardLogger()),
	)
	return h
}

// start runs the engine until the test ends.
func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := h.engine.Stop(ctx); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	})
}

// tick delivers one tick and waits until the engine has finished it.
func (h *harness) tick(t *testing.T) {
	t.Helper()
	h.clock.Tick(5 * time.Second)
	if _, err := h.engine.Stats(context.Background()); err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
}

func (h *harness) connect(t *testing.T, id string) model.InitialData {
	t.Helper()
	data, err := h.engine.Connect(context.Background(), id)
	if err != nil {
		t.Fatalf("Connect(%s) failed: %v", id, err)
	}
	return data
}

func (h *harness) bet(t *testing.T, id, marketID, dir string, amount float64) model.BetResult {
	t.Helper()
	res, err := h.engine.PlaceBet(context.Background(), id, model.PlaceBet{
		MarketID:  marketID,
		Direction: dir,
		Amount:    amount,
	})
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	return res
}

func (h *harness) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	b, ok, err := h.engine.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !ok {
		t.Fatalf("session %s not found", id)
	}
	return b
}

func (h *harness) pending(t *testing.T) int {
	t.Helper()
	s, err := h.engine.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	return s.Pending
}
