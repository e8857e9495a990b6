package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/updown/internal/ledger"
	"github.com/rickgao/updown/internal/market"
	"github.com/rickgao/updown/internal/metrics"
	"github.com/rickgao/updown/internal/model"
	"github.com/rickgao/updown/internal/session"
)

// Broadcaster delivers events to sessions. Implementations must not block.
type Broadcaster interface {
	Join(id string)
	Leave(id string)
	Broadcast(ev model.Event)
	Send(id string, ev model.Event)
}

// SettlementSink receives every wager leaving the ledger. Implementations
// must not block.
type SettlementSink interface {
	Record(s model.Settlement)
}

// Config holds engine configuration.
type Config struct {
	TickInterval    time.Duration
	StartingBalance decimal.Decimal
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval:    5 * time.Second,
		StartingBalance: decimal.NewFromInt(1000),
	}
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Sessions  int   `json:"sessions"`
	Pending   int   `json:"pending_wagers"`
	Markets   int   `json:"markets"`
	Ticks     int64 `json:"ticks"`
	Accepted  int64 `json:"accepted"`
	Rejected  int64 `json:"rejected"`
	Settled   int64 `json:"settled"`
	Forfeited int64 `json:"forfeited"`

	TotalBalance float64 `json:"total_balance"` // Sum over open sessions
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithSink sets the settlement audit sink.
func WithSink(s SettlementSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

type request struct {
	fn   func()
	done chan struct{}
}

// Engine serializes all access to markets, sessions and wagers.
type Engine struct {
	cfg      Config
	markets  *market.Set
	prices   *market.PriceEngine
	sessions *session.Registry
	ledger   *ledger.Ledger
	out      Broadcaster
	sink     SettlementSink
	metrics  *metrics.Metrics
	clock    Clock
	logger   *slog.Logger

	requests chan request
	started  atomic.Bool
	stopped  chan struct{}

	// Owned by the run goroutine.
	seq   int64
	stats Stats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Engine over markets. Events are delivered through out.
func New(cfg Config, markets *market.Set, prices *market.PriceEngine, out Broadcaster, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		markets:  markets,
		prices:   prices,
		sessions: session.NewRegistry(cfg.StartingBalance),
		ledger:   ledger.New(),
		out:      out,
		clock:    SystemClock(),
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.stats.Markets = markets.Len()
	return e
}

// Start runs the engine goroutine until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.run(ctx)

	e.logger.Info("engine started",
		"markets", e.markets.IDs(),
		"tick_interval", e.cfg.TickInterval,
		"starting_balance", e.cfg.StartingBalance.String(),
		"price_floor", e.prices.Floor().String(),
	)
	return nil
}

// Stop halts the engine. Pending wagers are discarded.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("engine stopped", "pending_discarded", e.ledger.Len())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	defer close(e.stopped)

	ticker := e.clock.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-e.requests:
			req.fn()
			close(req.done)
		case now := <-ticker.C():
			e.tick(now)
		}
	}
}

// do runs fn on the engine goroutine and waits for it to finish.
// Calls made before Start fail with ErrStopped.
func (e *Engine) do(ctx context.Context, fn func()) error {
	if !e.started.Load() {
		return ErrStopped
	}
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case e.requests <- req:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return nil
}

// Connect opens session id, sends it initialData and adds it to broadcasts.
func (e *Engine) Connect(ctx context.Context, id string) (model.InitialData, error) {
	var data model.InitialData
	err := e.do(ctx, func() {
		balance := e.sessions.GetOrCreate(id)
		data = model.InitialData{
			Markets: e.snapshot(),
			Balance: balance.InexactFloat64(),
		}
		e.out.Send(id, model.Event{Name: model.EventInitialData, Data: data})
		e.out.Join(id)

		e.metrics.SetSessions(e.sessions.Len())
		e.logger.Debug("session connected", "session", id, "balance", balance.String())
	})
	return data, err
}

// Disconnect closes session id. Its balance is dropped and its pending
// wagers are forfeited.
func (e *Engine) Disconnect(ctx context.Context, id string) error {
	return e.do(ctx, func() {
		e.out.Leave(id)
		if !e.sessions.Remove(id) {
			return
		}

		now := e.clock.Now()
		forfeited := e.ledger.RemoveSession(id)
		for _, w := range forfeited {
			e.record(model.Settlement{
				Wager:     w,
				Outcome:   model.OutcomeForfeited,
				Winnings:  decimal.Zero,
				SettledAt: now,
			})
			e.stats.Forfeited++
		}

		e.metrics.SetSessions(e.sessions.Len())
		e.metrics.SetPending(e.ledger.Len())
		e.logger.Debug("session disconnected", "session", id, "forfeited", len(forfeited))
	})
}

// PlaceBet validates and records a wager for session id and sends the
// betResult to it. The returned error is non-nil only when the request could
// not be processed; rejections are reported in the result.
func (e *Engine) PlaceBet(ctx context.Context, id string, req model.PlaceBet) (model.BetResult, error) {
	var res model.BetResult
	err := e.do(ctx, func() {
		res = e.handlePlacement(id, req)
		e.out.Send(id, model.Event{Name: model.EventBetResult, Data: res})
	})
	return res, err
}

// Balance returns the balance of session id.
func (e *Engine) Balance(ctx context.Context, id string) (decimal.Decimal, bool, error) {
	var (
		b  decimal.Decimal
		ok bool
	)
	err := e.do(ctx, func() {
		b, ok = e.sessions.Balance(id)
	})
	return b, ok, err
}

// Pending returns the pending wagers of session id.
func (e *Engine) Pending(ctx context.Context, id string) ([]model.Wager, error) {
	var ws []model.Wager
	err := e.do(ctx, func() {
		ws = e.ledger.Pending(id)
	})
	return ws, err
}

// Markets returns a snapshot of every market.
func (e *Engine) Markets(ctx context.Context) (map[string]model.MarketSnapshot, error) {
	var snap map[string]model.MarketSnapshot
	err := e.do(ctx, func() {
		snap = e.snapshot()
	})
	return snap, err
}

// Stats returns engine counters.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := e.do(ctx, func() {
		s = e.stats
		s.Sessions = e.sessions.Len()
		s.Pending = e.ledger.Len()
		s.TotalBalance = e.sessions.Total().InexactFloat64()
	})
	return s, err
}

func (e *Engine) snapshot() map[string]model.MarketSnapshot {
	out := make(map[string]model.MarketSnapshot, e.markets.Len())
	for _, m := range e.markets.All() {
		out[m.ID] = m.Snapshot()
	}
	return out
}

func (e *Engine) record(s model.Settlement) {
	if e.sink != nil {
		e.sink.Record(s)
	}
	e.metrics.IncSettlement(s.Wager.MarketID, string(s.Outcome), s.Winnings.InexactFloat64())
}
