package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/updown/internal/metrics"
	"github.com/rickgao/updown/internal/model"
	"github.com/rickgao/updown/internal/queue"
)

// SettlementWriter batches settlement records into a Store.
type SettlementWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	store   Store
	metrics *metrics.Metrics

	input *queue.Queue[model.Record]

	batch   []model.Record
	batchMu sync.Mutex
	stats   WriterMetrics

	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	consumerDone chan struct{}
}

// NewSettlementWriter creates a SettlementWriter over store.
func NewSettlementWriter(cfg WriterConfig, store Store, logger *slog.Logger, m *metrics.Metrics) *SettlementWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	return &SettlementWriter{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: m,
		input:   queue.New[model.Record](min(cfg.BatchSize, 1024), cfg.BufferSize),
		batch:   make([]model.Record, 0, cfg.BatchSize),
	}
}

// Record queues s for writing. It never blocks; records are dropped when the
// buffer is full or the writer is stopped.
func (w *SettlementWriter) Record(s model.Settlement) {
	if err := w.input.Push(model.NewRecord(s)); err != nil {
		w.batchMu.Lock()
		w.stats.Dropped++
		w.batchMu.Unlock()
		w.metrics.IncAuditDropped()
		w.logger.Warn("settlement record dropped", "wager", s.Wager.ID, "error", err)
		return
	}
	w.batchMu.Lock()
	w.stats.Received++
	w.batchMu.Unlock()
}

// Start begins consuming records.
func (w *SettlementWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.consumerDone = make(chan struct{})
	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("settlement writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued records and writes them before returning.
func (w *SettlementWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping settlement writer")

	// Closing the input lets the consumer drain what is queued and exit.
	w.input.Close()
	if w.consumerDone != nil {
		select {
		case <-w.consumerDone:
		case <-ctx.Done():
		}
	}
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("settlement writer stop timed out")
		return ctx.Err()
	}

	if rest := w.input.PopBatch(0); len(rest) > 0 {
		w.batchMu.Lock()
		w.batch = append(w.batch, rest...)
		w.batchMu.Unlock()
	}
	w.flush(ctx)

	w.logger.Info("settlement writer stopped", "stats", w.Stats())
	return nil
}

// Stats returns current counters.
func (w *SettlementWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	s := w.stats
	w.batchMu.Unlock()

	s.Input = w.input.Stats()
	return s
}

func (w *SettlementWriter) consumeLoop() {
	defer w.wg.Done()
	defer close(w.consumerDone)

	for {
		rec, err := w.input.Pop(w.ctx)
		if err != nil {
			return
		}

		w.batchMu.Lock()
		w.batch = append(w.batch, rec)
		full := len(w.batch) >= w.cfg.BatchSize
		w.batchMu.Unlock()

		if full {
			w.flush(w.ctx)
		}
	}
}

func (w *SettlementWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// flush writes the current batch. A failed batch is logged and discarded.
func (w *SettlementWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]model.Record, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.store.InsertSettlements(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		w.metrics.IncAuditFlushError()
		return
	}

	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()
	w.metrics.AddAuditWritten(len(batch) - conflicts)

	w.logger.Debug("flushed settlements",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}
