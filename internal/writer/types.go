package writer

import (
	"context"
	"time"

	"github.com/rickgao/updown/internal/model"
	"github.com/rickgao/updown/internal/queue"
)

// Store persists settlement records.
type Store interface {
	// InsertSettlements writes rows, skipping wager ids already present.
	// It returns how many rows were skipped.
	InsertSettlements(ctx context.Context, rows []model.Record) (conflicts int, err error)
}

// WriterConfig holds writer configuration.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize caps queued records; Record drops beyond it.
	BufferSize int
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 2 * time.Second,
		BufferSize:    100000,
	}
}

// WriterMetrics holds writer counters.
type WriterMetrics struct {
	Received  int64 `json:"received"`
	Inserts   int64 `json:"inserts"`
	Conflicts int64 `json:"conflicts"`
	Errors    int64 `json:"errors"`
	Dropped   int64 `json:"dropped"`
	Flushes   int64 `json:"flushes"`

	Input queue.Stats `json:"input"` // Records waiting for a batch
}
