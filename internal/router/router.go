// Package router parses inbound session frames and dispatches them to the
// engine.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rickgao/updown/internal/metrics"
	"github.com/rickgao/updown/internal/model"
)

// ErrMalformedFrame is returned by Parse for frames that are not a JSON
// envelope.
var ErrMalformedFrame = errors.New("malformed frame")

// Placer accepts wager requests.
type Placer interface {
	PlaceBet(ctx context.Context, sessionID string, req model.PlaceBet) (model.BetResult, error)
}

// Router routes inbound frames for every connection. It is safe for
// concurrent use.
type Router struct {
	placer  Placer
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu              sync.Mutex
	received        int64
	routed          int64
	parseErrors     int64
	unknownMessages int64
}

// New creates a Router that sends placements to placer.
func New(placer Placer, logger *slog.Logger, m *metrics.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{placer: placer, logger: logger, metrics: m}
}

// Handle processes one frame from sessionID. Malformed and unknown frames are
// logged, counted and ignored. The returned error is non-nil only when the
// engine could not take the request.
func (r *Router) Handle(ctx context.Context, sessionID string, frame []byte) error {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	env, err := parseEnvelope(frame)
	if err != nil {
		r.logger.Warn("failed to parse frame", "session", sessionID, "error", err)
		r.count(&r.parseErrors)
		r.metrics.IncFrame("", "parse_error")
		return nil
	}

	switch env.Event {
	case model.EventPlaceBet:
		req, err := ParsePlaceBet(env.Data)
		if err != nil {
			r.logger.Warn("failed to parse placeBet", "session", sessionID, "error", err)
			r.count(&r.parseErrors)
			r.metrics.IncFrame(env.Event, "parse_error")
			return nil
		}
		if _, err := r.placer.PlaceBet(ctx, sessionID, req); err != nil {
			return fmt.Errorf("place bet: %w", err)
		}
		r.count(&r.routed)
		r.metrics.IncFrame(env.Event, "ok")

	default:
		r.logger.Debug("skipping unknown event", "session", sessionID, "event", env.Event)
		r.count(&r.unknownMessages)
		r.metrics.IncFrame("unknown", "ignored")
	}
	return nil
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		MessagesReceived: r.received,
		MessagesRouted:   r.routed,
		ParseErrors:      r.parseErrors,
		UnknownMessages:  r.unknownMessages,
	}
}

func (r *Router) count(n *int64) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}

func parseEnvelope(frame []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return envelope{}, fmt.Errorf("%w: missing event", ErrMalformedFrame)
	}
	return env, nil
}

// ParsePlaceBet decodes placeBet data. Fields of the wrong type decode to
// values the engine rejects: an empty market or direction, or a NaN amount.
// Data that is missing or not an object decodes as if every field were
// absent, so the request is still answered with a rejection.
func ParsePlaceBet(data json.RawMessage) (model.PlaceBet, error) {
	var w placeBetWire
	if isObject(data) {
		if err := json.Unmarshal(data, &w); err != nil {
			return model.PlaceBet{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
	}
	return model.PlaceBet{
		MarketID:  stringField(w.MarketID),
		Direction: stringField(w.Direction),
		Amount:    parseAmount(w.Amount),
	}, nil
}

// parseAmount accepts a JSON number or a numeric string. Anything else is
// NaN.
func parseAmount(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return math.NaN()
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return math.NaN()
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return math.NaN()
	}
	return v
}

func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
