package connection

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/updown/internal/model"
	"github.com/rickgao/updown/internal/queue"
)

// Engine is the session lifecycle side of the engine.
type Engine interface {
	Connect(ctx context.Context, id string) (model.InitialData, error)
	Disconnect(ctx context.Context, id string) error
}

// Outboxes hands out per-session outbound queues.
type Outboxes interface {
	Subscribe(id string) (*queue.Queue[[]byte], error)
	Unsubscribe(id string)
}

// Handler processes inbound frames.
type Handler interface {
	Handle(ctx context.Context, sessionID string, frame []byte) error
}

// ServerStats is a snapshot of server counters.
type ServerStats struct {
	Active   int64 `json:"active"`
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
}

// Server is an http.Handler that serves WebSocket sessions.
type Server struct {
	cfg      ServerConfig
	engine   Engine
	outboxes Outboxes
	handler  Handler
	logger   *slog.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	active   atomic.Int64
	accepted atomic.Int64
	rejected atomic.Int64
}

// NewServer creates a Server.
func NewServer(cfg ServerConfig, engine Engine, outboxes Outboxes, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultServerConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.DisconnectGrace <= 0 {
		cfg.DisconnectGrace = def.DisconnectGrace
	}
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		outboxes: outboxes,
		handler:  handler,
		logger:   logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// ServeHTTP upgrades the request and runs the session until the socket
// closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.rejected.Add(1)
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	id := uuid.NewString()
	s.accepted.Add(1)
	s.active.Add(1)
	defer s.active.Add(-1)

	s.serve(id, conn, r.RemoteAddr)
}

func (s *Server) serve(id string, conn *websocket.Conn, remote string) {
	defer conn.Close()
	logger := s.logger.With("session", id)

	outbox, err := s.outboxes.Subscribe(id)
	if err != nil {
		logger.Error("failed to open outbox", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	if _, err := s.engine.Connect(ctx, id); err != nil {
		logger.Error("failed to connect session", "error", err)
		s.outboxes.Unsubscribe(id)
		return
	}
	logger.Info("session connected", "remote", remote)

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		s.writeLoop(ctx, conn, outbox, logger)
		cancel()
		// Unblocks the read loop.
		conn.Close()
	}()
	go func() {
		defer loops.Done()
		s.pingLoop(ctx, conn, logger)
	}()

	s.readLoop(ctx, id, conn, logger)
	cancel()

	dctx, dcancel := context.WithTimeout(context.Background(), s.cfg.DisconnectGrace)
	if err := s.engine.Disconnect(dctx, id); err != nil {
		logger.Warn("failed to disconnect session", "error", err)
	}
	dcancel()
	s.outboxes.Unsubscribe(id)

	loops.Wait()
	logger.Info("session closed")
}

// readLoop feeds inbound frames to the handler until the socket fails.
func (s *Server) readLoop(ctx context.Context, id string, conn *websocket.Conn, logger *slog.Logger) {
	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}
	conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				logger.Debug("read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := s.handler.Handle(ctx, id, data); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn("failed to handle frame", "error", err)
			}
			return
		}
	}
}

// writeLoop drains the outbox into the socket. It returns when the outbox is
// closed, ctx is done, or a write fails.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, outbox *queue.Queue[[]byte], logger *slog.Logger) {
	for {
		frame, err := outbox.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
					time.Now().Add(time.Second),
				)
			}
			return
		}

		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			logger.Debug("write failed", "error", err)
			return
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn, logger *slog.Logger) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// Shutdown closes every session and waits for their cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("websocket server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns server counters.
func (s *Server) Stats() ServerStats {
	return ServerStats{
		Active:   s.active.Load(),
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
	}
}
