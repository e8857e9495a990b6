package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/updown/internal/config"
	"github.com/rickgao/updown/internal/connection"
	"github.com/rickgao/updown/internal/database"
	"github.com/rickgao/updown/internal/engine"
	"github.com/rickgao/updown/internal/hub"
	"github.com/rickgao/updown/internal/market"
	"github.com/rickgao/updown/internal/metrics"
	"github.com/rickgao/updown/internal/router"
	"github.com/rickgao/updown/internal/storage"
	"github.com/rickgao/updown/internal/version"
	"github.com/rickgao/updown/internal/writer"
)

// auditStore is a settlement store the health endpoint can ping.
type auditStore interface {
	writer.Store
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting updown",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("updown exited", "error", err)
		os.Exit(1)
	}
	logger.Info("updown stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadAndValidate(path)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// The engine and writer outlive the signal so closing sessions can still
	// forfeit and audit their wagers. They are stopped explicitly below.
	svcCtx := context.WithoutCancel(ctx)

	// Audit store and writer
	var (
		store  auditStore
		audit  *writer.SettlementWriter
		engOpt = []engine.Option{engine.WithLogger(logger), engine.WithMetrics(m)}
	)
	if cfg.Audit.Enabled {
		var err error
		store, err = openStore(ctx, cfg.Audit, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		audit = writer.NewSettlementWriter(writer.WriterConfig{
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: cfg.Audit.FlushInterval,
			BufferSize:    cfg.Audit.BufferSize,
		}, store, logger, m)
		if err := audit.Start(svcCtx); err != nil {
			return fmt.Errorf("start audit writer: %w", err)
		}
		engOpt = append(engOpt, engine.WithSink(audit))
	}

	// Markets
	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	src := rand.New(rand.NewPCG(seed, seed>>1|1))
	logger.Info("price source seeded", "seed", seed)

	markets, err := market.NewSet(marketDefinitions(cfg.Markets), cfg.Engine.HistoryCapacity, time.Now())
	if err != nil {
		return fmt.Errorf("create markets: %w", err)
	}
	prices := market.NewPriceEngine(src, decimal.NewFromFloat(cfg.Engine.PriceFloor))

	// Engine, hub, router and WebSocket server
	h := hub.New(hub.Config{
		OutboxLimit:    cfg.Server.OutboxLimit,
		OutboxCapacity: hub.DefaultConfig().OutboxCapacity,
	}, logger, m)

	eng := engine.New(engine.Config{
		TickInterval:    cfg.Engine.TickInterval,
		StartingBalance: decimal.NewFromFloat(cfg.Engine.StartingBalance),
	}, markets, prices, h, engOpt...)
	if err := eng.Start(svcCtx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	rt := router.New(eng, logger, m)
	ws := connection.NewServer(connection.ServerConfig{
		WriteTimeout:   cfg.Server.WriteTimeout,
		PingInterval:   cfg.Server.PingInterval,
		PongTimeout:    cfg.Server.PongTimeout,
		ReadLimit:      cfg.Server.ReadLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, eng, h, rt, logger)

	wsMux := http.NewServeMux()
	wsMux.Handle(cfg.Server.WSPath, ws)
	wsServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           wsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHealthHandler(healthDeps{
			engine:      eng,
			hub:         h,
			server:      ws,
			router:      rt,
			audit:       audit,
			store:       store,
			registry:    reg,
			metricsPath: cfg.Metrics.Path,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting websocket server", "addr", cfg.Server.ListenAddr, "path", cfg.Server.WSPath)
		if err := wsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("websocket server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Sessions close first so their wagers are forfeited while the engine runs.
		if err := ws.Shutdown(shutdownCtx); err != nil {
			logger.Warn("websocket sessions did not close", "error", err)
		}
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("websocket listener shutdown", "error", err)
		}
		if err := eng.Stop(shutdownCtx); err != nil {
			logger.Warn("engine stop", "error", err)
		}
		if audit != nil {
			if err := audit.Stop(shutdownCtx); err != nil {
				logger.Warn("audit writer stop", "error", err)
			}
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.AuditConfig, logger *slog.Logger) (auditStore, error) {
	switch cfg.Driver {
	case "postgres":
		logger.Info("connecting to audit database",
			"host", cfg.Postgres.Host,
			"port", cfg.Postgres.Port,
			"database", cfg.Postgres.Name,
		)
		s, err := database.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres audit store: %w", err)
		}
		return s, nil
	default:
		logger.Info("opening audit database", "path", cfg.SQLitePath)
		s, err := storage.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite audit store: %w", err)
		}
		return s, nil
	}
}

func marketDefinitions(markets []config.MarketConfig) []market.Definition {
	defs := make([]market.Definition, len(markets))
	for i, m := range markets {
		defs[i] = market.Definition{
			Name:       m.Name,
			Multiplier: m.Multiplier,
			Volatility: m.Volatility,
			StartPrice: m.StartPrice,
		}
	}
	return defs
}
