package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/updown/internal/connection"
	"github.com/rickgao/updown/internal/engine"
	"github.com/rickgao/updown/internal/hub"
	"github.com/rickgao/updown/internal/model"
	"github.com/rickgao/updown/internal/router"
	"github.com/rickgao/updown/internal/version"
	"github.com/rickgao/updown/internal/writer"
)

type engineView interface {
	Stats(ctx context.Context) (engine.Stats, error)
	Markets(ctx context.Context) (map[string]model.MarketSnapshot, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// settlementReader is implemented by stores that can read audit rows back.
type settlementReader interface {
	Settlements(ctx context.Context, sessionID string) ([]model.Record, error)
	Count(ctx context.Context) (int, error)
}

type healthDeps struct {
	engine      engineView
	hub         interface{ Stats() hub.Stats }
	server      interface{ Stats() connection.ServerStats }
	router      interface{ Stats() router.Stats }
	audit       *writer.SettlementWriter // Nil when auditing is disabled
	store       pinger                   // Nil when auditing is disabled
	registry    *prometheus.Registry
	metricsPath string
}

// createHealthHandler creates the HTTP handler for health checks, debug views
// and Prometheus scrapes.
func createHealthHandler(d healthDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Version    version.Info   `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]any),
		}

		// Check engine
		stats, err := d.engine.Stats(ctx)
		if err != nil {
			health.Status = "unhealthy"
			health.Components["engine"] = map[string]string{
				"status": "stopped",
				"error":  err.Error(),
			}
		} else {
			health.Components["engine"] = stats
		}

		// Check audit store
		if d.store != nil {
			if err := d.store.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["audit_store"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else if rd, ok := d.store.(settlementReader); ok {
				n, err := rd.Count(ctx)
				if err != nil {
					health.Components["audit_store"] = map[string]string{
						"status": "connected",
						"error":  err.Error(),
					}
				} else {
					health.Components["audit_store"] = map[string]any{
						"status":      "connected",
						"settlements": n,
					}
				}
			} else {
				health.Components["audit_store"] = "connected"
			}
		}
		if d.audit != nil {
			ws := d.audit.Stats()
			health.Components["audit_writer"] = ws
			if ws.Dropped > 0 && health.Status == "healthy" {
				health.Status = "degraded"
			}
		}

		health.Components["websocket"] = d.server.Stats()
		health.Components["hub"] = d.hub.Stats()
		health.Components["router"] = d.router.Stats()

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/markets", func(w http.ResponseWriter, r *http.Request) {
		markets, err := d.engine.Markets(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":   len(markets),
			"markets": markets,
		})
	})

	if rd, ok := d.store.(settlementReader); ok {
		mux.HandleFunc("/debug/settlements", func(w http.ResponseWriter, r *http.Request) {
			session := r.URL.Query().Get("session")
			if session == "" {
				http.Error(w, "session parameter required", http.StatusBadRequest)
				return
			}
			rows, err := rd.Settlements(r.Context(), session)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"session":     session,
				"count":       len(rows),
				"settlements": rows,
			})
		})
	}

	if d.registry != nil {
		mux.Handle(d.metricsPath, promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	}

	return mux
}
