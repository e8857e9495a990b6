package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "updown"

// Metrics holds every collector exported by the server.
type Metrics struct {
	Sessions        prometheus.Gauge
	PendingWagers   prometheus.Gauge
	MarketPrice     *prometheus.GaugeVec
	Placements      *prometheus.CounterVec
	Settlements     *prometheus.CounterVec
	Winnings        prometheus.Counter
	TickDuration    prometheus.Histogram
	Ticks           prometheus.Counter
	HubDropped      prometheus.Counter
	HubEvicted      prometheus.Counter
	FramesReceived  *prometheus.CounterVec
	AuditWritten    prometheus.Counter
	AuditDropped    prometheus.Counter
	AuditFlushError prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Connected sessions.",
		}),
		PendingWagers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_wagers",
			Help:      "Wagers awaiting the next tick.",
		}),
		MarketPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_price",
			Help:      "Current price per market.",
		}, []string{"market"}),
		Placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placements_total",
			Help:      "Placement requests by result.",
		}, []string{"result"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Wagers leaving the ledger by market and outcome.",
		}, []string{"market", "outcome"}),
		Winnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "winnings_total",
			Help:      "Sum of winnings credited.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent advancing prices and settling wagers.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler ticks processed.",
		}),
		HubDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_dropped_total",
			Help:      "Events not delivered because the outbox was closed or full.",
		}),
		HubEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_evicted_total",
			Help:      "Sessions evicted for lagging behind.",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames by event and status.",
		}, []string{"event", "status"}),
		AuditWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_written_total",
			Help:      "Settlement records written to the audit store.",
		}),
		AuditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Settlement records dropped before reaching the store.",
		}),
		AuditFlushError: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_flush_errors_total",
			Help:      "Failed audit batch writes.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Sessions, m.PendingWagers, m.MarketPrice,
			m.Placements, m.Settlements, m.Winnings,
			m.TickDuration, m.Ticks,
			m.HubDropped, m.HubEvicted, m.FramesReceived,
			m.AuditWritten, m.AuditDropped, m.AuditFlushError,
		)
	}
	return m
}

// SetSessions records the number of connected sessions.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(n))
}

// SetPending records the ledger size.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingWagers.Set(float64(n))
}

// ObservePrice records the latest price of market.
func (m *Metrics) ObservePrice(market string, price float64) {
	if m == nil {
		return
	}
	m.MarketPrice.WithLabelValues(market).Set(price)
}

// IncPlacement counts a placement with result "accepted" or a rejection reason.
func (m *Metrics) IncPlacement(result string) {
	if m == nil {
		return
	}
	m.Placements.WithLabelValues(result).Inc()
}

// IncSettlement counts a wager leaving the ledger.
func (m *Metrics) IncSettlement(market, outcome string, winnings float64) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(market, outcome).Inc()
	if winnings > 0 {
		m.Winnings.Add(winnings)
	}
}

// ObserveTick records one scheduler tick.
func (m *Metrics) ObserveTick(seconds float64) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.TickDuration.Observe(seconds)
}

// IncHubDropped counts an undelivered event.
func (m *Metrics) IncHubDropped() {
	if m == nil {
		return
	}
	m.HubDropped.Inc()
}

// IncHubEvicted counts an evicted session.
func (m *Metrics) IncHubEvicted() {
	if m == nil {
		return
	}
	m.HubEvicted.Inc()
}

// IncFrame counts an inbound frame.
func (m *Metrics) IncFrame(event, status string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(event, status).Inc()
}

// AddAuditWritten counts records persisted by the audit writer.
func (m *Metrics) AddAuditWritten(n int) {
	if m == nil {
		return
	}
	m.AuditWritten.Add(float64(n))
}

// IncAuditDropped counts a record the audit writer could not accept.
func (m *Metrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}

// IncAuditFlushError counts a failed batch write.
func (m *Metrics) IncAuditFlushError() {
	if m == nil {
		return
	}
	m.AuditFlushError.Inc()
}
