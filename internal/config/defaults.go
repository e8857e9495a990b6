package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultListenAddr      = ":3000"
	DefaultWSPath          = "/ws"
	DefaultWriteTimeout    = 5 * time.Second
	DefaultPingInterval    = 25 * time.Second
	DefaultPongTimeout     = 60 * time.Second
	DefaultOutboxLimit     = 256
	DefaultReadLimit       = 4096
	DefaultTickInterval    = 5 * time.Second
	DefaultStartingBalance = 1000
	DefaultPriceFloor      = 10
	DefaultHistoryCapacity = 50
	DefaultStartPrice      = 100
	DefaultAuditDriver     = "sqlite"
	DefaultSQLitePath      = "updown-audit.db"
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 4
	DefaultMinConns        = 1
	DefaultBatchSize       = 500
	DefaultFlushInterval   = 2 * time.Second
	DefaultBufferSize      = 100000
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// DefaultMarkets is used when the config lists no markets.
func DefaultMarkets() []MarketConfig {
	return []MarketConfig{
		{Name: "calm", Multiplier: 1.8, Volatility: 0.5, StartPrice: DefaultStartPrice},
		{Name: "normal", Multiplier: 1.9, Volatility: 1.0, StartPrice: DefaultStartPrice},
		{Name: "wild", Multiplier: 2.0, Volatility: 2.0, StartPrice: DefaultStartPrice},
	}
}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.PongTimeout == 0 {
		c.Server.PongTimeout = DefaultPongTimeout
	}
	if c.Server.OutboxLimit == 0 {
		c.Server.OutboxLimit = DefaultOutboxLimit
	}
	if c.Server.ReadLimit == 0 {
		c.Server.ReadLimit = DefaultReadLimit
	}

	// Engine defaults
	if c.Engine.TickInterval == 0 {
		c.Engine.TickInterval = DefaultTickInterval
	}
	if c.Engine.StartingBalance == 0 {
		c.Engine.StartingBalance = DefaultStartingBalance
	}
	if c.Engine.PriceFloor == 0 {
		c.Engine.PriceFloor = DefaultPriceFloor
	}
	if c.Engine.HistoryCapacity == 0 {
		c.Engine.HistoryCapacity = DefaultHistoryCapacity
	}

	// Markets defaults
	if len(c.Markets) == 0 {
		c.Markets = DefaultMarkets()
	}
	for i := range c.Markets {
		if c.Markets[i].StartPrice == 0 {
			c.Markets[i].StartPrice = DefaultStartPrice
		}
	}

	// Audit defaults
	if c.Audit.Driver == "" {
		c.Audit.Driver = DefaultAuditDriver
	}
	if c.Audit.SQLitePath == "" {
		c.Audit.SQLitePath = DefaultSQLitePath
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = DefaultBatchSize
	}
	if c.Audit.FlushInterval == 0 {
		c.Audit.FlushInterval = DefaultFlushInterval
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = DefaultBufferSize
	}
	applyDBDefaults(&c.Audit.Postgres)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
