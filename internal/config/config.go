package config

import "time"

// Config is the root configuration for an updown server.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Engine  EngineConfig   `yaml:"engine"`
	Markets []MarketConfig `yaml:"markets"`
	Audit   AuditConfig    `yaml:"audit"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Logging LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds WebSocket listener settings.
type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	WSPath         string        `yaml:"ws_path"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	OutboxLimit    int           `yaml:"outbox_limit"` // Queued frames per session before eviction
	ReadLimit      int64         `yaml:"read_limit"`   // Max inbound frame bytes
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// EngineConfig holds simulation settings.
type EngineConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	StartingBalance float64       `yaml:"starting_balance"`
	PriceFloor      float64       `yaml:"price_floor"`
	HistoryCapacity int           `yaml:"history_capacity"`
	Seed            uint64        `yaml:"seed"` // 0 picks a random seed
}

// MarketConfig describes one simulated market.
type MarketConfig struct {
	Name       string  `yaml:"name"`
	Multiplier float64 `yaml:"multiplier"`
	Volatility float64 `yaml:"volatility"`
	StartPrice float64 `yaml:"start_price"`
}

// AuditConfig holds settlement audit settings.
type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Driver        string        `yaml:"driver"` // "postgres" or "sqlite"
	SQLitePath    string        `yaml:"sqlite_path"`
	Postgres      DBConfig      `yaml:"postgres"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds health, debug and Prometheus listener settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds slog handler settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
