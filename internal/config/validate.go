package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return errors.New("server.listen_addr is required")
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path must start with /, got %q", c.Server.WSPath)
	}
	if c.Server.WriteTimeout <= 0 {
		return errors.New("server.write_timeout must be > 0")
	}
	if c.Server.PingInterval <= 0 {
		return errors.New("server.ping_interval must be > 0")
	}
	if c.Server.PongTimeout <= c.Server.PingInterval {
		return fmt.Errorf("server.pong_timeout (%s) must exceed server.ping_interval (%s)", c.Server.PongTimeout, c.Server.PingInterval)
	}
	if c.Server.OutboxLimit < 1 {
		return errors.New("server.outbox_limit must be >= 1")
	}
	if c.Server.ReadLimit < 1 {
		return errors.New("server.read_limit must be >= 1")
	}

	if c.Engine.TickInterval <= 0 {
		return errors.New("engine.tick_interval must be > 0")
	}
	if !positive(c.Engine.StartingBalance) {
		return errors.New("engine.starting_balance must be > 0")
	}
	if !positive(c.Engine.PriceFloor) {
		return errors.New("engine.price_floor must be > 0")
	}
	if c.Engine.HistoryCapacity < 1 {
		return errors.New("engine.history_capacity must be >= 1")
	}

	if err := c.validateMarkets(); err != nil {
		return err
	}

	if c.Audit.Enabled {
		if err := c.Audit.validate(); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (c *Config) validateMarkets() error {
	if len(c.Markets) == 0 {
		return errors.New("markets must list at least one market")
	}
	seen := make(map[string]bool, len(c.Markets))
	for i, m := range c.Markets {
		prefix := fmt.Sprintf("markets[%d]", i)
		if m.Name == "" {
			return fmt.Errorf("%s.name is required", prefix)
		}
		if seen[m.Name] {
			return fmt.Errorf("%s.name %q is duplicated", prefix, m.Name)
		}
		seen[m.Name] = true

		if !positive(m.Multiplier) {
			return fmt.Errorf("%s.multiplier must be > 0", prefix)
		}
		if m.Volatility < 0 || math.IsNaN(m.Volatility) || math.IsInf(m.Volatility, 0) {
			return fmt.Errorf("%s.volatility must be >= 0", prefix)
		}
		if !(m.StartPrice >= c.Engine.PriceFloor) || math.IsInf(m.StartPrice, 0) {
			return fmt.Errorf("%s.start_price (%v) must be >= engine.price_floor (%v)", prefix, m.StartPrice, c.Engine.PriceFloor)
		}
	}
	return nil
}

func (a *AuditConfig) validate() error {
	switch a.Driver {
	case "sqlite":
		if a.SQLitePath == "" {
			return errors.New("audit.sqlite_path is required")
		}
	case "postgres":
		if err := a.Postgres.validate("audit.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("audit.driver must be postgres or sqlite, got %q", a.Driver)
	}
	if a.BatchSize < 1 {
		return errors.New("audit.batch_size must be >= 1")
	}
	if a.FlushInterval <= 0 {
		return errors.New("audit.flush_interval must be > 0")
	}
	if a.BufferSize < 1 {
		return errors.New("audit.buffer_size must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
