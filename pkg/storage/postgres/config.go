package postgres

import "time"

// Config holds the connection pool and schema settings of the store.
type Config struct {
	// DSN is the PostgreSQL connection string, e.g.
	// "postgres://greetings:secret@db:5432/greetings?sslmode=require".
	DSN string

	// MaxConns bounds the pool. Default: 25.
	MaxConns int32

	// MinConns idle connections are kept open. Default: 2.
	MinConns int32

	// MaxConnLifetime recycles connections older than this. Default: 30m.
	MaxConnLifetime time.Duration

	// HealthCheckPeriod is how often idle connections are checked. Default: 1m.
	HealthCheckPeriod time.Duration

	// MigrateOnStart applies pending schema migrations in New.
	MigrateOnStart bool
}

func (c *Config) defaults() {
	if c.MaxConns <= 0 {
		c.MaxConns = 25
	}
	if c.MinConns <= 0 {
		c.MinConns = 2
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
	if c.HealthCheckPeriod <= 0 {
		c.HealthCheckPeriod = time.Minute
	}
}
