package greeting

import "time"

// Config holds configuration for the Responder.
type Config struct {
	// SaveTimeout bounds the history write made after a stream ends.
	// Zero or negative means use the default of 5 seconds.
	SaveTimeout time.Duration
}

func (c Config) saveTimeout() time.Duration {
	if c.SaveTimeout <= 0 {
		return 5 * time.Second
	}
	return c.SaveTimeout
}
