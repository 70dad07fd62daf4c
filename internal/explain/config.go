package explain

import (
	"fmt"
	"time"
)

// Config bounds the explanation service.
type Config struct {
	// Timeout caps one generation call, retries included.
	Timeout time.Duration `mapstructure:"timeout"`

	// RatePerSecond and Burst configure the token bucket in front of the
	// provider. Calls beyond it get rule-based text.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`

	// QueueSize bounds pending async jobs; extra jobs are dropped.
	QueueSize int `mapstructure:"queue_size"`
	Workers   int `mapstructure:"workers"`

	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:       3 * time.Second,
		RatePerSecond: 2,
		Burst:         5,
		QueueSize:     32,
		Workers:       2,
		MaxTokens:     300,
		Temperature:   0.3,
	}
}

// Validate rejects unusable bounds.
func (c Config) Validate() error {
	switch {
	case c.Timeout <= 0:
		return fmt.Errorf("explain.timeout must be positive")
	case c.RatePerSecond <= 0 || c.Burst < 1:
		return fmt.Errorf("explain.rate_per_second and explain.burst must be positive")
	case c.QueueSize < 1 || c.Workers < 1:
		return fmt.Errorf("explain.queue_size and explain.workers must be at least 1")
	}
	return nil
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = d.RatePerSecond
	}
	if c.Burst < 1 {
		c.Burst = d.Burst
	}
	if c.QueueSize < 1 {
		c.QueueSize = d.QueueSize
	}
	if c.Workers < 1 {
		c.Workers = d.Workers
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	return c
}
