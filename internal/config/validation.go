package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/law-makers/batchcrawl/internal/batch"
	urlutil "github.com/law-makers/batchcrawl/internal/utils/url"
)

func validate(c *Config) error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if _, err := batch.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if err := c.Batch.Validate(); err != nil {
		return err
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.HTTP.MaxConns <= 0 || c.HTTP.MaxConnsPerHost <= 0 {
		return fmt.Errorf("connection limits must be > 0")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	for _, p := range c.HTTP.Proxies {
		if err := urlutil.ValidateURL(p); err != nil {
			return fmt.Errorf("proxy %q: %w", p, err)
		}
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be > 0")
	}
	return nil
}
