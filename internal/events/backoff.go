package events

import (
	"math/rand"
	"time"
)

// BackoffConfig bounds redelivery delays.
type BackoffConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// nextDelay computes an exponential backoff delay with full jitter.
// attempt is 1-based (1 => up to BaseDelay).
func nextDelay(attempt int, cfg BackoffConfig, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 1 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}

	delay := cfg.BaseDelay << (attempt - 1)
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return time.Duration(rng.Int63n(int64(delay) + 1))
}
