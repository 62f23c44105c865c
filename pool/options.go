package pool

import (
	"time"

	"github.com/atsika/spdnet/logging"
)

// Option configures a DefaultPool, matching the root package's
// functional-options shape.
type Option func(*poolConfig)

type poolConfig struct {
	log          logging.Logger
	scanInterval time.Duration
}

func defaultOptions() *poolConfig {
	return &poolConfig{
		log:          logging.Nop{},
		scanInterval: 100 * time.Millisecond,
	}
}

// WithLogger sets the Logger the pool's scan loop reports keepalive
// failures through.
func WithLogger(l logging.Logger) Option {
	return func(c *poolConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithScanInterval sets how often the pool's worker task scans keepalive
// deadlines and async-receive registrations.
func WithScanInterval(d time.Duration) Option {
	return func(c *poolConfig) {
		if d > 0 {
			c.scanInterval = d
		}
	}
}
