package spdnet

import (
	"context"
	"time"

	"github.com/atsika/spdnet/logging"
)

const (
	// MinAliveIntervalFloor is the least keepalive interval SetAlive will
	// accept; anything smaller is floored to this value.
	MinAliveIntervalFloor = 5 * time.Second

	// DefaultAliveInterval is the keepalive cadence a NODE uses when the
	// caller does not call SetAlive explicitly.
	DefaultAliveInterval = 30 * time.Second

	// DefaultLinger is the linger a Config carries by default (see
	// WithLinger). No transport driver in this package reads it; their
	// sockets get no linger setting.
	DefaultLinger = 1000 * time.Millisecond

	// DefaultRecvTimeout is used by recvmsg_timeout when no explicit
	// timeout is given a node-level default.
	DefaultRecvTimeout = 5 * time.Second

	// DefaultPollInterval is the poll interval a Config carries by default
	// (see WithPollInterval).
	DefaultPollInterval = 100 * time.Millisecond
)

// Option defines a functional option for building a Context.
type Option func(*Config)

// Config holds runtime settings shared by every Node created against a
// Context. Zero value yields sane defaults via defaultConfig(); callers
// modify it through functional options.
type Config struct {
	ctx    context.Context
	cancel context.CancelFunc

	log     logging.Logger
	metrics Metrics
	pool    Pool

	scheme         string
	sockidSize     int
	metaNameSize   int
	minAlive       time.Duration
	defaultAlive   time.Duration
	linger         time.Duration
	pollInterval   time.Duration
	recvTimeout    time.Duration
	secureRegister bool
	zmqBugWorkaround bool
}

// Validate checks if the configuration is sane.
func (c *Config) Validate() error {
	if c.sockidSize <= 0 || c.sockidSize > SockidSize {
		return ErrBadOption
	}
	if c.metaNameSize <= 0 || c.metaNameSize > MetaNameSize {
		return ErrBadOption
	}
	if c.minAlive <= 0 {
		return ErrBadOption
	}
	return nil
}

// defaultConfig returns a Config with library defaults.
func defaultConfig() *Config {
	ctx, cancel := context.WithCancel(context.Background())
	return &Config{
		ctx:          ctx,
		cancel:       cancel,
		log:          logging.Nop{},
		metrics:      NewDefaultMetrics(),
		scheme:       "tcp",
		sockidSize:   SockidSize,
		metaNameSize: MetaNameSize,
		minAlive:     MinAliveIntervalFloor,
		defaultAlive: DefaultAliveInterval,
		linger:       DefaultLinger,
		pollInterval: DefaultPollInterval,
		recvTimeout:  DefaultRecvTimeout,
	}
}

// applyConfig builds a runtime config by applying the given options on top
// of defaults.
func applyConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithContext sets the base context a Context holds; Context.Close cancels
// it. No pool worker or keepalive scan watches it: pool.DefaultPool's scan
// loop is stopped by its own Close.
func WithContext(ctx context.Context) Option {
	return func(c *Config) {
		if ctx != nil {
			c.ctx, c.cancel = context.WithCancel(ctx)
		}
	}
}

// WithLogger sets the Logger every node created against this Context logs
// through. Defaults to logging.Nop{}.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets a custom Metrics implementation. Defaults to
// DefaultMetrics, an atomic-counter implementation.
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithScheme sets the transport.Driver scheme every Node created against
// this Context opens its socket against (default "tcp"). Must name a
// scheme already registered via transport.Register.
func WithScheme(scheme string) Option {
	return func(c *Config) {
		if scheme != "" {
			c.scheme = scheme
		}
	}
}

// WithMinAliveInterval overrides the floor SetAlive clamps its interval
// argument to. Zero or negative is ignored.
func WithMinAliveInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.minAlive = d
		}
	}
}

// WithAliveInterval sets the keepalive cadence a NODE uses by default, i.e.
// before any explicit SetAlive call.
func WithAliveInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.defaultAlive = d
		}
	}
}

// WithLinger sets the linger duration stored on the Config. No transport
// driver in this package reads it, so it does not change how sockets close.
func WithLinger(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.linger = d
		}
	}
}

// WithSockidSize overrides the maximum sockid/identity length, default
// SockidSize (64). Must be in (0, SockidSize].
func WithSockidSize(n int) Option {
	return func(c *Config) {
		if n > 0 && n <= SockidSize {
			c.sockidSize = n
		}
	}
}

// WithMetaName overrides the fixed width of the meta trailer's name field,
// default MetaNameSize (32). Must be in (0, MetaNameSize].
func WithMetaName(n int) Option {
	return func(c *Config) {
		if n > 0 && n <= MetaNameSize {
			c.metaNameSize = n
		}
	}
}

// WithPollInterval sets the poll interval stored on the Config.
// pool.DefaultPool does not read it; its scan interval is set with
// pool.WithScanInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithRecvTimeout sets the default timeout recvmsg_timeout uses when a node
// does not specify one explicitly.
func WithRecvTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.recvTimeout = d
		}
	}
}

// WithPool sets the Pool a Context's nodes are recycled through. Without
// this option, every Node created against the Context is allocated fresh
// and Destroy frees it outright instead of recycling it through a pool —
// an unpooled Context is a valid, if less efficient, way to use a handful
// of nodes (tests, short-lived tools) without standing up a pool/DefaultPool.
func WithPool(p Pool) Option {
	return func(c *Config) {
		if p != nil {
			c.pool = p
		}
	}
}

// WithSecureRegister enables sealing the REGISTER/UNREGISTER content frame
// with a Noise NN handshake. Default false, which preserves the plaintext
// wire format exactly.
func WithSecureRegister(enabled bool) Option {
	return func(c *Config) { c.secureRegister = enabled }
}

// WithZMQBugWorkaround enables a 10ms sleep before the first frame of every
// sendmsg, accommodating a known transport timing quirk on some drivers.
// Default false. A runtime option rather than a build-time flag, so it can
// be flipped without a rebuild.
func WithZMQBugWorkaround(enabled bool) Option {
	return func(c *Config) { c.zmqBugWorkaround = enabled }
}
