package spdnet

import (
	"github.com/atsika/spdnet/logging"
)

// Pool is the hook surface a surrounding node pool must implement: get a
// recyclable node of a kind, register a freshly allocated one, and recycle
// one on destroy. It references concrete *Node/*Context rather than
// transport-level types, so — unlike transport.Socket/Driver — it is
// declared here in the root package rather than in a leaf package: the
// `pool` package imports spdnet to implement it, not the other way around,
// which keeps Context free of a dependency on any particular pool policy.
type Pool interface {
	Get(ctx *Context, kind SocketKind) *Node
	Add(ctx *Context, n *Node)
	Put(ctx *Context, n *Node)
}

// Context is the process-wide state a caller creates once, before any node,
// and destroys last. It holds the injected Logger and Metrics every Node
// logs/counts through, and a single owned node pool. Node and Pool hold
// Context back only as a non-owning reference: built once, referenced by
// many, owning cancellation.
type Context struct {
	cfg *Config

	log     logging.Logger
	metrics Metrics
	pool    Pool
}

// New builds a Context from the given options. The core assumes exactly
// one Context per process lifetime but does not enforce uniqueness.
func New(opts ...Option) (*Context, error) {
	cfg := applyConfig(opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Context{
		cfg:     cfg,
		log:     cfg.log,
		metrics: cfg.metrics,
		pool:    cfg.pool,
	}, nil
}

// Close cancels the Context's base context (see WithContext). Any Node still bound or
// connected against this Context should be destroyed first; Close does not
// walk the pool to do that on the caller's behalf.
func (c *Context) Close() error {
	if c.cfg.cancel != nil {
		c.cfg.cancel()
	}
	return nil
}

// Logger returns the Context's injected Logger, never nil (defaults to
// logging.Nop{}).
func (c *Context) Logger() logging.Logger { return c.log }

// Metrics returns the Context's injected Metrics, never nil.
func (c *Context) Metrics() Metrics { return c.metrics }

// Pool returns the Context's configured Pool, or nil if none was set via
// WithPool.
func (c *Context) Pool() Pool { return c.pool }
