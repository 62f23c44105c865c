// Package pool provides the reference implementation of the hook surface
// spdnet.Context needs from a node pool: recycle nodes by kind, track every
// live node for a keepalive/async-timeout scan, and own the worker.Task
// that drives that scan. Not a required dependency of the core — an
// embedder may supply any type satisfying spdnet.Pool instead.
package pool

import (
	"container/list"
	"sync"
	"time"

	"github.com/cornelk/hashmap"

	spdnet "github.com/atsika/spdnet"
	"github.com/atsika/spdnet/logging"
	"github.com/atsika/spdnet/worker"
)

// DefaultPool is the reference spdnet.Pool implementation. Recyclable
// nodes are kept in a free list per SocketKind, keyed through
// github.com/cornelk/hashmap — a lock-free concurrent map, a good fit here
// since the pool is read (Get) far more often than written (Add/Put). The
// five intrusive list roles are modeled as container/list.Element handles
// embedded directly in each spdnet.Node (spdnet.ListLinks) rather than a
// second map-based indirection layer.
type DefaultPool struct {
	log logging.Logger

	free hashmap.HashMap // spdnet.SocketKind -> *list.List, freelist of recycled nodes per kind

	mu           sync.Mutex
	allNodes     *list.List
	pollIn       *list.List
	pollOut      *list.List
	pollErr      *list.List
	recvTimeouts *list.List

	task *worker.Task
}

// New builds a DefaultPool and starts its keepalive/async-timeout scan
// loop as a worker.Task, stopped by calling (*DefaultPool).Close.
func New(opts ...Option) *DefaultPool {
	cfg := defaultOptions()
	for _, o := range opts {
		o(cfg)
	}

	p := &DefaultPool{
		log:          cfg.log,
		allNodes:     list.New(),
		pollIn:       list.New(),
		pollOut:      list.New(),
		pollErr:      list.New(),
		recvTimeouts: list.New(),
	}
	p.task = worker.New(func(stop <-chan struct{}) {
		p.scanLoop(stop, cfg.scanInterval)
	})
	p.task.Start()
	return p
}

func (p *DefaultPool) freelist(kind spdnet.SocketKind) *list.List {
	if v, ok := p.free.Get(kind); ok {
		return v.(*list.List)
	}
	fl := list.New()
	p.free.Insert(kind, fl)
	return fl
}

// Get returns a recyclable node of kind, or nil if the freelist for that
// kind is empty.
func (p *DefaultPool) Get(ctx *spdnet.Context, kind spdnet.SocketKind) *spdnet.Node {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.free.Get(kind)
	if !ok {
		return nil
	}
	fl := v.(*list.List)
	elem := fl.Front()
	if elem == nil {
		return nil
	}
	fl.Remove(elem)
	n, _ := elem.Value.(*spdnet.Node)
	return n
}

// Add registers a freshly allocated node for scanning (all-nodes list
// membership); it is not yet recyclable until Put.
func (p *DefaultPool) Add(ctx *spdnet.Context, n *spdnet.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n.Links().AllNodes = p.allNodes.PushBack(n)
}

// Put recycles a node: removed from every scan list and pushed onto its
// kind's freelist so a future Get can reuse it.
func (p *DefaultPool) Put(ctx *spdnet.Context, n *spdnet.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unlinkLocked(n)
	p.freelist(n.Kind()).PushBack(n)
}

func (p *DefaultPool) unlinkLocked(n *spdnet.Node) {
	links := n.Links()
	if links.AllNodes != nil {
		p.allNodes.Remove(links.AllNodes)
		links.AllNodes = nil
	}
	if links.PollIn != nil {
		p.pollIn.Remove(links.PollIn)
		links.PollIn = nil
	}
	if links.PollOut != nil {
		p.pollOut.Remove(links.PollOut)
		links.PollOut = nil
	}
	if links.PollErr != nil {
		p.pollErr.Remove(links.PollErr)
		links.PollErr = nil
	}
	if links.RecvTimeouts != nil {
		p.recvTimeouts.Remove(links.RecvTimeouts)
		links.RecvTimeouts = nil
	}
}

// AllNodes, PollIn, PollOut, PollErr, RecvTimeouts expose the five
// intrusive list roles, for callers that need to inspect pool membership
// directly (mainly tests).
func (p *DefaultPool) AllNodes() *list.List     { return p.allNodes }
func (p *DefaultPool) PollIn() *list.List       { return p.pollIn }
func (p *DefaultPool) PollOut() *list.List      { return p.pollOut }
func (p *DefaultPool) PollErr() *list.List      { return p.pollErr }
func (p *DefaultPool) RecvTimeouts() *list.List { return p.recvTimeouts }

// scanLoop is the pool's worker.Task body: on every tick it walks
// all-nodes once, invoking each node's keepalive check and PollAsync.
func (p *DefaultPool) scanLoop(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.scanOnce()
		}
	}
}

func (p *DefaultPool) scanOnce() {
	p.mu.Lock()
	nodes := make([]*spdnet.Node, 0, p.allNodes.Len())
	for e := p.allNodes.Front(); e != nil; e = e.Next() {
		if n, ok := e.Value.(*spdnet.Node); ok {
			nodes = append(nodes, n)
		}
	}
	p.mu.Unlock()

	now := time.Now()
	for _, n := range nodes {
		if deadline, ok := n.AliveDeadline(); ok && now.After(deadline) {
			if err := n.Alive(); err != nil {
				p.log.Warnf("spdnet: keepalive send failed: %v", err)
			}
		}
		n.PollAsync()
	}
}

// Close stops the pool's scan loop.
func (p *DefaultPool) Close() error {
	p.task.Stop()
	return nil
}
