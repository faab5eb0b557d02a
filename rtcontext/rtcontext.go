// Package rtcontext implements the per-instance Context (capability bag,
// resource table, typed-state map, sequence counter) and Budget (resource
// limits enforced against the engine).
package rtcontext

import (
	"sync"
	"sync/atomic"
)

// ResourceHandle is an opaque guest-held reference into the Context's
// resource table. The runtime never serializes one across a transport.
type ResourceHandle uint64

// Context aggregates everything a System-link provider or the engine itself
// may stash against one instance: installed capability state, a resource
// table, and an opaque typed-state map for providers to keep per-instance
// bookkeeping in.
type Context struct {
	mu sync.RWMutex

	capabilities map[string]any
	resources    map[ResourceHandle]any
	state        map[string]any
	nextHandle   uint64
	seq          uint64
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{
		capabilities: make(map[string]any),
		resources:    make(map[ResourceHandle]any),
		state:        make(map[string]any),
	}
}

// SetCapability installs guest-observable capability state under name,
// typically called by a System provider during builder setup.
func (c *Context) SetCapability(name string, v any) {
	c.mu.Lock()
	c.capabilities[name] = v
	c.mu.Unlock()
}

// Capability retrieves previously installed capability state.
func (c *Context) Capability(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.capabilities[name]
	return v, ok
}

// NewResource allocates a fresh handle for v and returns it.
func (c *Context) NewResource(v any) ResourceHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextHandle++
	h := ResourceHandle(c.nextHandle)
	c.resources[h] = v
	return h
}

// Resource resolves a handle previously returned by NewResource.
func (c *Context) Resource(h ResourceHandle) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.resources[h]
	return v, ok
}

// DropResource releases a handle.
func (c *Context) DropResource(h ResourceHandle) {
	c.mu.Lock()
	delete(c.resources, h)
	c.mu.Unlock()
}

// SetState stashes opaque per-instance provider state under key.
func (c *Context) SetState(key string, v any) {
	c.mu.Lock()
	c.state[key] = v
	c.mu.Unlock()
}

// State retrieves provider state previously stashed under key.
func (c *Context) State(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.state[key]
	return v, ok
}

// NextSeq returns a monotonically increasing sequence number, usable by
// providers that need one (e.g. to tag events they emit).
func (c *Context) NextSeq() uint64 { return atomic.AddUint64(&c.seq, 1) }

// Builder accumulates capability installs and environment (it has no
// preopen support) before
// Finish produces an immutable Context. The instance builder (package
// builder) drives this during instantiate().
type Builder struct {
	ctx *Context
	env map[string]string
}

// NewBuilder starts an empty Context under construction.
func NewBuilder() *Builder {
	return &Builder{ctx: NewContext(), env: make(map[string]string)}
}

// WithCapability installs capability state, returning the builder for
// chaining.
func (b *Builder) WithCapability(name string, v any) *Builder {
	b.ctx.SetCapability(name, v)
	return b
}

// WithEnv records an environment variable visible to providers that consult
// it (e.g. a filesystem preopen provider choosing a root).
func (b *Builder) WithEnv(key, value string) *Builder {
	b.env[key] = value
	return b
}

// Env returns the environment accumulated so far.
func (b *Builder) Env() map[string]string { return b.env }

// Finish materializes the Context. The builder must not be reused
// afterward.
func (b *Builder) Finish() *Context {
	for k, v := range b.env {
		b.ctx.SetState("env:"+k, v)
	}
	return b.ctx
}
