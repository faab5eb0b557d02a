// Package pool manages reusable RPC Fabric clients keyed by peer-id, so
// callers dialing the same peer repeatedly share one underlying Client and
// its pump rather than spawning a fresh transport per call.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"isocore/client"
)

// Dialer establishes a new Transport-backed Client for a peer-id. Callers
// supply an implementation wrapping whichever transport (P2PStream,
// WebRTCChannel, Loopback) their deployment uses.
type Dialer interface {
	Dial(ctx context.Context, peerID string) (*client.Client, error)
}

type pooledClient struct {
	*client.Client
	peerID   string
	lastUsed time.Time
}

// Pool caches live Clients per peer-id, closing ones that sit idle past ttl.
type Pool struct {
	dialer Dialer

	mu      sync.Mutex
	clients map[string]*pooledClient
	idleTTL time.Duration

	closing   chan struct{}
	closeOnce sync.Once
}

// New returns a Pool that dials through d and reaps clients idle past ttl.
// A non-positive ttl disables reaping.
func New(d Dialer, ttl time.Duration) *Pool {
	p := &Pool{
		dialer:  d,
		clients: make(map[string]*pooledClient),
		idleTTL: ttl,
		closing: make(chan struct{}),
	}
	if ttl > 0 {
		go p.reaper()
	}
	return p
}

// Acquire returns the cached Client for peerID, dialing one if none exists.
// A cached Client is returned without checking whether its transport has
// failed; Evict is what drops such a client.
func (p *Pool) Acquire(ctx context.Context, peerID string) (*client.Client, error) {
	p.mu.Lock()
	if pc, ok := p.clients[peerID]; ok {
		pc.lastUsed = time.Now()
		p.mu.Unlock()
		return pc.Client, nil
	}
	p.mu.Unlock()

	if p.dialer == nil {
		return nil, errors.New("pool: dialer not configured")
	}
	c, err := p.dialer.Dial(ctx, peerID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pc, ok := p.clients[peerID]; ok {
		// Lost the race to another Acquire; keep the existing client and
		// drop the one we just dialed.
		_ = c.Close()
		pc.lastUsed = time.Now()
		return pc.Client, nil
	}
	p.clients[peerID] = &pooledClient{Client: c, peerID: peerID, lastUsed: time.Now()}
	return c, nil
}

// Evict closes and removes the cached client for peerID, if any. Callers use
// this after observing a transport-level failure that Acquire's reuse
// wouldn't otherwise notice.
func (p *Pool) Evict(peerID string) {
	p.mu.Lock()
	pc, ok := p.clients[peerID]
	if ok {
		delete(p.clients, peerID)
	}
	p.mu.Unlock()
	if ok {
		_ = pc.Close()
	}
}

// Len reports the number of cached clients.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Close closes every cached client and stops the reaper.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closing)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, pc := range p.clients {
			_ = pc.Close()
		}
		p.clients = make(map[string]*pooledClient)
	})
}

func (p *Pool) reaper() {
	ticker := time.NewTicker(p.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-p.idleTTL)
			p.mu.Lock()
			for peerID, pc := range p.clients {
				if pc.lastUsed.Before(cutoff) {
					_ = pc.Close()
					delete(p.clients, peerID)
				}
			}
			p.mu.Unlock()
		case <-p.closing:
			return
		}
	}
}
