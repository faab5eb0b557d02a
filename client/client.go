// Package client implements the RPC Fabric's async request/response layer:
// sequence allocation, pending-request correlation, timeout, and a
// background demux pump that routes replies back to their caller by seq.
package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"isocore/frame"
	"isocore/transport"
)

// DefaultTimeout is the deadline applied to Call when the caller's context
// carries none.
const DefaultTimeout = 30 * time.Second

type delivery struct {
	bytes []byte
	err   error
}

type pendingSlot struct {
	ch chan delivery
}

func newPendingSlot() *pendingSlot { return &pendingSlot{ch: make(chan delivery, 1)} }

func (s *pendingSlot) deliver(d delivery) {
	select {
	case s.ch <- d:
	default:
	}
}

// Client wraps one Transport and brokers Call/Reply correlation over it.
type Client struct {
	t transport.Transport

	seq uint64 // atomically incremented

	mu      sync.Mutex
	pending map[uint64]*pendingSlot

	limiter *rate.Limiter // nil means unlimited

	pumpDone chan struct{}
}

// New wraps t and spawns the demux pump. Outbound calls are unthrottled.
func New(t transport.Transport) *Client {
	return newClient(t, nil)
}

// NewLimited wraps t like New but throttles outbound Call traffic to rps
// calls per second, bursting up to burst — a per-peer guard against a
// single misbehaving caller flooding the transport.
func NewLimited(t transport.Transport, rps float64, burst int) *Client {
	return newClient(t, rate.NewLimiter(rate.Limit(rps), burst))
}

func newClient(t transport.Transport, limiter *rate.Limiter) *Client {
	c := &Client{
		t:        t,
		pending:  make(map[uint64]*pendingSlot),
		limiter:  limiter,
		pumpDone: make(chan struct{}),
	}
	go c.pump()
	return c
}

func (c *Client) nextSeq() uint64 { return atomic.AddUint64(&c.seq, 1) }

func (c *Client) insertPending(seq uint64, slot *pendingSlot) {
	c.mu.Lock()
	c.pending[seq] = slot
	c.mu.Unlock()
}

func (c *Client) takePending(seq uint64) (*pendingSlot, bool) {
	c.mu.Lock()
	slot, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	c.mu.Unlock()
	return slot, ok
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	slots := c.pending
	c.pending = make(map[uint64]*pendingSlot)
	c.mu.Unlock()
	for _, slot := range slots {
		slot.deliver(delivery{err: &TransportErr{Err: err}})
	}
}

// pump is the single long-lived task that demultiplexes incoming replies.
// It never blocks on a caller: delivery is a buffered, non-blocking send.
func (c *Client) pump() {
	defer close(c.pumpDone)
	ctx := context.Background()
	for {
		b, err := c.t.Recv(ctx)
		if err == transport.ErrClosed {
			c.failAllPending(fmt.Errorf("transport closed"))
			return
		}
		if err != nil {
			logrus.Warnf("client: pump: transport error: %v", err)
			c.failAllPending(err)
			return
		}
		seq, err := frame.DecodeSeq(b)
		if err != nil {
			logrus.Warnf("client: pump: dropping unparseable message: %v", err)
			continue
		}
		slot, ok := c.takePending(seq)
		if !ok {
			logrus.Debugf("client: pump: dropping unmatched reply seq=%d", seq)
			continue
		}
		slot.deliver(delivery{bytes: b})
	}
}

// Call sends target.method(argsSlab) and awaits the correlated reply.
// argsSlab must be a pre-encoded list scope (see the transcoder package).
// If ctx carries no deadline, DefaultTimeout is applied.
func (c *Client) Call(ctx context.Context, target, method string, argsSlab []byte) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Cancelled{Seq: 0}
		}
	}

	seq := c.nextSeq()
	slot := newPendingSlot()
	c.insertPending(seq, slot)

	callBytes, err := frame.EncodeCall(&frame.Call{Seq: seq, Target: target, Method: method, Args: argsSlab})
	if err != nil {
		c.takePending(seq)
		return nil, &FrameErr{Err: err}
	}
	if err := c.t.Send(ctx, callBytes); err != nil {
		c.takePending(seq)
		return nil, &TransportErr{Err: err}
	}

	select {
	case d := <-slot.ch:
		if d.err != nil {
			return nil, d.err
		}
		return c.decodeReply(seq, d.bytes)
	case <-ctx.Done():
		c.takePending(seq)
		// A reply may already have been delivered between Done firing and
		// us observing it; prefer it over reporting a spurious timeout.
		select {
		case d := <-slot.ch:
			if d.err == nil {
				return c.decodeReply(seq, d.bytes)
			}
		default:
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Timeout{Seq: seq}
		}
		return nil, &Cancelled{Seq: seq}
	}
}

func (c *Client) decodeReply(seq uint64, b []byte) ([]byte, error) {
	env, err := frame.Decode(b)
	if err != nil {
		return nil, &FrameErr{Err: err}
	}
	if env.IsCall {
		return nil, &FrameErr{Err: fmt.Errorf("expected a Reply envelope, got a Call")}
	}
	if env.Reply.Seq != seq {
		return nil, &SeqMismatch{Want: seq, Got: env.Reply.Seq}
	}
	if env.Reply.Err != nil {
		return nil, &Remote{Reason: env.Reply.Err}
	}
	return env.Reply.Results, nil
}

// Close tears down the underlying transport and waits for the pump to exit,
// failing any requests still pending.
func (c *Client) Close() error {
	err := c.t.Close()
	<-c.pumpDone
	return err
}
