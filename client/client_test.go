package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"isocore/codec"
	"isocore/frame"
	"isocore/transport"
)

func encodeU32List(vs ...uint32) []byte {
	enc := codec.NewEncoder()
	enc.OpenList()
	for _, v := range vs {
		enc.WriteU32(v)
	}
	_ = enc.Finish()
	return enc.Bytes()
}

func decodeU32List(t *testing.T, b []byte) []uint32 {
	t.Helper()
	dec := codec.NewDecoder(b)
	end, err := dec.EnterContainer(codec.TagList)
	if err != nil {
		t.Fatal(err)
	}
	var out []uint32
	for dec.Pos() < end {
		v, err := dec.ReadU32()
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, v)
	}
	if err := dec.ExitContainer(end); err != nil {
		t.Fatal(err)
	}
	return out
}

// echoServer replies to every Call by doubling its first arg, immediately.
func echoServer(t *testing.T, peer *transport.Loopback) {
	t.Helper()
	ctx := context.Background()
	go func() {
		for {
			b, err := peer.Recv(ctx)
			if err != nil {
				return
			}
			env, err := frame.Decode(b)
			if err != nil || !env.IsCall {
				continue
			}
			args := decodeU32List(t, env.Call.Args)
			reply := &frame.Reply{Seq: env.Call.Seq, Results: encodeU32List(args[0] * 2)}
			rb, err := frame.EncodeReply(reply)
			if err != nil {
				continue
			}
			_ = peer.Send(ctx, rb)
		}
	}()
}

func TestCallRoundTripsResult(t *testing.T) {
	a, b := transport.NewLoopbackPair(8)
	echoServer(t, b)
	c := New(a)
	defer c.Close()

	res, err := c.Call(context.Background(), "math", "double", encodeU32List(21))
	if err != nil {
		t.Fatal(err)
	}
	got := decodeU32List(t, res)
	if len(got) != 1 || got[0] != 42 {
		t.Fatalf("want [42], got %v", got)
	}
}

// shuffledServer reads N calls before replying to any of them, then replies
// in reverse arrival order — exercising that each caller's seq, not arrival
// order, determines which result it receives.
func shuffledServer(t *testing.T, peer *transport.Loopback, n int) {
	t.Helper()
	ctx := context.Background()
	go func() {
		var calls []*frame.Call
		for len(calls) < n {
			b, err := peer.Recv(ctx)
			if err != nil {
				return
			}
			env, err := frame.Decode(b)
			if err != nil || !env.IsCall {
				continue
			}
			calls = append(calls, env.Call)
		}
		for i := len(calls) - 1; i >= 0; i-- {
			c := calls[i]
			args := decodeU32List(t, c.Args)
			reply := &frame.Reply{Seq: c.Seq, Results: encodeU32List(args[0] * 2)}
			rb, err := frame.EncodeReply(reply)
			if err != nil {
				continue
			}
			_ = peer.Send(ctx, rb)
		}
	}()
}

func TestConcurrentCallsCorrelateBySeqUnderShuffledReplies(t *testing.T) {
	const n = 10
	a, b := transport.NewLoopbackPair(n * 2)
	shuffledServer(t, b, n)
	c := New(a)
	defer c.Close()

	var wg sync.WaitGroup
	results := make([]uint32, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			arg := uint32(i + 1)
			res, err := c.Call(context.Background(), "x", "double", encodeU32List(arg))
			if err != nil {
				errs[i] = err
				return
			}
			got := decodeU32List(t, res)
			results[i] = got[0]
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		want := uint32((i + 1) * 2)
		if results[i] != want {
			t.Fatalf("call %d: want %d got %d", i, want, results[i])
		}
	}
}

func TestCallTimesOutWhenPeerNeverReplies(t *testing.T) {
	a, _ := transport.NewLoopbackPair(4) // peer b never reads/replies

	c := New(a)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, "nobody", "noop", encodeU32List())
	var to *Timeout
	if !errors.As(err, &to) {
		t.Fatalf("want *Timeout, got %v (%T)", err, err)
	}

	c.mu.Lock()
	n := len(c.pending)
	c.mu.Unlock()
	if n != 0 {
		t.Fatalf("pending map not drained after timeout: %d entries", n)
	}
}

func TestCallRespectsCancellation(t *testing.T) {
	a, _ := transport.NewLoopbackPair(4)
	c := New(a)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Call(ctx, "nobody", "noop", encodeU32List())
	var cancelled *Cancelled
	if !errors.As(err, &cancelled) {
		t.Fatalf("want *Cancelled, got %v (%T)", err, err)
	}
}

func TestNewLimitedThrottlesOutboundCalls(t *testing.T) {
	a, b := transport.NewLoopbackPair(8)
	echoServer(t, b)
	c := NewLimited(a, 10, 1) // 1 token up front, refills slowly
	defer c.Close()

	if _, err := c.Call(context.Background(), "math", "double", encodeU32List(1)); err != nil {
		t.Fatalf("first call should consume the initial burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, "math", "double", encodeU32List(2))
	var cancelled *Cancelled
	if !errors.As(err, &cancelled) {
		t.Fatalf("want the second call to block on the limiter past the deadline, got %v (%T)", err, err)
	}
}

func TestCallTranslatesRemoteFailure(t *testing.T) {
	a, b := transport.NewLoopbackPair(4)
	go func() {
		ctx := context.Background()
		msg, err := b.Recv(ctx)
		if err != nil {
			return
		}
		env, err := frame.Decode(msg)
		if err != nil || !env.IsCall {
			return
		}
		rb, _ := frame.EncodeReply(&frame.Reply{
			Seq: env.Call.Seq,
			Err: &frame.Failure{Reason: frame.ReasonMethodNotFound},
		})
		_ = b.Send(ctx, rb)
	}()

	c := New(a)
	defer c.Close()

	_, err := c.Call(context.Background(), "x", "missing", encodeU32List())
	var remote *Remote
	if !errors.As(err, &remote) {
		t.Fatalf("want *Remote, got %v (%T)", err, err)
	}
	if remote.Reason.Reason != frame.ReasonMethodNotFound {
		t.Fatalf("want MethodNotFound, got %v", remote.Reason.Reason)
	}
}
