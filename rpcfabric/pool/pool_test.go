package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"isocore/client"
	"isocore/transport"
)

type countingDialer struct {
	dials int
}

func (d *countingDialer) Dial(ctx context.Context, peerID string) (*client.Client, error) {
	d.dials++
	a, _ := transport.NewLoopbackPair(1)
	return client.New(a), nil
}

func TestAcquireReusesCachedClient(t *testing.T) {
	d := &countingDialer{}
	p := New(d, 0)
	defer p.Close()

	c1, err := p.Acquire(context.Background(), "peer-a")
	if err != nil {
		t.Fatal(err)
	}
	c2, err := p.Acquire(context.Background(), "peer-a")
	if err != nil {
		t.Fatal(err)
	}
	if c1 != c2 {
		t.Fatal("expected the second Acquire to reuse the cached client")
	}
	if d.dials != 1 {
		t.Fatalf("expected exactly one dial, got %d", d.dials)
	}
}

func TestAcquireDialsSeparatelyPerPeer(t *testing.T) {
	d := &countingDialer{}
	p := New(d, 0)
	defer p.Close()

	if _, err := p.Acquire(context.Background(), "peer-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Acquire(context.Background(), "peer-b"); err != nil {
		t.Fatal(err)
	}
	if d.dials != 2 {
		t.Fatalf("want 2 dials for 2 distinct peers, got %d", d.dials)
	}
	if p.Len() != 2 {
		t.Fatalf("want 2 cached clients, got %d", p.Len())
	}
}

func TestEvictForcesRedial(t *testing.T) {
	d := &countingDialer{}
	p := New(d, 0)
	defer p.Close()

	if _, err := p.Acquire(context.Background(), "peer-a"); err != nil {
		t.Fatal(err)
	}
	p.Evict("peer-a")
	if p.Len() != 0 {
		t.Fatal("expected Evict to drop the cached client")
	}
	if _, err := p.Acquire(context.Background(), "peer-a"); err != nil {
		t.Fatal(err)
	}
	if d.dials != 2 {
		t.Fatalf("want a second dial after eviction, got %d", d.dials)
	}
}

func TestAcquireWithoutDialerFails(t *testing.T) {
	p := New(nil, 0)
	defer p.Close()
	if _, err := p.Acquire(context.Background(), "peer-a"); err == nil {
		t.Fatal("expected an error with no dialer configured")
	}
}

type failingDialer struct{}

func (failingDialer) Dial(ctx context.Context, peerID string) (*client.Client, error) {
	return nil, errors.New("dial refused")
}

func TestAcquirePropagatesDialError(t *testing.T) {
	p := New(failingDialer{}, 0)
	defer p.Close()
	if _, err := p.Acquire(context.Background(), "peer-a"); err == nil {
		t.Fatal("expected the dialer's error to propagate")
	}
}

func TestReaperEvictsIdleClients(t *testing.T) {
	d := &countingDialer{}
	p := New(d, 20*time.Millisecond)
	defer p.Close()

	if _, err := p.Acquire(context.Background(), "peer-a"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for p.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if p.Len() != 0 {
		t.Fatal("expected the reaper to evict an idle client")
	}
}
