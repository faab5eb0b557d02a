package instancehandle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"isocore/engine"
	"isocore/rtcontext"
)

func TestConcurrentExecSerializesStrictly(t *testing.T) {
	h := New(nil, rtcontext.NewContext(), &rtcontext.Budget{})

	const n = 5
	const minDuration = 10 * time.Millisecond

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.Exec(func(_ *engine.Instance, _ *rtcontext.Context) (any, error) {
				time.Sleep(minDuration)
				return nil, nil
			})
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	if elapsed < n*minDuration {
		t.Fatalf("expected strict serialization: elapsed %v < %v", elapsed, n*minDuration)
	}
}

func TestExecSurvivesPanickingClosure(t *testing.T) {
	h := New(nil, rtcontext.NewContext(), &rtcontext.Budget{})

	_, err := h.Exec(func(_ *engine.Instance, _ *rtcontext.Context) (any, error) {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected an error from the panicking closure")
	}

	var called int32
	_, err = h.Exec(func(_ *engine.Instance, _ *rtcontext.Context) (any, error) {
		atomic.StoreInt32(&called, 1)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("handle should not be poisoned: %v", err)
	}
	if atomic.LoadInt32(&called) != 1 {
		t.Fatal("subsequent exec did not run")
	}
}

func TestExecFailsAfterRemove(t *testing.T) {
	h := New(nil, rtcontext.NewContext(), &rtcontext.Budget{})
	h.Remove()

	_, err := h.Exec(func(_ *engine.Instance, _ *rtcontext.Context) (any, error) {
		t.Fatal("closure must not run on a removed handle")
		return nil, nil
	})
	if err != ErrRemoved {
		t.Fatalf("want ErrRemoved, got %v", err)
	}
}

func TestExecFailsOnceExecCostBudgetExhausted(t *testing.T) {
	h := New(nil, rtcontext.NewContext(), &rtcontext.Budget{MaxExecCost: 1})

	var calls int32
	run := func() error {
		_, err := h.Exec(func(_ *engine.Instance, _ *rtcontext.Context) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, nil
		})
		return err
	}

	if err := run(); err != ErrOutOfFuel {
		t.Fatalf("want the first call over a 1-unit budget to trip ErrOutOfFuel, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("closure must not run once the budget rejects the call")
	}
}

func TestCloneSharesSerialization(t *testing.T) {
	h := New(nil, rtcontext.NewContext(), &rtcontext.Budget{})
	clone := h.Clone()

	var wg sync.WaitGroup
	const minDuration = 10 * time.Millisecond
	start := time.Now()
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = h.Exec(func(_ *engine.Instance, _ *rtcontext.Context) (any, error) {
			time.Sleep(minDuration)
			return nil, nil
		})
	}()
	go func() {
		defer wg.Done()
		_, _ = clone.Exec(func(_ *engine.Instance, _ *rtcontext.Context) (any, error) {
			time.Sleep(minDuration)
			return nil, nil
		})
	}()
	wg.Wait()
	if time.Since(start) < 2*minDuration {
		t.Fatal("clone did not serialize against the original handle")
	}
}
