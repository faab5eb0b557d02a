// Package instancehandle provides a cloneable, thread-safe handle over a
// store and its instantiated component. All access is serialized through a
// single mutex: the underlying engine store is not safe for concurrent use,
// so every export invocation (local, system, or dispatched from an incoming
// remote call) must go through exec.
package instancehandle

import (
	"errors"
	"fmt"
	"sync"

	"isocore/costtable"
	"isocore/engine"
	"isocore/rtcontext"
)

// Handle wraps one instance's store behind a mutex. It is cloneable: all
// clones share the same underlying mutex and instance, so cloning does not
// grant additional concurrency, only additional references.
type Handle struct {
	shared *shared
}

type shared struct {
	mu       sync.Mutex
	inst     *engine.Instance
	ctx      *rtcontext.Context
	budget   *rtcontext.Budget
	removed  bool
	removeMu sync.RWMutex
}

// New wraps inst behind a fresh mutex.
func New(inst *engine.Instance, ctx *rtcontext.Context, budget *rtcontext.Budget) *Handle {
	return &Handle{shared: &shared{inst: inst, ctx: ctx, budget: budget}}
}

// Clone returns a second handle over the same underlying instance and
// mutex. Concurrent exec calls through either clone still serialize
// strictly.
func (h *Handle) Clone() *Handle {
	return &Handle{shared: h.shared}
}

// ErrRemoved is returned by Exec once Remove has been called on this
// handle's underlying instance.
var ErrRemoved = fmt.Errorf("instancehandle: instance removed")

// ErrOutOfFuel is returned by Exec when the call would push the instance's
// budget past its MaxExecCost.
var ErrOutOfFuel = fmt.Errorf("instancehandle: execution cost budget exhausted")

// ErrOutOfMemory is returned by Exec when the call would push the
// instance's memory or table usage (or count) past its budget.
var ErrOutOfMemory = fmt.Errorf("instancehandle: memory or table budget exhausted")

// Exec acquires the handle's mutex, charges one export call against the
// instance's execution-cost budget, invokes closure with the store and
// instance, and releases on every path — including a panicking or erroring
// closure, which must not poison the handle for subsequent callers.
func (h *Handle) Exec(closure func(inst *engine.Instance, ctx *rtcontext.Context) (any, error)) (result any, err error) {
	h.shared.removeMu.RLock()
	removed := h.shared.removed
	h.shared.removeMu.RUnlock()
	if removed {
		return nil, ErrRemoved
	}

	h.shared.mu.Lock()
	defer h.shared.mu.Unlock()

	// Re-check under the exec lock: Remove may have landed between the
	// optimistic check above and acquiring the mutex.
	h.shared.removeMu.RLock()
	removed = h.shared.removed
	h.shared.removeMu.RUnlock()
	if removed {
		return nil, ErrRemoved
	}

	if h.shared.budget != nil {
		if reason := h.shared.budget.ChargeExec(costtable.Cost(costtable.OpExportCall)); reason == rtcontext.ReasonOutOfFuel {
			return nil, ErrOutOfFuel
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("instancehandle: closure panicked: %v", r)
		}
	}()
	result, err = closure(h.shared.inst, h.shared.ctx)

	var exceeded *engine.BudgetExceeded
	if errors.As(err, &exceeded) {
		h.Remove()
		if exceeded.Reason == rtcontext.ReasonOutOfFuel {
			return nil, ErrOutOfFuel
		}
		return nil, ErrOutOfMemory
	}
	return result, err
}

// Remove marks the handle removed, so any exec called after this point
// (including one already blocked waiting for the mutex) fails fast with
// ErrRemoved instead of touching a store the registry is tearing down.
// It does not forcibly preempt a closure already in flight: the mutex
// acquisition in Exec is what makes that safe, since Remove itself does not
// need the mutex to flip the flag.
func (h *Handle) Remove() {
	h.shared.removeMu.Lock()
	h.shared.removed = true
	h.shared.removeMu.Unlock()
}

// Removed reports whether Remove has been called.
func (h *Handle) Removed() bool {
	h.shared.removeMu.RLock()
	defer h.shared.removeMu.RUnlock()
	return h.shared.removed
}

// Budget exposes the instance's resource budget so the caller (the binder's
// remote/local dispatch, or the registry's incoming-RPC handler) can charge
// against it without a separate lookup.
func (h *Handle) Budget() *rtcontext.Budget { return h.shared.budget }
