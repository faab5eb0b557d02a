// Package engine wraps wasmer-go's core-wasm embedding API (Store, Module,
// Instance, ImportObject, Function) behind the narrower surface the rest of
// the runtime needs: compile a Component once, instantiate it against a set
// of host imports, and call its exports with value ASTs rather than raw
// wasm primitives.
//
// wasmer-go v1.0.4 implements the core WebAssembly spec, not the component
// model's canonical ABI, so this package adopts a small memory-passing
// convention of its own: a guest export named isocore_alloc(size:i32)->i32
// reserves a scratch buffer, the host writes an encoded value AST into it
// (via the transcoder), and calls the target export as
// fn(arg_ptr:i32, arg_len:i32) -> i64, where the high 32 bits of the
// returned i64 are the result's pointer and the low 32 bits are its length.
// This mirrors the teacher's HeavyVM host bindings, which pass ptr/len pairs
// across the same boundary for read/write/log host calls.
package engine

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"isocore/rtcontext"
)

const (
	allocExport   = "isocore_alloc"
	deallocExport = "isocore_dealloc"
	memoryExport  = "memory"
	tableExport   = "table"
)

// BudgetExceeded is returned by Instantiate or CallExport when a guest
// interaction would push the instance's budget past one of the dimensions
// this package can observe directly (export-local memory/table growth, or
// the memory/table count at instantiation). instancehandle.Exec recognizes
// this type and tears the instance down, matching the terminal-on-exhaustion
// behavior spec.md requires of OutOfMemory the same way it already applies
// to OutOfFuel.
type BudgetExceeded struct{ Reason rtcontext.Reason }

func (e *BudgetExceeded) Error() string {
	if e.Reason == rtcontext.ReasonOutOfFuel {
		return "engine: execution-cost budget exceeded"
	}
	return "engine: memory or table budget exceeded"
}

// Engine owns the wasmer compilation/runtime engine. One Engine is shared by
// every Component the registry compiles.
type Engine struct {
	raw *wasmer.Engine
}

// New returns a fresh wasmer engine.
func New() *Engine {
	return &Engine{raw: wasmer.NewEngine()}
}

// Component is an immutable compiled guest artifact. It is shared by
// reference across every instance derived from it.
type Component struct {
	module *wasmer.Module
	bytes  []byte
}

// Compile compiles raw wasm bytes against eng.
func Compile(eng *Engine, code []byte) (*Component, error) {
	store := wasmer.NewStore(eng.raw)
	mod, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, fmt.Errorf("engine: compile: %w", err)
	}
	buf := make([]byte, len(code))
	copy(buf, code)
	return &Component{module: mod, bytes: buf}, nil
}

// Bytes returns the raw wasm the component was compiled from; Instantiate
// recompiles these same bytes against each new instance's store.
func (c *Component) Bytes() []byte { return c.bytes }
