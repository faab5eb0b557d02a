package engine

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"isocore/codec"
	"isocore/rtcontext"
	"isocore/schema"
	"isocore/transcoder"
	"isocore/value"
)

// Instance is a live, instantiated component bound to one wasmer store.
// Every access to it must go through a single goroutine at a time; this
// package does not serialize access itself — that discipline belongs to
// the instancehandle package, which wraps Instance in a mutex.
type Instance struct {
	store  *wasmer.Store
	inst   *wasmer.Instance
	mem    *wasmer.Memory
	tbl    *wasmer.Table
	budget *rtcontext.Budget
}

// Instantiate links imports against c and instantiates it. budget may be
// nil, meaning no resource limits are enforced; otherwise the instance's
// exported memory and table (if any) are registered against
// MaxMemoryCount/MaxTableCount before the instance is handed back.
func Instantiate(eng *Engine, c *Component, imports *ImportSet, budget *rtcontext.Budget) (*Instance, error) {
	store := wasmer.NewStore(eng.raw)

	// Re-compile against this store: a wasmer.Module is bound to the store
	// it was created with, so each instantiation recompiles the Component's
	// raw bytes instead of reusing the Component's own module. This trades recompilation cost for the
	// ability to instantiate the same Component concurrently from multiple
	// stores, matching the spec's requirement that a Component be sharable
	// across many instances while each instance owns its own store.
	mod, err := wasmer.NewModule(store, c.bytes)
	if err != nil {
		return nil, fmt.Errorf("engine: recompile against instance store: %w", err)
	}

	i := &Instance{store: store, budget: budget}
	importObj := imports.buildImportObject(store, func() *wasmer.Memory { return i.mem }, budget)

	inst, err := wasmer.NewInstance(mod, importObj)
	if err != nil {
		return nil, fmt.Errorf("engine: instantiate: %w", err)
	}
	i.inst = inst

	if mem, err := inst.Exports.GetMemory(memoryExport); err == nil {
		i.mem = mem
		if budget != nil {
			if reason := budget.AddMemory(); reason != rtcontext.ReasonNone {
				return nil, &BudgetExceeded{Reason: reason}
			}
		}
	}
	if tbl, err := inst.Exports.GetTable(tableExport); err == nil {
		i.tbl = tbl
		if budget != nil {
			if reason := budget.AddTable(); reason != rtcontext.ReasonNone {
				return nil, &BudgetExceeded{Reason: reason}
			}
		}
	}
	return i, nil
}

// CallExport invokes a guest export by name, lifting argValues into the
// host-calls-guest wire convention (see package doc) and lowering the
// response back into value ASTs under resultTypes.
func (i *Instance) CallExport(name string, argValues []*value.Value, paramTypes, resultTypes []*schema.Type) ([]*value.Value, error) {
	fn, err := i.inst.Exports.GetFunction(name)
	if err != nil {
		return nil, fmt.Errorf("engine: export %q not found: %w", name, err)
	}
	if i.mem == nil {
		return nil, fmt.Errorf("engine: guest has no exported memory")
	}

	argBytes, err := encodeResultSlab(argValues, paramTypes)
	if err != nil {
		return nil, fmt.Errorf("engine: encoding arguments: %w", err)
	}

	var memBefore, tblBefore uint64
	if i.budget != nil {
		memBefore = uint64(len(i.mem.Data()))
		if i.tbl != nil {
			tblBefore = uint64(i.tbl.Size())
		}
	}

	allocFn, err := i.inst.Exports.GetFunction(allocExport)
	if err != nil {
		return nil, fmt.Errorf("engine: guest export %q required to call %q: %w", allocExport, name, err)
	}
	rawPtr, err := allocFn(int32(len(argBytes)))
	if err != nil {
		return nil, fmt.Errorf("engine: %s: %w", allocExport, err)
	}
	argPtr, ok := rawPtr.(int32)
	if !ok {
		return nil, fmt.Errorf("engine: %s returned non-i32 value", allocExport)
	}

	data := i.mem.Data()
	copy(data[argPtr:int(argPtr)+len(argBytes)], argBytes)

	rawResult, err := fn(argPtr, int32(len(argBytes)))
	if err != nil {
		return nil, fmt.Errorf("engine: call %q: %w", name, err)
	}

	if i.budget != nil {
		memAfter := uint64(len(i.mem.Data()))
		if memAfter > memBefore {
			if reason := i.budget.ChargeMemory(memAfter - memBefore); reason != rtcontext.ReasonNone {
				return nil, &BudgetExceeded{Reason: reason}
			}
		}
		if i.tbl != nil {
			tblAfter := uint64(i.tbl.Size())
			if tblAfter > tblBefore {
				if reason := i.budget.ChargeTable(tblAfter - tblBefore); reason != rtcontext.ReasonNone {
					return nil, &BudgetExceeded{Reason: reason}
				}
			}
		}
	}

	packed, ok := rawResult.(int64)
	if !ok {
		return nil, fmt.Errorf("engine: %s returned non-i64 value", name)
	}
	outPtr := int32(packed >> 32)
	outLen := int32(packed & 0xffffffff)

	data = i.mem.Data() // re-slice: the call may have grown memory
	if int(outPtr) < 0 || int(outLen) < 0 || int(outPtr)+int(outLen) > len(data) {
		return nil, fmt.Errorf("engine: %s returned out-of-bounds result region", name)
	}
	resultBytes := make([]byte, outLen)
	copy(resultBytes, data[outPtr:int(outPtr)+int(outLen)])

	if dealloc, err := i.inst.Exports.GetFunction(deallocExport); err == nil {
		_, _ = dealloc(outPtr, outLen)
	}

	return decodeArgSlab(resultBytes, resultTypes)
}

// decodeArgSlab parses a pre-encoded list scope (see the frame package's
// "slab" convention) into one value per type in order.
func decodeArgSlab(slab []byte, types []*schema.Type) ([]*value.Value, error) {
	dec := codec.NewDecoder(slab)
	end, err := dec.EnterContainer(codec.TagList)
	if err != nil {
		return nil, err
	}
	out := make([]*value.Value, 0, len(types))
	for _, t := range types {
		v, err := transcoder.Decode(dec, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := dec.ExitContainer(end); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeResultSlab encodes values under types into one pre-encoded list
// scope.
func encodeResultSlab(values []*value.Value, types []*schema.Type) ([]byte, error) {
	enc := codec.NewEncoder()
	enc.OpenList()
	for idx, t := range types {
		if err := transcoder.Encode(enc, values[idx], t); err != nil {
			return nil, err
		}
	}
	if err := enc.Finish(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
