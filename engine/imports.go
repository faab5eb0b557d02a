package engine

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"isocore/costtable"
	"isocore/rtcontext"
	"isocore/schema"
	"isocore/value"
)

// HostFunc is a host-side implementation of one imported (interface,
// function) pair, operating on the value AST directly. The binder builds
// one of these per Linkable and registers it into an ImportSet.
type HostFunc func(args []*value.Value) ([]*value.Value, error)

type importEntry struct {
	sig *schema.FuncSig
	fn  HostFunc
}

// ImportSet accumulates host functions keyed by (interface, function)
// before instantiation. The binder populates one per component; the builder
// hands it to Instantiate.
type ImportSet struct {
	entries map[string]map[string]importEntry
}

// NewImportSet returns an empty set.
func NewImportSet() *ImportSet {
	return &ImportSet{entries: make(map[string]map[string]importEntry)}
}

// Add registers fn as the host implementation of iface.method under sig.
// Re-registering the same pair overwrites the previous entry.
func (s *ImportSet) Add(iface, method string, sig *schema.FuncSig, fn HostFunc) {
	if s.entries[iface] == nil {
		s.entries[iface] = make(map[string]importEntry)
	}
	s.entries[iface][method] = importEntry{sig: sig, fn: fn}
}

// buildImportObject converts the accumulated host functions into a wasmer
// ImportObject, shimming each through the ptr/len memory convention so the
// guest calls it with the canonical value-passing ABI this package defines.
func (s *ImportSet) buildImportObject(store *wasmer.Store, mem func() *wasmer.Memory, budget *rtcontext.Budget) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()
	for iface, methods := range s.entries {
		ns := make(map[string]wasmer.IntoExtern)
		for method, entry := range methods {
			ns[method] = wrapHostFunc(store, mem, entry, budget)
		}
		imports.Register(iface, ns)
	}
	return imports
}

// wrapHostFunc adapts a value-AST HostFunc to wasmer's raw i32 calling
// convention for the guest-calls-host direction: the guest passes
// (arg_ptr, arg_len) pointing at an encoded-args slab it wrote into its own
// memory, plus (scratch_ptr, scratch_len) naming a buffer it has already
// reserved to receive the response (sidestepping the need for the host to
// invoke a guest allocator mid-call). The host decodes, calls fn, encodes
// the results into the scratch buffer, and returns the encoded length; a
// result that would not fit traps rather than silently truncating.
//
// budget's execution-cost dimension is charged here too, once per host call
// the guest makes. Unlike the charge points in instancehandle.Exec and
// Instance.CallExport, this closure's return value crosses a wasm trap
// boundary: wasmer-go turns a non-nil error into an opaque trap, so by the
// time the runtime observes it only a message string survives, not the
// *BudgetExceeded type. A budget exhaustion discovered here therefore
// degrades to a generic trap (the registry reports it as engine-fatal)
// rather than the clean OutOfFuel/OutOfMemory path the two native-Go check
// points provide.
func wrapHostFunc(store *wasmer.Store, mem func() *wasmer.Memory, entry importEntry, budget *rtcontext.Budget) *wasmer.Function {
	ft := wasmer.NewFunctionType(
		wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32),
		wasmer.NewValueTypes(wasmer.I32),
	)
	return wasmer.NewFunction(store, ft, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if budget != nil {
			if reason := budget.ChargeExec(costtable.Cost(costtable.OpHostCall)); reason != rtcontext.ReasonNone {
				return nil, fmt.Errorf("engine: execution-cost budget exceeded during host call")
			}
		}
		m := mem()
		if m == nil {
			return nil, fmt.Errorf("engine: guest memory not available")
		}
		ptr, ln := args[0].I32(), args[1].I32()
		scratchPtr, scratchLen := args[2].I32(), args[3].I32()

		data := m.Data()
		if int(ptr) < 0 || int(ln) < 0 || int(ptr)+int(ln) > len(data) {
			return nil, fmt.Errorf("engine: argument slab out of bounds")
		}
		argBytes := make([]byte, ln)
		copy(argBytes, data[ptr:ptr+ln])

		argValues, err := decodeArgSlab(argBytes, entry.sig.Params)
		if err != nil {
			return nil, err
		}
		results, err := entry.fn(argValues)
		if err != nil {
			return nil, err
		}
		resultBytes, err := encodeResultSlab(results, entry.sig.Results)
		if err != nil {
			return nil, err
		}
		if len(resultBytes) > int(scratchLen) {
			return nil, fmt.Errorf("engine: result slab (%d bytes) exceeds guest scratch buffer (%d bytes)", len(resultBytes), scratchLen)
		}
		data = m.Data() // memory may have grown during fn; re-slice
		copy(data[scratchPtr:int(scratchPtr)+len(resultBytes)], resultBytes)
		return []wasmer.Value{wasmer.NewI32(int32(len(resultBytes)))}, nil
	})
}
