package engine

import (
	"testing"

	"isocore/internal/wasmfixture"
	"isocore/rtcontext"
	"isocore/schema"
	"isocore/value"
)

// TestCallExportRoundTripsThroughRealGuest drives Compile/Instantiate/
// CallExport against a real compiled wasm module (not synthetic slab bytes),
// exercising the alloc/call/decode path engine/slab_test.go's unit tests
// never touch.
func TestCallExportRoundTripsThroughRealGuest(t *testing.T) {
	eng := New()
	comp, err := Compile(eng, wasmfixture.EchoModule())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	inst, err := Instantiate(eng, comp, NewImportSet(), nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	types := []*schema.Type{schema.U32()}
	results, err := inst.CallExport("echo", []*value.Value{value.Uint(42)}, types, types)
	if err != nil {
		t.Fatalf("call export: %v", err)
	}
	if len(results) != 1 || results[0].U != 42 {
		t.Fatalf("expected echo to round-trip 42, got %+v", results)
	}
}

// TestInstantiateRegistersMemoryAgainstBudget checks that a nonzero
// MaxMemoryCount is consulted against the guest's real exported memory at
// instantiation time.
func TestInstantiateRegistersMemoryAgainstBudget(t *testing.T) {
	eng := New()
	comp, err := Compile(eng, wasmfixture.EchoModule())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	budget := &rtcontext.Budget{MaxMemoryCount: 1}
	if _, err := Instantiate(eng, comp, NewImportSet(), budget); err != nil {
		t.Fatalf("first instantiate should fit within MaxMemoryCount: %v", err)
	}

	exhausted := &rtcontext.Budget{MaxMemoryCount: 1}
	exhausted.AddMemory() // pretend a prior instance already claimed the slot
	if _, err := Instantiate(eng, comp, NewImportSet(), exhausted); err == nil {
		t.Fatal("expected instantiate to report BudgetExceeded once MaxMemoryCount is already spent")
	} else if _, ok := err.(*BudgetExceeded); !ok {
		t.Fatalf("expected *BudgetExceeded, got %T: %v", err, err)
	}
}
