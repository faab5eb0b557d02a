package ledger

import "isocore/schema"

import "testing"

func sampleSchema() schema.Schema {
	return schema.Schema{
		"math": schema.Interface{
			"add": &schema.FuncSig{
				Params:  []*schema.Type{schema.U32(), schema.U32()},
				Results: []*schema.Type{schema.U32()},
			},
		},
	}
}

func TestLookupFindsDeclaredFunction(t *testing.T) {
	l := Extract(sampleSchema())
	sig, ok := l.Lookup("math", "add")
	if !ok {
		t.Fatal("expected math.add to be found")
	}
	if len(sig.Params) != 2 || len(sig.Results) != 1 {
		t.Fatalf("unexpected signature: %+v", sig)
	}
}

func TestLookupMissingFunctionReportsAbsent(t *testing.T) {
	l := Extract(sampleSchema())
	if _, ok := l.Lookup("math", "subtract"); ok {
		t.Fatal("expected subtract to be absent")
	}
}

func TestInterfacesListsDeclaredNames(t *testing.T) {
	l := Extract(sampleSchema())
	names := l.Interfaces()
	if len(names) != 1 || names[0] != "math" {
		t.Fatalf("unexpected interfaces: %v", names)
	}
}

func TestEqualityCheckerAgreesWithDirectComparison(t *testing.T) {
	a := Extract(sampleSchema())
	b := Extract(sampleSchema())
	c := NewEqualityChecker(8)

	if !c.EqualInterface(a, b, "math") {
		t.Fatal("expected identical schemas to compare equal")
	}

	mismatched := Extract(schema.Schema{
		"math": schema.Interface{
			"add": &schema.FuncSig{
				Params:  []*schema.Type{schema.U32()},
				Results: []*schema.Type{schema.U32()},
			},
		},
	})
	if c.EqualInterface(a, mismatched, "math") {
		t.Fatal("expected differing arities to compare unequal")
	}

	// Repeating the same comparisons must agree with the first pass (the
	// memo cache must not corrupt results).
	if !c.EqualInterface(a, b, "math") {
		t.Fatal("cached comparison diverged from direct comparison")
	}
}
