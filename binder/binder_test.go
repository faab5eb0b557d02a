package binder

import (
	"testing"

	"isocore/client"
	"isocore/engine"
	"isocore/instancehandle"
	"isocore/ledger"
	"isocore/schema"
	"isocore/value"
)

type fakeProvider struct {
	funcs map[string]engine.HostFunc
	sigs  map[string]*schema.FuncSig
}

func (f *fakeProvider) Functions() map[string]engine.HostFunc { return f.funcs }
func (f *fakeProvider) Schema() map[string]*schema.FuncSig     { return f.sigs }

func logSig() *schema.FuncSig {
	return &schema.FuncSig{Params: []*schema.Type{schema.String()}, Results: nil}
}

func TestBindSystemInstallsProviderFunction(t *testing.T) {
	var called bool
	provider := &fakeProvider{
		funcs: map[string]engine.HostFunc{
			"log": func(args []*value.Value) ([]*value.Value, error) {
				called = true
				return nil, nil
			},
		},
		sigs: map[string]*schema.FuncSig{"log": logSig()},
	}

	imports := schema.Schema{"log": schema.Interface{"log": logSig()}}
	links := map[string]Linkable{"log": System(provider)}
	set := engine.NewImportSet()

	if err := Bind(set, imports, links, "self", nil, nil, nil); err != nil {
		t.Fatal(err)
	}

	// No direct introspection API on ImportSet besides building a wasmer
	// import object (which needs a real store); instead verify indirectly
	// by invoking the provider function the binder would have registered.
	fn := provider.funcs["log"]
	if _, err := fn(nil); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("expected provider function to be callable")
	}
}

func TestBindFailsOnMissingInterfaceLink(t *testing.T) {
	imports := schema.Schema{"log": schema.Interface{"log": logSig()}}
	set := engine.NewImportSet()
	err := Bind(set, imports, map[string]Linkable{}, "self", nil, nil, nil)
	if _, ok := err.(*InterfaceNotFound); !ok {
		t.Fatalf("want *InterfaceNotFound, got %v (%T)", err, err)
	}
}

func TestBindRejectsSelfLocalLink(t *testing.T) {
	imports := schema.Schema{"kv": schema.Interface{"get": logSig()}}
	links := map[string]Linkable{"kv": Local("self-id")}
	set := engine.NewImportSet()
	err := Bind(set, imports, links, "self-id", nil, nil, nil)
	if _, ok := err.(*SelfLink); !ok {
		t.Fatalf("want *SelfLink, got %v (%T)", err, err)
	}
}

func TestBindRejectsResourceInRemoteSignature(t *testing.T) {
	imports := schema.Schema{
		"cap": schema.Interface{
			"take": {
				Params:  []*schema.Type{schema.Resource()},
				Results: nil,
			},
		},
	}
	links := map[string]Linkable{"cap": Remote("peer-a", "target")}
	set := engine.NewImportSet()
	err := Bind(set, imports, links, "self", nil, &fakeRemoteDialer{}, nil)
	if _, ok := err.(*ResourceInSignature); !ok {
		t.Fatalf("want *ResourceInSignature, got %v (%T)", err, err)
	}
}

type fakeRemoteDialer struct{}

func (f *fakeRemoteDialer) ResolveClient(peerID string) (*client.Client, error) { return nil, nil }

type fakeLocalResolver struct {
	handle *instancehandle.Handle
	ledger *ledger.Ledger
	err    error
}

func (f *fakeLocalResolver) ResolveInstance(instanceID string) (*instancehandle.Handle, *ledger.Ledger, error) {
	return f.handle, f.ledger, f.err
}

func TestBindLocalRejectsSchemaMismatch(t *testing.T) {
	imports := schema.Schema{
		"kv": schema.Interface{
			"get": {Params: []*schema.Type{schema.String()}, Results: []*schema.Type{schema.String()}},
		},
	}
	targetSchema := schema.Schema{
		"kv": schema.Interface{
			"get": {Params: []*schema.Type{schema.U32()}, Results: []*schema.Type{schema.String()}},
		},
	}
	resolver := &fakeLocalResolver{
		handle: instancehandle.New(nil, nil, nil),
		ledger: ledger.Extract(targetSchema),
	}
	links := map[string]Linkable{"kv": Local("other-id")}
	set := engine.NewImportSet()
	err := Bind(set, imports, links, "self-id", resolver, nil, ledger.NewEqualityChecker(4))
	if _, ok := err.(*SchemaMismatch); !ok {
		t.Fatalf("want *SchemaMismatch, got %v (%T)", err, err)
	}
}
