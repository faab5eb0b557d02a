package binder

import (
	"context"
	"errors"
	"fmt"

	"isocore/client"
	"isocore/codec"
	"isocore/engine"
	"isocore/frame"
	"isocore/instancehandle"
	"isocore/ledger"
	"isocore/rtcontext"
	"isocore/schema"
	"isocore/transcoder"
	"isocore/value"
)

// LocalResolver resolves a Local link's target instance and its ledger
// without the binder depending on the registry package directly.
type LocalResolver interface {
	ResolveInstance(instanceID string) (*instancehandle.Handle, *ledger.Ledger, error)
}

// RemoteDialer resolves a Remote link's peer Client without the binder
// depending on the registry package directly.
type RemoteDialer interface {
	ResolveClient(peerID string) (*client.Client, error)
}

// Bind installs host functions for every (interface, function) named in
// imports, according to the Linkable chosen for each interface, into set.
// selfInstanceID identifies the instance under construction, so a Local
// link naming it can be rejected before it deadlocks on first call.
func Bind(
	set *engine.ImportSet,
	imports schema.Schema,
	links map[string]Linkable,
	selfInstanceID string,
	locals LocalResolver,
	remotes RemoteDialer,
	eq *ledger.EqualityChecker,
) error {
	for iface, funcs := range imports {
		link, ok := links[iface]
		if !ok {
			return &InterfaceNotFound{Interface: iface}
		}
		switch link.Kind {
		case LinkSystem:
			if err := bindSystem(set, iface, funcs, link.Provider); err != nil {
				return err
			}
		case LinkLocal:
			if link.TargetInstanceID == selfInstanceID {
				return &SelfLink{Interface: iface}
			}
			if err := bindLocal(set, iface, funcs, link, locals, eq); err != nil {
				return err
			}
		case LinkRemote:
			if err := bindRemote(set, iface, funcs, link, remotes); err != nil {
				return err
			}
		}
	}
	return nil
}

func bindSystem(set *engine.ImportSet, iface string, funcs schema.Interface, provider SystemProvider) error {
	impls := provider.Functions()
	sigs := provider.Schema()
	for method, sig := range funcs {
		fn, ok := impls[method]
		if !ok {
			return &MethodNotFound{Interface: iface, Method: method}
		}
		providerSig, ok := sigs[method]
		if !ok || !providerSig.Equal(sig) {
			return &SchemaMismatch{Interface: iface, Method: method}
		}
		set.Add(iface, method, sig, fn)
	}
	return nil
}

func bindLocal(set *engine.ImportSet, iface string, funcs schema.Interface, link Linkable, locals LocalResolver, eq *ledger.EqualityChecker) error {
	handle, targetLedger, err := locals.ResolveInstance(link.TargetInstanceID)
	if err != nil {
		return err
	}
	targetLocal := ledger.Extract(schema.Schema{iface: funcs})
	if eq != nil {
		if !eq.EqualInterface(targetLocal, targetLedger, iface) {
			return &SchemaMismatch{Interface: iface}
		}
	}
	for method, sig := range funcs {
		targetSig, ok := targetLedger.Lookup(iface, method)
		if !ok {
			return &MethodNotFound{Interface: iface, Method: method}
		}
		if !sig.Equal(targetSig) {
			return &SchemaMismatch{Interface: iface, Method: method}
		}
		set.Add(iface, method, sig, localClosure(handle, method, sig))
	}
	return nil
}

// localClosure lifts guest arguments, execs against the target instance's
// handle (serialized by its mutex — no serialization of the value AST
// itself occurs), and lowers the result back.
func localClosure(handle *instancehandle.Handle, method string, sig *schema.FuncSig) engine.HostFunc {
	return func(args []*value.Value) ([]*value.Value, error) {
		res, err := handle.Exec(func(inst *engine.Instance, _ *rtcontext.Context) (any, error) {
			return inst.CallExport(method, args, sig.Params, sig.Results)
		})
		if err != nil {
			return nil, err
		}
		return res.([]*value.Value), nil
	}
}

func bindRemote(set *engine.ImportSet, iface string, funcs schema.Interface, link Linkable, remotes RemoteDialer) error {
	for method, sig := range funcs {
		if hasResource(sig) {
			return &ResourceInSignature{Interface: iface, Method: method}
		}
		set.Add(iface, method, sig, remoteClosure(link.PeerID, link.Target, method, sig, remotes))
	}
	return nil
}

func hasResource(sig *schema.FuncSig) bool {
	for _, t := range sig.Params {
		if schema.HasResource(t) {
			return true
		}
	}
	for _, t := range sig.Results {
		if schema.HasResource(t) {
			return true
		}
	}
	return false
}

// remoteClosure transcodes args to an args slab, calls the peer, and
// transcodes the results slab back.
func remoteClosure(peerID, target, method string, sig *schema.FuncSig, remotes RemoteDialer) engine.HostFunc {
	return func(args []*value.Value) ([]*value.Value, error) {
		c, err := remotes.ResolveClient(peerID)
		if err != nil {
			return nil, err
		}

		enc := codec.NewEncoder()
		enc.OpenList()
		for i, a := range args {
			if err := transcoder.Encode(enc, a, sig.Params[i]); err != nil {
				return nil, &frame.Failure{Reason: frame.ReasonDecodeError, Description: err.Error()}
			}
		}
		if err := enc.Finish(); err != nil {
			return nil, err
		}

		resultsSlab, err := c.Call(context.Background(), target, method, enc.Bytes())
		if err != nil {
			return nil, translateRemoteErr(err)
		}

		dec := codec.NewDecoder(resultsSlab)
		end, err := dec.EnterContainer(codec.TagList)
		if err != nil {
			return nil, &frame.Failure{Reason: frame.ReasonDecodeError, Description: err.Error()}
		}
		out := make([]*value.Value, 0, len(sig.Results))
		for _, t := range sig.Results {
			v, err := transcoder.Decode(dec, t)
			if err != nil {
				return nil, &frame.Failure{Reason: frame.ReasonDecodeError, Description: err.Error()}
			}
			out = append(out, v)
		}
		if err := dec.ExitContainer(end); err != nil {
			return nil, &frame.Failure{Reason: frame.ReasonDecodeError, Description: err.Error()}
		}
		return out, nil
	}
}

// translateRemoteErr maps a client-domain error onto the reason-tagged
// failure the guest trampoline traps on, per §4.8's Remote-link error
// handling: Trapped/OutOfFuel/OutOfMemory/DecodeError/Timeout trap the
// guest; DomainSpecific is left for the trampoline to surface in-band where
// the interface declares a result type.
func translateRemoteErr(err error) error {
	var remote *client.Remote
	if errors.As(err, &remote) {
		return remote.Reason
	}
	var timeout *client.Timeout
	if errors.As(err, &timeout) {
		return &frame.Failure{Reason: frame.ReasonDecodeError, Description: "timeout"}
	}
	return fmt.Errorf("binder: remote call failed: %w", err)
}
