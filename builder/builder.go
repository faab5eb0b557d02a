// Package builder provides the fluent InstanceBuilder that composes a
// store, a linker, a capability set, and a resource budget into a runnable
// instance.
package builder

import (
	"fmt"

	"isocore/binder"
	"isocore/engine"
	"isocore/instancehandle"
	"isocore/ledger"
	"isocore/rtcontext"
	"isocore/schema"
)

// InstantiationFailed wraps a guest-side initialization trap.
type InstantiationFailed struct{ Err error }

func (e *InstantiationFailed) Error() string { return fmt.Sprintf("builder: instantiation failed: %v", e.Err) }
func (e *InstantiationFailed) Unwrap() error  { return e.Err }

// BudgetRejected is returned when the budget immediately refuses
// instantiation (e.g. the registry's live-instance count already meets
// MaxInstances).
type BudgetRejected struct{ Reason string }

func (e *BudgetRejected) Error() string { return "builder: budget rejected: " + e.Reason }

// BinderError wraps any error the binder surfaces while installing imports.
type BinderError struct{ Err error }

func (e *BinderError) Error() string { return fmt.Sprintf("builder: %v", e.Err) }
func (e *BinderError) Unwrap() error  { return e.Err }

// Component is the minimal view of a registered component the builder
// needs: its compiled engine artifact and its extracted import/export
// schemas.
type Component struct {
	Engine     *engine.Component
	ImportSig  schema.Schema // this component's declared imports
	ExportSig  schema.Schema // this component's declared exports, for the ledger handed to local linkers
}

// InstanceBuilder fluently accumulates a component's links, context, and
// budget before instantiate() produces a runnable instance.
type InstanceBuilder struct {
	eng       *engine.Engine
	component *Component
	links     map[string]binder.Linkable
	ctxb      *rtcontext.Builder
	budget    *rtcontext.Budget
	registerAs string
	selfID     string
	liveCount  func() uint64

	locals  binder.LocalResolver
	remotes binder.RemoteDialer
	eq      *ledger.EqualityChecker
}

// New starts building an instance of component using eng.
func New(eng *engine.Engine, component *Component, locals binder.LocalResolver, remotes binder.RemoteDialer, eq *ledger.EqualityChecker) *InstanceBuilder {
	return &InstanceBuilder{
		eng:       eng,
		component: component,
		links:     make(map[string]binder.Linkable),
		ctxb:      rtcontext.NewBuilder(),
		budget:    &rtcontext.Budget{},
		locals:    locals,
		remotes:   remotes,
		eq:        eq,
	}
}

// LinkSystem satisfies iface with a host-native provider.
func (b *InstanceBuilder) LinkSystem(iface string, provider binder.SystemProvider) *InstanceBuilder {
	b.links[iface] = binder.System(provider)
	b.ctxb.WithCapability(iface, provider)
	return b
}

// LinkLocal satisfies iface with another live instance.
func (b *InstanceBuilder) LinkLocal(iface, instanceID string) *InstanceBuilder {
	b.links[iface] = binder.Local(instanceID)
	return b
}

// LinkRemote satisfies iface through a peer's Client.
func (b *InstanceBuilder) LinkRemote(iface, peerID, target string) *InstanceBuilder {
	b.links[iface] = binder.Remote(peerID, target)
	return b
}

// Budget installs a resource budget for the instance being built.
func (b *InstanceBuilder) Budget(budget rtcontext.Budget) *InstanceBuilder {
	b.budget = &budget
	return b
}

// ConfigureContext installs an environment variable visible to providers
// that consult it.
func (b *InstanceBuilder) ConfigureContext(key, value string) *InstanceBuilder {
	b.ctxb.WithEnv(key, value)
	return b
}

// RegisterAs requests that the new instance be registered under remoteID
// for incoming RPC targeting.
func (b *InstanceBuilder) RegisterAs(remoteID string) *InstanceBuilder {
	b.registerAs = remoteID
	return b
}

// WithSelfID tells the builder the instance-id that will be assigned to the
// instance under construction, purely so a Local link naming that same id
// (which would deadlock its own mutex on first call) can be rejected at
// bind time. The registry pre-allocates instance ids before instantiation
// for this reason.
func (b *InstanceBuilder) WithSelfID(id string) *InstanceBuilder {
	b.selfID = id
	return b
}

// WithLiveInstanceCount supplies a callback the builder consults against
// the budget's MaxInstances before instantiating. The registry wires this
// to its own live-instance count.
func (b *InstanceBuilder) WithLiveInstanceCount(fn func() uint64) *InstanceBuilder {
	b.liveCount = fn
	return b
}

// Instantiate materializes the linker, finalizes the context, creates the
// store, instantiates the component, and returns the resulting handle along
// with the remote-id registration request (if any), which the caller
// (typically the registry) is responsible for recording.
func (b *InstanceBuilder) Instantiate() (*instancehandle.Handle, string, error) {
	if b.liveCount != nil && b.budget.RejectedAtStart(b.liveCount()) {
		return nil, "", &BudgetRejected{Reason: "max instance count reached"}
	}

	set := engine.NewImportSet()
	if err := binder.Bind(set, b.component.ImportSig, b.links, b.selfID, b.locals, b.remotes, b.eq); err != nil {
		return nil, "", &BinderError{Err: err}
	}

	ctx := b.ctxb.Finish()

	inst, err := engine.Instantiate(b.eng, b.component.Engine, set, b.budget)
	if err != nil {
		return nil, "", &InstantiationFailed{Err: err}
	}

	handle := instancehandle.New(inst, ctx, b.budget)
	return handle, b.registerAs, nil
}
