// Package registry holds the runtime's concurrent maps of components,
// peers, and live instances, and provides the id allocation and incoming-RPC
// dispatch that ties the builder, binder, ledger, and client packages
// together into the host-facing Runtime surface.
package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"isocore/binder"
	"isocore/builder"
	"isocore/client"
	"isocore/codec"
	"isocore/engine"
	"isocore/frame"
	"isocore/instancehandle"
	"isocore/ledger"
	"isocore/rtcontext"
	"isocore/schema"
	"isocore/transcoder"
	"isocore/transport"
	"isocore/value"
)

// UnknownComponent is returned when a component-id has no registered entry.
type UnknownComponent struct{ ID string }

func (e *UnknownComponent) Error() string { return fmt.Sprintf("registry: unknown component %q", e.ID) }

// UnknownInstance is returned when an instance-id (or a remote-id that
// should resolve to one) has no live entry. Per §7's propagation policy,
// this is also what a budget-exhausted instance returns on any call after
// the exhaustion that tore it down.
type UnknownInstance struct{ ID string }

func (e *UnknownInstance) Error() string { return fmt.Sprintf("registry: unknown instance %q", e.ID) }

// UnknownPeer is returned when a peer-id has no registered Client.
type UnknownPeer struct{ ID string }

func (e *UnknownPeer) Error() string { return fmt.Sprintf("registry: unknown peer %q", e.ID) }

type componentEntry struct {
	component *builder.Component
	ledger    *ledger.Ledger
	refs      int
}

type instanceEntry struct {
	handle    *instancehandle.Handle
	component string
	remoteID  string
}

// Registry is the runtime's top-level state: components, peers, instances,
// and the remote-id routing table, each behind its own lock so unrelated
// operations never contend.
type Registry struct {
	eng *engine.Engine

	mu         sync.RWMutex
	components map[string]*componentEntry

	peersMu sync.RWMutex
	peers   map[string]*client.Client

	instMu    sync.RWMutex
	instances map[string]*instanceEntry
	remoteIDs map[string]string // remote-id -> instance-id

	eq *ledger.EqualityChecker
}

// New returns an empty Registry backed by a fresh engine.
func New() *Registry {
	return &Registry{
		eng:        engine.New(),
		components: make(map[string]*componentEntry),
		peers:      make(map[string]*client.Client),
		instances:  make(map[string]*instanceEntry),
		remoteIDs:  make(map[string]string),
		eq:         ledger.NewEqualityChecker(256),
	}
}

// RegisterComponent compiles code, extracts its schema (imports and
// exports, supplied by the caller since walking a component's type table is
// engine-specific and out of this package's scope), and returns its
// component-id.
func (r *Registry) RegisterComponent(code []byte, imports, exports schema.Schema) (string, error) {
	comp, err := engine.Compile(r.eng, code)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()

	r.mu.Lock()
	r.components[id] = &componentEntry{
		component: &builder.Component{Engine: comp, ImportSig: imports, ExportSig: exports},
		ledger:    ledger.Extract(exports),
	}
	r.mu.Unlock()
	logrus.Infof("registry: registered component %s", id)
	return id, nil
}

// AddPeer wraps t in a Client and returns a peer-id.
func (r *Registry) AddPeer(t transport.Transport) string {
	id := uuid.New().String()
	r.peersMu.Lock()
	r.peers[id] = client.New(t)
	r.peersMu.Unlock()
	logrus.Infof("registry: added peer %s", id)
	return id
}

// ResolveClient implements binder.RemoteDialer.
func (r *Registry) ResolveClient(peerID string) (*client.Client, error) {
	r.peersMu.RLock()
	c, ok := r.peers[peerID]
	r.peersMu.RUnlock()
	if !ok {
		return nil, &UnknownPeer{ID: peerID}
	}
	return c, nil
}

// ResolveInstance implements binder.LocalResolver.
func (r *Registry) ResolveInstance(instanceID string) (*instancehandle.Handle, *ledger.Ledger, error) {
	r.instMu.RLock()
	entry, ok := r.instances[instanceID]
	r.instMu.RUnlock()
	if !ok {
		return nil, nil, &UnknownInstance{ID: instanceID}
	}
	r.mu.RLock()
	comp := r.components[entry.component]
	r.mu.RUnlock()
	if comp == nil {
		return nil, nil, &UnknownComponent{ID: entry.component}
	}
	return entry.handle, comp.ledger, nil
}

// liveInstanceCount feeds InstanceBuilder.WithLiveInstanceCount.
func (r *Registry) liveInstanceCount() uint64 {
	r.instMu.RLock()
	defer r.instMu.RUnlock()
	return uint64(len(r.instances))
}

// NewBuilder starts an InstanceBuilder for componentID, pre-allocating the
// instance-id it will be registered under so self-links can be rejected at
// bind time.
func (r *Registry) NewBuilder(componentID string) (*builder.InstanceBuilder, string, error) {
	r.mu.RLock()
	entry, ok := r.components[componentID]
	r.mu.RUnlock()
	if !ok {
		return nil, "", &UnknownComponent{ID: componentID}
	}
	id := uuid.New().String()
	b := builder.New(r.eng, entry.component, r, r, r.eq).
		WithSelfID(id).
		WithLiveInstanceCount(r.liveInstanceCount)
	return b, id, nil
}

// Instantiate finishes a builder and records the resulting handle under
// instanceID (as returned by NewBuilder), registering it under any
// requested remote-id too.
func (r *Registry) Instantiate(componentID, instanceID string, b *builder.InstanceBuilder) (string, error) {
	handle, remoteID, err := b.Instantiate()
	if err != nil {
		return "", err
	}

	r.instMu.Lock()
	r.instances[instanceID] = &instanceEntry{handle: handle, component: componentID, remoteID: remoteID}
	if remoteID != "" {
		r.remoteIDs[remoteID] = instanceID
	}
	r.instMu.Unlock()

	r.mu.Lock()
	if entry, ok := r.components[componentID]; ok {
		entry.refs++
	}
	r.mu.Unlock()

	logrus.Infof("registry: instantiated %s as %s", componentID, instanceID)
	return instanceID, nil
}

// RegisterInstance binds remoteID to an already-live instanceID, for cases
// where the remote-id is chosen after instantiate() rather than via
// InstanceBuilder.RegisterAs.
func (r *Registry) RegisterInstance(instanceID, remoteID string) error {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	entry, ok := r.instances[instanceID]
	if !ok {
		return &UnknownInstance{ID: instanceID}
	}
	entry.remoteID = remoteID
	r.remoteIDs[remoteID] = instanceID
	return nil
}

// LookupInstanceByRemoteID resolves a remote-id to a live instance-id.
func (r *Registry) LookupInstanceByRemoteID(remoteID string) (string, error) {
	r.instMu.RLock()
	defer r.instMu.RUnlock()
	id, ok := r.remoteIDs[remoteID]
	if !ok {
		return "", &UnknownInstance{ID: remoteID}
	}
	return id, nil
}

// RemoveInstance terminates an instance: it signals the handle removed
// (causing any exec already waiting on the mutex, or issued afterward, to
// fail with instancehandle.ErrRemoved rather than proceed) and drops the
// registry's references. It never blocks on the mutex itself, so it cannot
// deadlock against an in-flight call.
func (r *Registry) RemoveInstance(instanceID string) error {
	r.instMu.Lock()
	entry, ok := r.instances[instanceID]
	if !ok {
		r.instMu.Unlock()
		return &UnknownInstance{ID: instanceID}
	}
	delete(r.instances, instanceID)
	if entry.remoteID != "" {
		delete(r.remoteIDs, entry.remoteID)
	}
	r.instMu.Unlock()

	entry.handle.Remove()

	r.mu.Lock()
	if comp, ok := r.components[entry.component]; ok {
		comp.refs--
		if comp.refs <= 0 {
			delete(r.components, entry.component)
		}
	}
	r.mu.Unlock()

	logrus.Infof("registry: removed instance %s", instanceID)
	return nil
}

// Shutdown drains every live instance and closes every peer connection
// concurrently, returning the first error encountered. Each instance's
// removal and each peer's close run as an independent errgroup task so one
// slow transport close never holds up the rest of the teardown.
func (r *Registry) Shutdown() error {
	r.instMu.RLock()
	instanceIDs := make([]string, 0, len(r.instances))
	for id := range r.instances {
		instanceIDs = append(instanceIDs, id)
	}
	r.instMu.RUnlock()

	r.peersMu.RLock()
	peerClients := make([]*client.Client, 0, len(r.peers))
	for _, c := range r.peers {
		peerClients = append(peerClients, c)
	}
	r.peersMu.RUnlock()

	var g errgroup.Group
	for _, id := range instanceIDs {
		id := id
		g.Go(func() error { return r.RemoveInstance(id) })
	}
	for _, c := range peerClients {
		c := c
		g.Go(c.Close)
	}
	if err := g.Wait(); err != nil {
		logrus.Errorf("registry: shutdown: %v", err)
		return err
	}
	logrus.Infof("registry: shutdown complete")
	return nil
}

// Exec invokes interface.method on instanceID, lifting args from host Go
// values is the caller's responsibility (callers working through Go, e.g.
// cmd/runtimedemo, build value.Value args directly); this is the host-facing
// `runtime.exec` surface.
func (r *Registry) Exec(instanceID, iface, method string, args []*value.Value) ([]*value.Value, error) {
	r.instMu.RLock()
	entry, ok := r.instances[instanceID]
	r.instMu.RUnlock()
	if !ok {
		return nil, &UnknownInstance{ID: instanceID}
	}
	r.mu.RLock()
	comp := r.components[entry.component]
	r.mu.RUnlock()
	if comp == nil {
		return nil, &UnknownInstance{ID: instanceID}
	}
	sig, ok := comp.ledger.Lookup(iface, method)
	if !ok {
		return nil, fmt.Errorf("registry: %s.%s not exported by %s", iface, method, entry.component)
	}

	res, err := entry.handle.Exec(func(inst *engine.Instance, _ *rtcontext.Context) (any, error) {
		return inst.CallExport(method, args, sig.Params, sig.Results)
	})
	if err == instancehandle.ErrOutOfFuel || err == instancehandle.ErrOutOfMemory {
		_ = r.RemoveInstance(instanceID)
		return nil, err
	}
	if err == instancehandle.ErrRemoved {
		return nil, &UnknownInstance{ID: instanceID}
	}
	if err != nil {
		return nil, err
	}
	return res.([]*value.Value), nil
}

// HandleIncoming parses an inbound Call frame, dispatches it against the
// instance named by its target (treated as a remote-id), and encodes a
// Reply with the same seq. The caller is responsible for sending the
// returned bytes back over whichever transport delivered msg.
func (r *Registry) HandleIncoming(msg []byte) []byte {
	env, err := frame.Decode(msg)
	if err != nil || !env.IsCall {
		logrus.Warnf("registry: dropping unparseable incoming message: %v", err)
		return nil
	}
	call := env.Call
	reply := r.dispatchCall(call)
	b, err := frame.EncodeReply(reply)
	if err != nil {
		logrus.Errorf("registry: failed to encode reply for seq=%d: %v", call.Seq, err)
		return nil
	}
	return b
}

func (r *Registry) dispatchCall(call *frame.Call) *frame.Reply {
	instanceID, err := r.LookupInstanceByRemoteID(call.Target)
	if err != nil {
		return &frame.Reply{Seq: call.Seq, Err: &frame.Failure{Reason: frame.ReasonInstanceNotFound}}
	}
	r.instMu.RLock()
	entry, ok := r.instances[instanceID]
	r.instMu.RUnlock()
	if !ok {
		return &frame.Reply{Seq: call.Seq, Err: &frame.Failure{Reason: frame.ReasonInstanceNotFound}}
	}
	r.mu.RLock()
	comp := r.components[entry.component]
	r.mu.RUnlock()
	if comp == nil {
		return &frame.Reply{Seq: call.Seq, Err: &frame.Failure{Reason: frame.ReasonInstanceNotFound}}
	}
	_, sig, ok := comp.ledger.LookupMethod(call.Method)
	if !ok {
		return &frame.Reply{Seq: call.Seq, Err: &frame.Failure{Reason: frame.ReasonMethodNotFound}}
	}

	args, err := decodeArgsSlab(call.Args, sig.Params)
	if err != nil {
		return &frame.Reply{Seq: call.Seq, Err: &frame.Failure{Reason: frame.ReasonDecodeError, Description: err.Error()}}
	}
	if len(args) != len(sig.Params) {
		return &frame.Reply{Seq: call.Seq, Err: &frame.Failure{Reason: frame.ReasonBadArgumentCount}}
	}

	res, err := entry.handle.Exec(func(inst *engine.Instance, _ *rtcontext.Context) (any, error) {
		return inst.CallExport(call.Method, args, sig.Params, sig.Results)
	})
	if err == instancehandle.ErrRemoved {
		return &frame.Reply{Seq: call.Seq, Err: &frame.Failure{Reason: frame.ReasonInstanceNotFound}}
	}
	if err == instancehandle.ErrOutOfFuel {
		_ = r.RemoveInstance(instanceID)
		return &frame.Reply{Seq: call.Seq, Err: &frame.Failure{Reason: frame.ReasonOutOfFuel}}
	}
	if err == instancehandle.ErrOutOfMemory {
		_ = r.RemoveInstance(instanceID)
		return &frame.Reply{Seq: call.Seq, Err: &frame.Failure{Reason: frame.ReasonOutOfMemory}}
	}
	if f, ok := err.(*frame.Failure); ok {
		return &frame.Reply{Seq: call.Seq, Err: f}
	}
	if err != nil {
		return &frame.Reply{Seq: call.Seq, Err: &frame.Failure{Reason: frame.ReasonTrapped, Description: err.Error()}}
	}

	resultsSlab, err := encodeResultsSlab(res.([]*value.Value), sig.Results)
	if err != nil {
		return &frame.Reply{Seq: call.Seq, Err: &frame.Failure{Reason: frame.ReasonDecodeError, Description: err.Error()}}
	}
	return &frame.Reply{Seq: call.Seq, Results: resultsSlab}
}

func decodeArgsSlab(slab []byte, types []*schema.Type) ([]*value.Value, error) {
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

func encodeResultsSlab(values []*value.Value, types []*schema.Type) ([]byte, error) {
	enc := codec.NewEncoder()
	enc.OpenList()
	for i, t := range types {
		if err := transcoder.Encode(enc, values[i], t); err != nil {
			return nil, err
		}
	}
	if err := enc.Finish(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

var _ binder.LocalResolver = (*Registry)(nil)
var _ binder.RemoteDialer = (*Registry)(nil)
