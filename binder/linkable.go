// Package binder installs host functions satisfying a component's imports,
// one per (interface, function), according to the Linkable strategy chosen
// for that interface: System (a host-native provider), Local (another live
// instance in this process), or Remote (a peer reached through a Client).
package binder

import (
	"isocore/engine"
	"isocore/schema"
)

// Linkable is the closed sum type describing how one named import is
// satisfied. Exactly one of the System/Local/Remote constructors should be
// used to build a value; Kind selects which fields are meaningful.
type Linkable struct {
	Kind LinkKind

	// System
	Provider SystemProvider

	// Local
	TargetInstanceID string

	// Remote
	PeerID string
	Target string
}

// LinkKind selects which of a Linkable's strategies is active.
type LinkKind int

const (
	LinkSystem LinkKind = iota
	LinkLocal
	LinkRemote
)

// SystemProvider is a host-native object that installs itself directly into
// the linker and may contribute capabilities to the instance's Context
// during builder setup.
type SystemProvider interface {
	// Functions returns this provider's host implementations, keyed by
	// function name within the interface it is linked under.
	Functions() map[string]engine.HostFunc
	// Schema returns the signatures for the functions Functions()
	// implements, so the binder can register them under an ImportSet entry
	// with the correct schema.FuncSig.
	Schema() map[string]*schema.FuncSig
}

// System builds a System-strategy Linkable.
func System(p SystemProvider) Linkable { return Linkable{Kind: LinkSystem, Provider: p} }

// Local builds a Local-strategy Linkable naming the target instance.
func Local(instanceID string) Linkable { return Linkable{Kind: LinkLocal, TargetInstanceID: instanceID} }

// Remote builds a Remote-strategy Linkable naming the peer and target
// string the call should carry.
func Remote(peerID, target string) Linkable { return Linkable{Kind: LinkRemote, PeerID: peerID, Target: target} }
