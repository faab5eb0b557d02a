// Package ledger holds a component's extracted Schema: a read-only map of
// interface name to function signatures, recorded once at component
// registration and shared by every instance derived from that component.
package ledger

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"isocore/schema"
)

// Ledger is the per-component extracted schema. It is immutable after
// Extract returns and requires no synchronization to read.
type Ledger struct {
	schema schema.Schema
}

// Extract records s as a component's ledger. The caller is expected to have
// walked the compiled component's type table to produce s; this package has
// no opinion on how that walk happens.
func Extract(s schema.Schema) *Ledger {
	return &Ledger{schema: s}
}

// Lookup returns the function signature declared for (iface, method), if
// any.
func (l *Ledger) Lookup(iface, method string) (*schema.FuncSig, bool) {
	return l.schema.Lookup(iface, method)
}

// LookupMethod searches every declared interface for method, for incoming
// RPC dispatch where the wire Call frame carries only a method name and not
// the interface it belongs to. Reports the owning interface name alongside
// the signature.
func (l *Ledger) LookupMethod(method string) (iface string, sig *schema.FuncSig, ok bool) {
	for name, fns := range l.schema {
		if s, found := fns[method]; found {
			return name, s, true
		}
	}
	return "", nil, false
}

// Interfaces lists the interface names this ledger declares.
func (l *Ledger) Interfaces() []string {
	names := make([]string, 0, len(l.schema))
	for name := range l.schema {
		names = append(names, name)
	}
	return names
}

// Schema exposes the underlying extracted schema for callers (the binder,
// the builder) that need full structural access rather than point lookups.
func (l *Ledger) Schema() schema.Schema { return l.schema }

// EqualityChecker memoizes schema.EqualInterface comparisons, which the
// binder re-runs on every local-link bind-time validation against a
// recurring set of (ledger, interface) pairs.
type EqualityChecker struct {
	cache *lru.Cache[string, bool]
}

// NewEqualityChecker returns a checker caching up to size recent
// comparisons.
func NewEqualityChecker(size int) *EqualityChecker {
	c, err := lru.New[string, bool](size)
	if err != nil {
		// Only invalid (non-positive) sizes reach here; callers pass a
		// constant, so fall back to a sane default rather than propagating
		// a config error through a hot comparison path.
		c, _ = lru.New[string, bool](128)
	}
	return &EqualityChecker{cache: c}
}

// EqualInterface reports whether iface is structurally identical between a
// and b, consulting and populating the memo cache by a content-derived key.
func (c *EqualityChecker) EqualInterface(a, b *Ledger, iface string) bool {
	key := cacheKey(a, b, iface)
	if v, ok := c.cache.Get(key); ok {
		return v
	}
	eq := schema.EqualInterface(a.schema, b.schema, iface)
	c.cache.Add(key, eq)
	return eq
}

func cacheKey(a, b *Ledger, iface string) string {
	return fmt.Sprintf("%s|%s|%s", renderInterface(a.schema, iface), renderInterface(b.schema, iface), iface)
}

func renderInterface(s schema.Schema, iface string) string {
	funcs, ok := s[iface]
	if !ok {
		return "<absent>"
	}
	out := ""
	for name, sig := range funcs {
		out += name + "("
		for _, p := range sig.Params {
			out += p.String() + ","
		}
		out += ")->("
		for _, r := range sig.Results {
			out += r.String() + ","
		}
		out += ");"
	}
	return out
}
