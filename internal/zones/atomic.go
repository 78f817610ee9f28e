package zones

import (
	"sync/atomic"

	"github.com/jroosing/corvid/internal/dns"
)

// AtomicTable holds a Table that can be swapped for a freshly built one
// without any reader taking a lock. The resolver holds one of these (via
// the Router interface) instead of a bare *Table so the management API can
// rebuild the routing table after a zone edit and publish it with Store,
// while in-flight Lookup calls keep running against whichever Table was
// current when they started.
type AtomicTable struct {
	v atomic.Pointer[Table]
}

// NewAtomicTable wraps an initial Table.
func NewAtomicTable(t *Table) *AtomicTable {
	a := &AtomicTable{}
	a.v.Store(t)
	return a
}

// Lookup delegates to the currently published Table.
func (a *AtomicTable) Lookup(name dns.Name) ([]UpstreamSpec, bool) {
	return a.v.Load().Lookup(name)
}

// Store publishes t as the table future Lookup calls use.
func (a *AtomicTable) Store(t *Table) {
	a.v.Store(t)
}
