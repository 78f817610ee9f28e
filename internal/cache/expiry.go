package cache

import (
	"container/heap"
	"sync/atomic"
	"time"

	"github.com/jroosing/corvid/internal/dns"
)

// expiryItem is one scheduled expiration. Per spec.md §4.2, the expiry
// index is a superset of live expiries: an item is validated against the
// primary index's current entry for its exact (key, type) at pop time, not
// against any separate generation counter — if that entry's own ExpiresAt
// no longer matches this item's, a later write has superseded it (the
// overwrite-without-cleanup "tombstone" case) and the pop is a no-op.
type expiryItem struct {
	key       Key
	qtype     dns.RecordType
	negative  bool
	expiresAt time.Time
	index     int
}

type expiryHeap []*expiryItem

func (h expiryHeap) Len() int { return len(h) }
func (h expiryHeap) Less(i, j int) bool {
	return h[i].expiresAt.Before(h[j].expiresAt)
}
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *expiryHeap) Push(x any) {
	it := x.(*expiryItem)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// nextExpiration returns the earliest scheduled item without removing it,
// or nil if the heap is empty.
func (c *Cache) nextExpiration() *expiryItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.expiry) == 0 {
		return nil
	}
	return c.expiry[0]
}

// removeFirst pops the earliest scheduled item and, if it is still current
// (not a tombstone left behind by a later overwrite), removes the
// corresponding entry from the primary index and returns true. A tombstoned
// pop returns false and leaves the primary index untouched.
//
// "Still current" is checked per (key, type) against that entry's own
// ExpiresAt, per spec.md §4.2 — not against a domain-wide counter, which
// would misjudge every other type under the same (name, class) as stale
// the moment any one of them is overwritten (the normal case of a domain
// holding both an A and an AAAA, or a type alongside its CNAME, with
// different TTLs).
func (c *Cache) removeFirst() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.expiry) == 0 {
		return false
	}
	it := heap.Pop(&c.expiry).(*expiryItem)

	st := c.index[it.key]
	if st == nil {
		return false // tombstone: domain removed entirely before this popped
	}

	if it.negative {
		if st.exists || !st.negative.ExpiresAt.Equal(it.expiresAt) {
			return false // tombstone: superseded by a positive or fresher negative entry
		}
		delete(c.index, it.key)
		return true
	}

	if !st.exists {
		return false // tombstone: domain is now negative, this type's entry is gone
	}
	e, ok := st.byType[it.qtype]
	if !ok || !e.ExpiresAt.Equal(it.expiresAt) {
		return false // tombstone: this type was overwritten (or removed) since this item was scheduled
	}
	delete(st.byType, it.qtype)
	if len(st.byType) == 0 {
		delete(c.index, it.key)
	}
	return true
}

// Run drives the background expiry worker until stop is closed. It sleeps
// until the next scheduled expiration, waking early whenever a fresher
// (possibly sooner) entry is inserted.
func (c *Cache) Run(stop <-chan struct{}) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		next := c.nextExpiration()
		if next == nil {
			stopTimer(timer)
			select {
			case <-stop:
				return
			case <-c.wake:
			}
			continue
		}

		d := time.Until(next.expiresAt)
		if d < 0 {
			d = 0
		}
		stopTimer(timer)
		timer.Reset(d)

		select {
		case <-stop:
			return
		case <-c.wake:
			continue
		case <-timer.C:
			c.drainExpired()
		}
	}
}

// stopTimer stops t and drains a pending fire, matching the standard
// time.Timer reset idiom.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// drainExpired pops and removes every item whose expiry has passed.
func (c *Cache) drainExpired() {
	for {
		next := c.nextExpiration()
		if next == nil || next.expiresAt.After(c.now()) {
			return
		}
		if c.removeFirst() {
			atomic.AddInt64(&c.sizeEstimate, -1)
		}
	}
}
