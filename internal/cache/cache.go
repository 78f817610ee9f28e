// Package cache implements Corvid's answer cache: a primary index keyed by
// (name, class) holding per-type records, and a separate time-ordered
// expiry index drained by a background worker. There is no LRU eviction —
// entries live exactly until their TTL elapses, never longer and never
// shorter.
//
// This is a deliberately different architecture from a textbook TTL-LRU
// cache (see DESIGN.md): capacity pressure is not a reason to evict here,
// only expiry is.
package cache

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jroosing/corvid/internal/dns"
)

// Key identifies a cached domain: its name and query class.
type Key struct {
	Name  dns.Name
	Class dns.RecordClass
}

// Entry is one cached answer: either the record set for a single type
// (positive), a per-type NODATA marker (name exists, nothing of this type
// does), or, when stored as a domain's negative entry, the NXDOMAIN marker
// for the whole domain. Authority/Additional carry the SOA (and any glue)
// a NODATA/NXDOMAIN response needs to hand back to the client.
type Entry struct {
	Records    []dns.Record
	Authority  []dns.Record
	Additional []dns.Record
	NoData     bool
	InsertedAt time.Time
	ExpiresAt  time.Time
}

// domainState is the value stored per Key in the primary index.
type domainState struct {
	exists bool
	byType map[dns.RecordType]Entry // valid when exists
	negative Entry                  // valid when !exists
}

// LookupResult is what Lookup returns to the resolver.
type LookupResult struct {
	Exists     bool
	NoData     bool
	Records    []dns.Record // only set on a positive (Ok) hit
	Authority  []dns.Record // set on a NODATA or NXDOMAIN hit
	Additional []dns.Record
	TypeFound  bool
	Remaining  time.Duration
}

// Cache is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	index map[Key]*domainState

	expiry expiryHeap

	wake chan struct{}

	sizeEstimate int64 // atomic; number of cached (domain,type) entries plus negative entries

	now func() time.Time
}

// New creates an empty cache. The returned cache does no background work
// until Run is started.
func New() *Cache {
	return &Cache{
		index: make(map[Key]*domainState),
		wake:  make(chan struct{}, 1),
		now:   time.Now,
	}
}

// SizeEstimate returns the current number of cached entries (the
// dns_cache_size gauge).
func (c *Cache) SizeEstimate() int64 {
	return atomic.LoadInt64(&c.sizeEstimate)
}

// Lookup looks up a (name, class, type) triple. It does not itself expire
// entries eagerly beyond checking the stored ExpiresAt against now — actual
// removal from the index is the background worker's job, so a lookup that
// lands exactly on an about-to-expire entry still sees it as a miss once
// expired, without racing the worker's bookkeeping.
func (c *Cache) Lookup(key Key, qtype dns.RecordType, at time.Time) LookupResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.index[key]
	if st == nil {
		return LookupResult{}
	}

	if !st.exists {
		if st.negative.ExpiresAt.After(at) {
			return LookupResult{
				Exists: false, TypeFound: true,
				Authority: st.negative.Authority, Additional: st.negative.Additional,
				Remaining: st.negative.ExpiresAt.Sub(at),
			}
		}
		return LookupResult{}
	}

	e, ok := st.byType[qtype]
	if !ok || !e.ExpiresAt.After(at) {
		return LookupResult{Exists: true}
	}
	if e.NoData {
		return LookupResult{
			Exists: true, NoData: true, TypeFound: true,
			Authority: e.Authority, Additional: e.Additional,
			Remaining: e.ExpiresAt.Sub(at),
		}
	}
	return LookupResult{Exists: true, Records: e.Records, TypeFound: true, Remaining: e.ExpiresAt.Sub(at)}
}

// SetPositive records an answer for (name, class, type), overwriting any
// previous entry for that type. If the domain was previously marked
// NXDOMAIN, that marking is cleared (a positive answer is authoritative
// over a stale negative one).
func (c *Cache) SetPositive(key Key, qtype dns.RecordType, records []dns.Record, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()
	expires := now.Add(ttl)

	c.mu.Lock()
	st := c.index[key]
	replacedNegative := st != nil && !st.exists
	if st == nil || !st.exists {
		st = &domainState{exists: true, byType: make(map[dns.RecordType]Entry)}
		c.index[key] = st
	}
	_, existed := st.byType[qtype]
	st.byType[qtype] = Entry{Records: records, InsertedAt: now, ExpiresAt: expires}
	heap.Push(&c.expiry, &expiryItem{key: key, qtype: qtype, negative: false, expiresAt: expires})
	c.mu.Unlock()

	if !existed {
		atomic.AddInt64(&c.sizeEstimate, 1)
	}
	if replacedNegative {
		atomic.AddInt64(&c.sizeEstimate, -1)
	}
	c.notifyWorker()
}

// SetNoData records that (name, class, type) carries no records — the
// domain exists but nothing of this type does — caching authority (the
// SOA, per RFC 2308) so a repeat query within ttl needn't reach upstream.
// Unlike SetNegative this is scoped to a single type: a name can be NODATA
// for AAAA while still answering A from the same cache.
func (c *Cache) SetNoData(key Key, qtype dns.RecordType, authority, additional []dns.Record, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()
	expires := now.Add(ttl)

	c.mu.Lock()
	st := c.index[key]
	replacedNegative := st != nil && !st.exists
	if st == nil || !st.exists {
		st = &domainState{exists: true, byType: make(map[dns.RecordType]Entry)}
		c.index[key] = st
	}
	_, existed := st.byType[qtype]
	st.byType[qtype] = Entry{
		Authority: authority, Additional: additional, NoData: true,
		InsertedAt: now, ExpiresAt: expires,
	}
	heap.Push(&c.expiry, &expiryItem{key: key, qtype: qtype, negative: false, expiresAt: expires})
	c.mu.Unlock()

	if !existed {
		atomic.AddInt64(&c.sizeEstimate, 1)
	}
	if replacedNegative {
		atomic.AddInt64(&c.sizeEstimate, -1)
	}
	c.notifyWorker()
}

// SetNegative records that (name, class) does not exist (NXDOMAIN),
// superseding any per-type records previously cached for it. authority
// carries the SOA a negative response needs so a cache hit can still hand
// back the same authority section an upstream NXDOMAIN would have.
func (c *Cache) SetNegative(key Key, authority, additional []dns.Record, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()
	expires := now.Add(ttl)

	c.mu.Lock()
	st := c.index[key]
	var sizeDelta int64
	switch {
	case st == nil:
		st = &domainState{}
		c.index[key] = st
		sizeDelta = 1
	case st.exists:
		// Positive entries this negative marking supersedes pop as
		// tombstones from the expiry heap; collapse their accounting to a
		// single negative entry now rather than waiting for each to pop.
		sizeDelta = 1 - int64(len(st.byType))
	default:
		// Already negative: refreshing the TTL doesn't change the count.
	}
	st.exists = false
	st.byType = nil
	st.negative = Entry{Authority: authority, Additional: additional, InsertedAt: now, ExpiresAt: expires}
	heap.Push(&c.expiry, &expiryItem{key: key, negative: true, expiresAt: expires})
	c.mu.Unlock()

	if sizeDelta != 0 {
		atomic.AddInt64(&c.sizeEstimate, sizeDelta)
	}
	c.notifyWorker()
}

func (c *Cache) notifyWorker() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
