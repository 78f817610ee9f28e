// Package metrics collects the counters, gauge, and histogram the
// specification's event model defines, and renders them as Prometheus-style
// text exposition. Incrementing a counter is the core's job (resolver,
// cache, frontend); rendering the text body is this package's only
// core-visible surface, per spec.md's "thin contract" scope note.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jroosing/corvid/internal/dns"
)

// Registry holds every counter/gauge/histogram the resolver and frontends
// update during normal operation. All counter/gauge fields are atomics
// (relaxed-ordering increments, per the specification's concurrency
// model); the histogram's bucket map uses its own read/write lock, taken
// exclusively only when a new bucket key is first observed.
type Registry struct {
	queriesUDP atomic.Uint64
	queriesTCP atomic.Uint64

	cacheHitsNoError  atomic.Uint64
	cacheHitsNXDomain atomic.Uint64
	cacheMisses       atomic.Uint64

	upstreamTimeouts atomic.Uint64
	upstreamErrors   atomic.Uint64

	responsesNoError  atomic.Uint64
	responsesNXDomain atomic.Uint64
	responsesServFail atomic.Uint64
	responsesFormErr  atomic.Uint64

	histMu  sync.RWMutex
	buckets map[uint64]*atomic.Uint64

	cacheSizeFunc atomic.Value // func() int64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{buckets: make(map[uint64]*atomic.Uint64)}
}

// SetCacheSizeGauge wires the dns_cache_size gauge to fn, called at render
// time. The cache itself is the only component that knows its own
// SizeEstimate accounting (inserts add, the expiry worker subtracts, per
// spec.md §4.7), so the gauge is sampled rather than separately maintained
// here.
func (r *Registry) SetCacheSizeGauge(fn func() int64) {
	r.cacheSizeFunc.Store(fn)
}

// IncQuery records one inbound RD=1 request on the given transport ("udp" or
// "tcp"). Matches spec.md §4.6: "a metrics counter for total UDP requests
// is incremented when RD=1" generalized to both frontends.
func (r *Registry) IncQuery(transport string) {
	switch transport {
	case "udp":
		r.queriesUDP.Add(1)
	case "tcp":
		r.queriesTCP.Add(1)
	}
}

// IncCacheHitNoError records a cache hit that answered with records
// (spec.md §8 scenario 1: "increments cache_hits_noerror").
func (r *Registry) IncCacheHitNoError() { r.cacheHitsNoError.Add(1) }

// IncCacheHitNXDomain records a cache hit served from an NXDOMAIN entry
// (spec.md §8 scenario 2).
func (r *Registry) IncCacheHitNXDomain() { r.cacheHitsNXDomain.Add(1) }

// IncCacheMiss records a cache probe that found nothing usable, forcing an
// upstream dispatch.
func (r *Registry) IncCacheMiss() { r.cacheMisses.Add(1) }

// IncUpstreamTimeout records one upstream resolve that timed out (spec.md
// §8 scenario 4: "one Timeout is logged").
func (r *Registry) IncUpstreamTimeout() { r.upstreamTimeouts.Add(1) }

// IncUpstreamError records one upstream resolve that failed for a reason
// other than timeout (network error, decode failure, validation failure).
func (r *Registry) IncUpstreamError() { r.upstreamErrors.Add(1) }

// IncResponse records the rcode returned to a client.
func (r *Registry) IncResponse(rcode dns.RCode) {
	switch rcode {
	case dns.RCodeNoError:
		r.responsesNoError.Add(1)
	case dns.RCodeNXDomain:
		r.responsesNXDomain.Add(1)
	case dns.RCodeServFail:
		r.responsesServFail.Add(1)
	case dns.RCodeFormErr:
		r.responsesFormErr.Add(1)
	}
}

// ObserveResolveTime records how long one question took to resolve,
// bucketed by the smallest power-of-two nanosecond boundary at or above
// the observed duration (spec.md §6: "histogram resolve_time labelled by
// power-of-two nanosecond bucket").
func (r *Registry) ObserveResolveTime(d time.Duration) {
	bucket := powerOfTwoBucket(d)

	r.histMu.RLock()
	counter, ok := r.buckets[bucket]
	r.histMu.RUnlock()

	if !ok {
		r.histMu.Lock()
		counter, ok = r.buckets[bucket]
		if !ok {
			counter = &atomic.Uint64{}
			r.buckets[bucket] = counter
		}
		r.histMu.Unlock()
	}
	counter.Add(1)
}

// powerOfTwoBucket returns the smallest power of two (in nanoseconds) that
// is greater than or equal to d, with a floor of 1ns.
func powerOfTwoBucket(d time.Duration) uint64 {
	ns := d.Nanoseconds()
	if ns <= 1 {
		return 1
	}
	var b uint64 = 1
	for b < uint64(ns) {
		b <<= 1
	}
	return b
}

// Render writes the current state of every metric as Prometheus text
// exposition format to w.
func (r *Registry) Render(w io.Writer) error {
	lines := []string{
		counterLine("dns_queries_total", `transport="udp"`, r.queriesUDP.Load()),
		counterLine("dns_queries_total", `transport="tcp"`, r.queriesTCP.Load()),
		counterLine("dns_cache_hits_total", `status="noerror"`, r.cacheHitsNoError.Load()),
		counterLine("dns_cache_hits_total", `status="nxdomain"`, r.cacheHitsNXDomain.Load()),
		counterLine("dns_cache_misses_total", "", r.cacheMisses.Load()),
		counterLine("dns_upstream_timeouts_total", "", r.upstreamTimeouts.Load()),
		counterLine("dns_upstream_errors_total", "", r.upstreamErrors.Load()),
		counterLine("dns_responses_total", `rcode="noerror"`, r.responsesNoError.Load()),
		counterLine("dns_responses_total", `rcode="nxdomain"`, r.responsesNXDomain.Load()),
		counterLine("dns_responses_total", `rcode="servfail"`, r.responsesServFail.Load()),
		counterLine("dns_responses_total", `rcode="formerr"`, r.responsesFormErr.Load()),
	}

	if fn, ok := r.cacheSizeFunc.Load().(func() int64); ok && fn != nil {
		lines = append(lines, fmt.Sprintf("dns_cache_size %d", fn()))
	} else {
		lines = append(lines, "dns_cache_size 0")
	}

	lines = append(lines, r.renderHistogram()...)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) renderHistogram() []string {
	r.histMu.RLock()
	boundaries := make([]uint64, 0, len(r.buckets))
	counts := make(map[uint64]uint64, len(r.buckets))
	for b, c := range r.buckets {
		boundaries = append(boundaries, b)
		counts[b] = c.Load()
	}
	r.histMu.RUnlock()

	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i] < boundaries[j] })

	var cumulative uint64
	var sumNs uint64
	out := make([]string, 0, len(boundaries)+2)
	for _, b := range boundaries {
		c := counts[b]
		cumulative += c
		sumNs += b * c
		out = append(out, fmt.Sprintf(`resolve_time_bucket{le="%d"} %d`, b, cumulative))
	}
	out = append(out, fmt.Sprintf(`resolve_time_bucket{le="+Inf"} %d`, cumulative))
	out = append(out, fmt.Sprintf("resolve_time_sum %d", sumNs))
	out = append(out, fmt.Sprintf("resolve_time_count %d", cumulative))
	return out
}

func counterLine(name, labels string, value uint64) string {
	if labels == "" {
		return fmt.Sprintf("%s %d", name, value)
	}
	return fmt.Sprintf("%s{%s} %d", name, labels, value)
}
