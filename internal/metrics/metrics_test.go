package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jroosing/corvid/internal/dns"
)

func TestCountersIncrementIndependently(t *testing.T) {
	r := New()
	r.IncQuery("udp")
	r.IncQuery("udp")
	r.IncQuery("tcp")
	r.IncCacheHitNoError()
	r.IncCacheHitNXDomain()
	r.IncCacheMiss()
	r.IncUpstreamTimeout()
	r.IncUpstreamError()
	r.IncResponse(dns.RCodeNXDomain)

	var buf bytes.Buffer
	assert.NoError(t, r.Render(&buf))
	out := buf.String()

	assert.Contains(t, out, `dns_queries_total{transport="udp"} 2`)
	assert.Contains(t, out, `dns_queries_total{transport="tcp"} 1`)
	assert.Contains(t, out, `dns_cache_hits_total{status="noerror"} 1`)
	assert.Contains(t, out, `dns_cache_hits_total{status="nxdomain"} 1`)
	assert.Contains(t, out, "dns_cache_misses_total 1")
	assert.Contains(t, out, "dns_upstream_timeouts_total 1")
	assert.Contains(t, out, "dns_upstream_errors_total 1")
	assert.Contains(t, out, `dns_responses_total{rcode="nxdomain"} 1`)
}

func TestCacheSizeGaugeSamplesInjectedFunc(t *testing.T) {
	r := New()
	r.SetCacheSizeGauge(func() int64 { return 42 })

	var buf bytes.Buffer
	assert.NoError(t, r.Render(&buf))

	assert.Contains(t, buf.String(), "dns_cache_size 42")
}

func TestCacheSizeGaugeDefaultsToZeroWhenUnset(t *testing.T) {
	r := New()

	var buf bytes.Buffer
	_ = r.Render(&buf)

	assert.Contains(t, buf.String(), "dns_cache_size 0")
}

func TestResolveTimeBucketsArePowersOfTwoAndCumulative(t *testing.T) {
	r := New()
	r.ObserveResolveTime(100 * time.Nanosecond)
	r.ObserveResolveTime(100 * time.Nanosecond)
	r.ObserveResolveTime(10 * time.Millisecond)

	var buf bytes.Buffer
	_ = r.Render(&buf)
	out := buf.String()

	// 100ns rounds up to the 128ns bucket; both observations land there.
	assert.Contains(t, out, `resolve_time_bucket{le="128"} 2`)
	assert.Contains(t, out, `resolve_time_bucket{le="+Inf"} 3`)
	assert.Contains(t, out, "resolve_time_count 3")

	// Buckets must appear in increasing numeric order, not map iteration
	// order, since Render sorts boundaries before emitting lines.
	idx128 := strings.Index(out, `le="128"`)
	idxInf := strings.Index(out, `le="+Inf"`)
	assert.Less(t, idx128, idxInf)
}

func TestPowerOfTwoBucketFloorsAtOneNanosecond(t *testing.T) {
	assert.Equal(t, uint64(1), powerOfTwoBucket(0))
	assert.Equal(t, uint64(1), powerOfTwoBucket(1))
	assert.Equal(t, uint64(2), powerOfTwoBucket(2*time.Nanosecond))
	assert.Equal(t, uint64(4), powerOfTwoBucket(3*time.Nanosecond))
}

func TestConcurrentObserveIsRace(t *testing.T) {
	r := New()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			r.ObserveResolveTime(time.Duration(i+1) * time.Microsecond)
			r.IncQuery("udp")
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, uint64(8), r.queriesUDP.Load())
}
