// Package resolver implements Corvid's per-question resolution state
// machine: cache probe, bounded CNAME chase, zone-ordered upstream
// dispatch, response validation, and cache writeback.
//
// Unlike a pooling/singleflight forwarder, this resolver deliberately does
// neither: every query that misses cache dispatches its own upstream
// exchange. Concurrency control belongs to the frontend, not here.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jroosing/corvid/internal/cache"
	"github.com/jroosing/corvid/internal/dns"
	"github.com/jroosing/corvid/internal/metrics"
	"github.com/jroosing/corvid/internal/upstream"
	"github.com/jroosing/corvid/internal/zones"
)

// maxCNAMEChain bounds CNAME chasing so a malicious or misconfigured
// upstream chain can't spin the resolver forever.
const maxCNAMEChain = 16

// Result mirrors the shape query handlers expect from any resolver: the
// wire-format response and where it came from, for logging/metrics.
type Result struct {
	ResponseBytes []byte
	Source        string
}

// Router is the zone-to-upstream lookup a Resolver dispatches through.
// Both *zones.Table and *zones.AtomicTable satisfy it; the latter lets a
// management API rebuild and hot-swap the routing table without the
// resolver needing to know.
type Router interface {
	Lookup(name dns.Name) ([]zones.UpstreamSpec, bool)
}

// Resolver answers one DNS question at a time.
type Resolver struct {
	Cache     *cache.Cache
	Zones     Router
	Exchanger *upstream.Exchanger
	Logger    *slog.Logger

	// Metrics receives resolution events (cache hit/miss, upstream
	// timeout/error, response rcode, resolve latency). Nil is fine; every
	// call site checks before incrementing.
	Metrics *metrics.Registry

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// New builds a Resolver wired to the given cache, zone table, and upstream
// exchanger.
func New(c *cache.Cache, zoneTable Router, exchanger *upstream.Exchanger) *Resolver {
	return &Resolver{Cache: c, Zones: zoneTable, Exchanger: exchanger, Now: time.Now}
}

// Close exists for parity with query-handler callers that unconditionally
// release resolver resources on shutdown; Resolver holds none of its own.
func (r *Resolver) Close() error { return nil }

// Resolve answers req, trying the cache first, then chasing CNAMEs and
// dispatching to configured upstreams as needed.
func (r *Resolver) Resolve(ctx context.Context, req dns.Packet, _ []byte) (Result, error) {
	if len(req.Questions) != 1 {
		return r.errorResult(req, dns.RCodeFormErr, "formerr"), nil
	}
	q := req.Questions[0]

	if req.Header.Flags&dns.RDFlag == 0 {
		resp := dns.Packet{
			Header: dns.Header{
				ID:      req.Header.ID,
				Flags:   responseFlags(req.Header.Flags, dns.RCodeNoError),
				QDCount: 1,
			},
			Questions: req.Questions,
		}
		b, err := resp.Marshal()
		if err != nil {
			return r.errorResult(req, dns.RCodeServFail, "marshal-error"), nil
		}
		return Result{ResponseBytes: b, Source: "rd-not-set"}, nil
	}

	start := r.Now()
	chain, err := r.resolveChain(ctx, q)
	if r.Metrics != nil {
		r.Metrics.ObserveResolveTime(r.Now().Sub(start))
	}
	if err != nil {
		if r.Metrics != nil {
			r.Metrics.IncResponse(dns.RCodeServFail)
		}
		return r.errorResult(req, dns.RCodeServFail, "servfail"), nil
	}
	if r.Metrics != nil {
		r.Metrics.IncResponse(chain.rcode)
	}

	resp := dns.Packet{
		Header: dns.Header{
			ID:      req.Header.ID,
			Flags:   responseFlags(req.Header.Flags, chain.rcode),
			QDCount: 1,
		},
		Questions:   req.Questions,
		Answers:     chain.answers,
		Authorities: chain.authority,
		Additionals: chain.additional,
	}
	b, err := resp.Marshal()
	if err != nil {
		return r.errorResult(req, dns.RCodeServFail, "marshal-error"), nil
	}
	return Result{ResponseBytes: b, Source: chain.source}, nil
}

// chainResult accumulates what resolveChain produces for one question:
// every answer seen along the CNAME chain, plus the authority/additional
// sections of whichever NODATA/NXDOMAIN hit (cache or upstream) ended it.
type chainResult struct {
	answers    []dns.Record
	authority  []dns.Record
	additional []dns.Record
	rcode      dns.RCode
	source     string
}

// resolveChain resolves q, following CNAMEs up to maxCNAMEChain times,
// accumulating every record (including intermediate CNAMEs) into the
// answer section the way a recursive resolver's final response does.
func (r *Resolver) resolveChain(ctx context.Context, q dns.Question) (chainResult, error) {
	var answers []dns.Record
	current := q.Name
	sawUpstream := false

	for hop := 0; hop < maxCNAMEChain; hop++ {
		key := cache.Key{Name: current, Class: q.Class}

		if lookup := r.Cache.Lookup(key, q.Type, r.Now()); lookup.TypeFound {
			if !lookup.Exists {
				if r.Metrics != nil {
					r.Metrics.IncCacheHitNXDomain()
				}
				return chainResult{
					answers: answers, authority: lookup.Authority, additional: lookup.Additional,
					rcode: dns.RCodeNXDomain, source: cacheSourceName(sawUpstream),
				}, nil
			}
			if r.Metrics != nil {
				r.Metrics.IncCacheHitNoError()
			}
			if lookup.NoData {
				return chainResult{
					answers: answers, authority: lookup.Authority, additional: lookup.Additional,
					rcode: dns.RCodeNoError, source: cacheSourceName(sawUpstream),
				}, nil
			}
			answers = append(answers, lookup.Records...)
			if next, ok := cnameTarget(lookup.Records); ok {
				current = next
				continue
			}
			return chainResult{answers: answers, rcode: dns.RCodeNoError, source: cacheSourceName(sawUpstream)}, nil
		}
		if r.Metrics != nil {
			r.Metrics.IncCacheMiss()
		}

		// No cache entry at all for the queried type: before dispatching
		// upstream, check whether the name is itself cached as a CNAME
		// (spec step 2). This finds a CNAME cached under its own type, as
		// an earlier query for type CNAME leaves it; cacheAnswer stores a
		// CNAME received for any other type under that queried type,
		// where the lookup above already finds it.
		if q.Type != dns.TypeCNAME {
			cnameKey := cache.Key{Name: current, Class: q.Class}
			if cl := r.Cache.Lookup(cnameKey, dns.TypeCNAME, r.Now()); cl.TypeFound && cl.Exists && !cl.NoData {
				if r.Metrics != nil {
					r.Metrics.IncCacheHitNoError()
				}
				answers = append(answers, cl.Records...)
				if next, ok := cnameTarget(cl.Records); ok {
					current = next
					continue
				}
			}
		}

		rcode, fetched, authority, additional, err := r.fetchFromUpstream(ctx, current, q.Type, q.Class)
		if err != nil {
			return chainResult{answers: answers, rcode: dns.RCodeServFail, source: "servfail"}, err
		}
		sawUpstream = true
		answers = append(answers, fetched...)

		if rcode == dns.RCodeNXDomain {
			return chainResult{answers: answers, authority: authority, additional: additional, rcode: dns.RCodeNXDomain, source: "upstream"}, nil
		}
		if rcode != dns.RCodeNoError {
			return chainResult{answers: answers, rcode: rcode, source: "upstream"}, nil
		}
		if len(fetched) == 0 {
			return chainResult{answers: answers, authority: authority, additional: additional, rcode: dns.RCodeNoError, source: "upstream"}, nil
		}
		// A recursive upstream commonly answers a CNAME'd query with the
		// whole chain in one packet: the CNAME plus the target's own
		// records. Only re-dispatch for the target when its answer isn't
		// already here — otherwise this would requery upstream and append
		// a duplicate copy of the record it just returned.
		if next, ok := cnameTarget(fetched); ok && !answersHaveType(fetched, q.Type) {
			current = next
			continue
		}
		return chainResult{answers: answers, rcode: dns.RCodeNoError, source: "upstream"}, nil
	}

	return chainResult{answers: answers, rcode: dns.RCodeServFail, source: "cname-loop"}, errors.New("cname chain exceeded limit")
}

func cacheSourceName(sawUpstream bool) string {
	if sawUpstream {
		return "mixed"
	}
	return "cache"
}

// cnameTarget returns the target of the last CNAME in records, if any
// record in the set is a CNAME pointing elsewhere.
func cnameTarget(records []dns.Record) (dns.Name, bool) {
	target, found := dns.Root, false
	for _, rr := range records {
		if nr, ok := rr.(*dns.NameRecord); ok && nr.Type() == dns.TypeCNAME {
			target, found = nr.Target, true
		}
	}
	return target, found
}

// answersHaveType reports whether records already contains an RR of qtype,
// meaning the chain's final answer arrived alongside its CNAME in the same
// response and needs no further dispatch.
func answersHaveType(records []dns.Record, qtype dns.RecordType) bool {
	for _, rr := range records {
		if rr.Type() == qtype {
			return true
		}
	}
	return false
}

// fetchFromUpstream dispatches a single (name, type, class) query to the
// zone's configured upstreams in order, stopping at the first usable
// answer. An error (network failure, malformed response, validation
// failure) falls through to the next upstream; the first validated
// response is returned with its rcode, whether NXDOMAIN, SERVFAIL or any
// other.
func (r *Resolver) fetchFromUpstream(ctx context.Context, name dns.Name, qtype dns.RecordType, class dns.RecordClass) (dns.RCode, []dns.Record, []dns.Record, []dns.Record, error) {
	ups, ok := r.Zones.Lookup(name)
	if !ok {
		return dns.RCodeServFail, nil, nil, nil, fmt.Errorf("no upstreams configured for %s", name)
	}

	query := dns.Packet{
		Header:    dns.Header{Flags: dns.RDFlag, QDCount: 1},
		Questions: []dns.Question{{Name: name, Type: qtype, Class: class}},
	}
	txid, err := upstream.NewTransactionID()
	if err != nil {
		return dns.RCodeServFail, nil, nil, nil, err
	}
	query.Header.ID = txid
	queryBytes, err := query.Marshal()
	if err != nil {
		return dns.RCodeServFail, nil, nil, nil, err
	}

	var lastErr error
	for _, up := range ups {
		if ctx.Err() != nil {
			return dns.RCodeServFail, nil, nil, nil, ctx.Err()
		}
		respBytes, err := r.Exchanger.Query(ctx, up, queryBytes)
		if err != nil {
			r.recordUpstreamFailure(err)
			lastErr = err
			continue
		}
		resp, err := dns.ParsePacket(respBytes)
		if err != nil {
			r.recordUpstreamFailure(err)
			lastErr = err
			continue
		}
		if err := validateResponse(query, resp); err != nil {
			r.recordUpstreamFailure(err)
			lastErr = err
			continue
		}

		rcode := dns.RCodeFromFlags(resp.Header.Flags)
		r.cacheAnswer(query.Questions[0], resp, rcode)
		return rcode, resp.Answers, resp.Authorities, resp.Additionals, nil
	}

	if lastErr != nil {
		return dns.RCodeServFail, nil, nil, nil, lastErr
	}
	return dns.RCodeServFail, nil, nil, nil, errors.New("no upstream servers available")
}

// recordUpstreamFailure classifies a single upstream failure as a timeout
// or a generic error for metrics purposes. A no-op when Metrics is unset.
func (r *Resolver) recordUpstreamFailure(err error) {
	if r.Metrics == nil {
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		r.Metrics.IncUpstreamTimeout()
		return
	}
	r.Metrics.IncUpstreamError()
}

// cacheAnswer derives a cache writeback from resp and stores it, per
// spec.md §4.5 step 4: NoError-with-answers caches positive records under
// the minimum answer TTL; NoError-with-no-answers is NODATA, cached only
// for the queried type under the authority section's SOA MINIMUM;
// NXDOMAIN is NODATA for the whole domain regardless of type. Any other
// rcode (SERVFAIL, etc.) is not cached at all.
func (r *Resolver) cacheAnswer(q dns.Question, resp dns.Packet, rcode dns.RCode) {
	key := cache.Key{Name: q.Name, Class: q.Class}

	switch rcode {
	case dns.RCodeNoError:
		if len(resp.Answers) == 0 {
			ttl := soaMinimumOr(resp.Authorities, 0)
			r.Cache.SetNoData(key, q.Type, resp.Authorities, resp.Additionals, ttl)
			return
		}
		ttl := minimumTTL(resp.Answers)
		if ttl <= 0 {
			return
		}
		r.Cache.SetPositive(key, q.Type, resp.Answers, ttl)
	case dns.RCodeNXDomain:
		ttl := soaMinimumOr(resp.Authorities, 0)
		r.Cache.SetNegative(key, resp.Authorities, resp.Additionals, ttl)
	}
}

func minimumTTL(answers []dns.Record) time.Duration {
	var min uint32
	found := false
	for _, rr := range answers {
		ttl := rr.Header().TTL
		if ttl == 0 {
			continue
		}
		if !found || ttl < min {
			min = ttl
			found = true
		}
	}
	if !found {
		return 0
	}
	return time.Duration(min) * time.Second
}

func soaMinimumOr(authorities []dns.Record, fallback time.Duration) time.Duration {
	for _, rr := range authorities {
		if soa, ok := rr.(*dns.SOARecord); ok && soa.Minimum > 0 {
			return time.Duration(soa.Minimum) * time.Second
		}
	}
	return fallback
}

// validateResponse guards against cache poisoning: the response must
// answer the same question that was asked, byte-exact on the name (see
// dns.Name), matching type and class.
func validateResponse(req dns.Packet, resp dns.Packet) error {
	if len(resp.Questions) == 0 {
		return errors.New("upstream response has no question section")
	}
	reqQ := req.Questions[0]
	resQ := resp.Questions[0]
	if !reqQ.Name.Equal(resQ.Name) {
		return fmt.Errorf("qname mismatch: expected %s, got %s", reqQ.Name, resQ.Name)
	}
	if reqQ.Type != resQ.Type {
		return fmt.Errorf("qtype mismatch: expected %d, got %d", reqQ.Type, resQ.Type)
	}
	if reqQ.Class != resQ.Class {
		return fmt.Errorf("qclass mismatch: expected %d, got %d", reqQ.Class, resQ.Class)
	}
	return nil
}

func (r *Resolver) errorResult(req dns.Packet, rcode dns.RCode, source string) Result {
	resp := dns.BuildErrorResponse(req, uint16(rcode))
	b, err := resp.Marshal()
	if err != nil {
		return Result{Source: source}
	}
	return Result{ResponseBytes: b, Source: source}
}

func responseFlags(reqFlags uint16, rcode dns.RCode) uint16 {
	flags := dns.QRFlag | dns.RAFlag
	flags |= reqFlags & dns.RDFlag
	flags = (flags &^ dns.RCodeMask) | (uint16(rcode) & dns.RCodeMask)
	return flags
}
