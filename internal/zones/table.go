// Package zones implements the zone-name to upstream-server routing table:
// given a query name, find the most specific configured zone that covers
// it and the ordered list of upstreams to try for it.
package zones

import (
	"fmt"

	"github.com/jroosing/corvid/internal/dns"
)

// UpstreamKind distinguishes the transports a zone's upstreams may use.
type UpstreamKind int

const (
	// KindUDP is a plain UDP (RFC 1035) upstream, host:port.
	KindUDP UpstreamKind = iota
	// KindDoH is a DNS-over-HTTPS (RFC 8484) upstream, a URL.
	KindDoH
)

// UpstreamSpec is one upstream server to try for a zone.
type UpstreamSpec struct {
	Kind UpstreamKind
	// Address is host:port for KindUDP, or the request URL for KindDoH.
	Address string
	// Host optionally overrides the HTTP Host header for KindDoH, letting
	// the URL target an IP directly while still presenting the right name
	// in the request. The TLS SNI still comes from the URL.
	Host string
}

// Entry is one configured zone: the zone name and its ordered upstream
// list, tried in order until one yields a usable answer.
type Entry struct {
	Zone      dns.Name
	Upstreams []UpstreamSpec
}

// Table is the built, queryable routing table. Safe for concurrent reads;
// build a new Table and swap it to reload.
type Table struct {
	byZone map[dns.Name][]UpstreamSpec
}

// NewTable builds a routing table from a list of zone entries. A duplicate
// zone name is a fatal configuration error, not a silent override — two
// upstream lists for the same zone is almost certainly a config mistake the
// operator wants surfaced immediately, not resolved by last-write-wins.
func NewTable(entries []Entry) (*Table, error) {
	byZone := make(map[dns.Name][]UpstreamSpec, len(entries))
	for _, e := range entries {
		if len(e.Upstreams) == 0 {
			return nil, fmt.Errorf("zone %q has no upstreams configured", e.Zone)
		}
		if _, dup := byZone[e.Zone]; dup {
			return nil, fmt.Errorf("duplicate zone name %q in configuration", e.Zone)
		}
		byZone[e.Zone] = e.Upstreams
	}
	return &Table{byZone: byZone}, nil
}

// Lookup finds the most specific configured zone that is a suffix of name
// (or equal to it), and returns its upstream list. Matching walks from the
// full name down to the root, one label at a time, so "a.b.example.com."
// prefers a zone "b.example.com." over a broader "example.com." or ".".
func (t *Table) Lookup(name dns.Name) ([]UpstreamSpec, bool) {
	for _, candidate := range suffixes(name) {
		if ups, ok := t.byZone[candidate]; ok {
			return ups, true
		}
	}
	return nil, false
}

// suffixes yields name, then each progressively shorter suffix, ending at
// the root — the order Lookup needs for longest-match-first.
func suffixes(name dns.Name) []dns.Name {
	labels := name.Labels()
	out := make([]dns.Name, 0, len(labels)+1)
	for i := range labels {
		out = append(out, dns.NewName(joinFrom(labels, i)))
	}
	out = append(out, dns.Root)
	return out
}

func joinFrom(labels []string, from int) string {
	s := ""
	for i := from; i < len(labels); i++ {
		if s != "" {
			s += "."
		}
		s += labels[i]
	}
	return s
}
