package dns

import "strings"

// Name is the canonical in-memory form of a domain name: ASCII label bytes
// joined by dots, always ending in a trailing dot (the root label).
//
// Unlike RFC 4343's case-insensitive comparison rules, Corvid treats names as
// byte-exact: "Example.com." and "example.com." are distinct cache keys and
// distinct wire names. This is a deliberate departure from typical resolver
// behavior, so that zone routing and cache lookups never silently fold case
// a client did not ask for.
type Name string

// Root is the zero-length name: the DNS root.
const Root Name = "."

// NewName canonicalizes a domain name string into a Name: it ensures exactly
// one trailing dot and leaves everything else (case, internal structure)
// untouched.
func NewName(s string) Name {
	if s == "" {
		return Root
	}
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return Name(s)
}

// Equal reports byte-exact equality, no case folding.
func (n Name) Equal(other Name) bool {
	return n == other
}

// IsRoot reports whether n is the DNS root name.
func (n Name) IsRoot() bool {
	return n == Root || n == ""
}

// String returns the canonical trailing-dot form.
func (n Name) String() string {
	return string(n)
}

// Labels splits the name into its dot-separated labels, excluding the final
// empty (root) label.
func (n Name) Labels() []string {
	trimmed := strings.TrimSuffix(string(n), ".")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, ".")
}

// HasSuffix reports whether n is equal to suffix or is a strict subdomain of
// it, comparing whole labels byte-exactly. Both names must be canonical
// (trailing-dot) form. Used by the zone routing table for longest-suffix
// matching.
func (n Name) HasSuffix(suffix Name) bool {
	if suffix.IsRoot() {
		return true
	}
	ns, ss := string(n), string(suffix)
	if ns == ss {
		return true
	}
	if len(ns) <= len(ss) {
		return false
	}
	// ns must end with ss, and the byte immediately before the match must
	// be a label boundary (a dot), so "evilexample.com." does not match
	// suffix "example.com.".
	if ns[len(ns)-len(ss):] != ss {
		return false
	}
	return ns[len(ns)-len(ss)-1] == '.'
}
