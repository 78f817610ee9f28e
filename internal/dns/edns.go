package dns

import "encoding/binary"

// EDNS (Extension Mechanisms for DNS, RFC 6891) is recognized only far
// enough to be skipped cleanly: an OPT pseudo-record decodes through the
// default case of ParseRecord into an OpaqueRecord (its NAME is the root,
// its CLASS/TTL fields are reinterpreted by senders as UDP payload size and
// extended RCODE/flags, which this resolver does not need to act on). No
// EDNS option is parsed or acted on, and no UDP size negotiation is
// performed; DefaultUDPPayloadSize governs truncation decisions uniformly.
const DefaultUDPPayloadSize = 512

// IsTruncated checks if a DNS response has the TC (Truncation) flag set.
func IsTruncated(responseBytes []byte) bool {
	if len(responseBytes) < 4 {
		return false
	}
	flags := binary.BigEndian.Uint16(responseBytes[2:4])
	return (flags & TCFlag) != 0
}
