package models

// UpstreamSpec is one upstream server in a zone's ordered list.
type UpstreamSpec struct {
	// Kind is "udp" or "https".
	Kind string `json:"kind" binding:"required"`
	// Address is host:port for "udp", or the request URL for "https".
	Address string `json:"address" binding:"required"`
	// Host optionally overrides the HTTP Host header (not the TLS SNI) for "https".
	Host string `json:"host,omitempty"`
}

// Zone is a forwarding zone: a name and the ordered upstreams queries under
// it are routed to.
type Zone struct {
	Name      string         `json:"name"`
	Upstreams []UpstreamSpec `json:"upstreams"`
}

// ZoneListResponse contains every configured zone.
type ZoneListResponse struct {
	Zones []Zone `json:"zones"`
	Count int    `json:"count"`
}

// ZoneWriteRequest is the body for creating or replacing a zone's
// upstreams.
type ZoneWriteRequest struct {
	Name      string         `json:"name" binding:"required"`
	Upstreams []UpstreamSpec `json:"upstreams" binding:"required,min=1"`
}
