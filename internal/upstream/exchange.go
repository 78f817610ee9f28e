package upstream

import (
	"context"
	"fmt"

	"github.com/jroosing/corvid/internal/zones"
)

// Exchanger sends one already-encoded DNS query to a configured upstream
// and returns the raw response bytes.
type Exchanger struct {
	UDP *UDPClient
	DoH *DoHClient
}

// NewExchanger returns an Exchanger with default UDP and DoH clients.
func NewExchanger() *Exchanger {
	return &Exchanger{UDP: NewUDPClient(), DoH: NewDoHClient()}
}

// Query dispatches query to up using the transport its Kind specifies.
func (e *Exchanger) Query(ctx context.Context, up zones.UpstreamSpec, query []byte) ([]byte, error) {
	switch up.Kind {
	case zones.KindUDP:
		return e.UDP.Query(ctx, up.Address, query)
	case zones.KindDoH:
		return e.DoH.Query(ctx, up.Address, up.Host, query)
	default:
		return nil, fmt.Errorf("unknown upstream kind %d for %s", up.Kind, up.Address)
	}
}
