// Package upstream implements the wire transports used to reach upstream
// DNS servers: plain UDP (with TCP fallback on truncation) and DNS-over-HTTPS.
// It is transport only — no caching, pooling, or health tracking lives here;
// that belongs to the resolver that decides which upstream to try and in
// what order.
package upstream

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jroosing/corvid/internal/dns"
	"github.com/jroosing/corvid/internal/helpers"
)

const defaultRecvSize = 4096

// UDPClient sends DNS queries over UDP, falling back to TCP when the
// response is truncated. Each query uses a fresh transient connection —
// no pooling, since a forwarder this size gains little from it and pooling
// adds a lifecycle (health-checking pooled sockets) this package doesn't
// need to own.
type UDPClient struct {
	Timeout    time.Duration
	TCPTimeout time.Duration
	RecvSize   int
}

// NewUDPClient returns a UDPClient with the package's default timeouts.
func NewUDPClient() *UDPClient {
	return &UDPClient{
		Timeout:    3 * time.Second,
		TCPTimeout: 5 * time.Second,
		RecvSize:   defaultRecvSize,
	}
}

// Query sends query to addr (host:port) over UDP and returns the raw
// response bytes. If the response has the truncation bit set, it
// transparently retries the same query over TCP. The transaction ID in
// query is used as-is; callers that want cache-sharing across clients must
// normalize it themselves before calling.
func (c *UDPClient) Query(ctx context.Context, addr string, query []byte) ([]byte, error) {
	resp, err := c.queryUDP(ctx, addr, query)
	if err != nil {
		return nil, err
	}
	if dns.IsTruncated(resp) {
		return QueryTCP(ctx, addr, query, c.tcpTimeout())
	}
	return resp, nil
}

func (c *UDPClient) tcpTimeout() time.Duration {
	if c.TCPTimeout <= 0 {
		return 5 * time.Second
	}
	return c.TCPTimeout
}

func (c *UDPClient) queryUDP(ctx context.Context, addr string, query []byte) ([]byte, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve upstream %s: %w", addr, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial upstream %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout())
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := conn.Write(query); err != nil {
		return nil, fmt.Errorf("write to upstream %s: %w", addr, err)
	}

	recvSize := c.RecvSize
	if recvSize <= 0 {
		recvSize = defaultRecvSize
	}
	buf := make([]byte, recvSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read from upstream %s: %w", addr, err)
	}
	return buf[:n:n], nil
}

func (c *UDPClient) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 3 * time.Second
	}
	return c.Timeout
}

// QueryTCP sends query to addr over TCP using RFC 1035 section 4.2.2's
// 2-byte length-prefix framing and returns the response.
func QueryTCP(ctx context.Context, addr string, query []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial upstream %s over tcp: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], helpers.ClampIntToUint16(len(query)))
	if _, err := conn.Write(prefix[:]); err != nil {
		return nil, err
	}
	if _, err := conn.Write(query); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, err
	}
	respLen := int(binary.BigEndian.Uint16(prefix[:]))
	if respLen <= 0 {
		return nil, errors.New("tcp response length is zero")
	}

	resp := make([]byte, respLen)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// NewTransactionID returns a cryptographically random 16-bit transaction ID,
// so two clients racing the same question never collide on the wire.
func NewTransactionID() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
