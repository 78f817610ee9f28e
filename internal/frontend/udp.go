package frontend

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jroosing/corvid/internal/dns"
	"github.com/jroosing/corvid/internal/pool"
)

// recvBufPool recycles fixed-size scratch buffers for reading datagrams off
// the socket. Each buffer is returned to the pool as soon as its contents
// are copied into a right-sized payload slice for the per-request
// goroutine, so the pool only ever holds scratch space, never data a
// resolve goroutine still needs.
var recvBufPool = pool.New(func() []byte {
	return make([]byte, dns.MaxIncomingDNSMessageSize)
})

// UDPFrontend serves DNS queries over UDP. Unlike a fixed worker pool that
// drops datagrams under load, it spawns one goroutine per received
// datagram: every query that reaches the socket gets answered (or the
// process runs out of goroutines trying), trading bounded resource use for
// never silently dropping a client's query.
type UDPFrontend struct {
	Handler *Handler
	Logger  *slog.Logger

	conn *net.UDPConn
	wg   sync.WaitGroup
}

// Run listens on addr and serves until ctx is cancelled.
func (s *UDPFrontend) Run(ctx context.Context, addr string) error {
	conn, err := listenReusePortUDP(addr)
	if err != nil {
		return err
	}
	s.conn = conn

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.recvLoop(ctx, conn)
	}()

	<-ctx.Done()
	return s.Stop(5 * time.Second)
}

func (s *UDPFrontend) recvLoop(ctx context.Context, conn *net.UDPConn) {
	for {
		buf := recvBufPool.Get()
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			recvBufPool.Put(buf)
			return
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		recvBufPool.Put(buf)

		s.wg.Add(1)
		go func(payload []byte, peer *net.UDPAddr) {
			defer s.wg.Done()
			s.handleDatagram(ctx, conn, payload, peer)
		}(payload, peer)
	}
}

func (s *UDPFrontend) handleDatagram(ctx context.Context, conn *net.UDPConn, payload []byte, peer *net.UDPAddr) {
	if s.Handler == nil {
		return
	}
	res := s.Handler.Handle(ctx, "udp", peer.String(), payload)
	if len(res.ResponseBytes) == 0 {
		return
	}

	resp := res.ResponseBytes
	if dns.IsTruncated(resp) || len(resp) > dns.DefaultUDPPayloadSize {
		resp = truncateResponse(resp, dns.DefaultUDPPayloadSize)
	}
	_, _ = conn.WriteToUDP(resp, peer)
}

// truncateResponse shrinks an oversize response to fit maxSize: it keeps
// the header and question section but drops the answer, authority, and
// additional sections, setting the TC bit so the client retries over TCP
// for the full answer, per RFC 1035 section 4.2.1. Used by both the UDP
// frontend (512-byte default payload) and the TCP frontend (65535-byte
// message cap).
func truncateResponse(resp []byte, maxSize int) []byte {
	if len(resp) <= maxSize || len(resp) < dns.HeaderSize {
		return resp
	}

	off := dns.HeaderSize
	qdcount := int(resp[4])<<8 | int(resp[5])
	for range min(qdcount, 1) {
		if _, err := dns.DecodeName(resp, &off); err != nil {
			break
		}
		off += 4 // QTYPE + QCLASS
	}
	if off > len(resp) {
		off = dns.HeaderSize
	}

	out := make([]byte, off)
	copy(out, resp[:off])
	out[2] |= byte(dns.TCFlag >> 8)
	out[6], out[7] = 0, 0   // ANCount
	out[8], out[9] = 0, 0   // NSCount
	out[10], out[11] = 0, 0 // ARCount
	return out
}

// Stop closes the listening socket and waits up to timeout for in-flight
// goroutines to finish.
func (s *UDPFrontend) Stop(timeout time.Duration) error {
	if s.conn != nil {
		_ = s.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("udp frontend: timeout waiting for goroutines to exit")
	}
}
