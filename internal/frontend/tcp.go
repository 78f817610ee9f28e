package frontend

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// TCP frontend tuning constants.
const (
	maxTCPMessageSize  = 65535
	tcpReadTimeout     = 10 * time.Second
	tcpIdleTimeout     = 120 * time.Second
	maxInFlightPerConn = 64
)

// TCPFrontend serves DNS queries over TCP with true pipelining: a reader
// goroutine dispatches each query to its own resolve goroutine as soon as
// it's read, and a writer goroutine drains completions strictly in the
// order the queries arrived — so one slow query can't block queries behind
// it from resolving concurrently, but clients still see in-order replies
// the way RFC 7766 pipelining expects.
type TCPFrontend struct {
	Handler *Handler
	Logger  *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

// Run listens on addr and serves TCP connections until ctx is cancelled.
func (s *TCPFrontend) Run(ctx context.Context, addr string) error {
	ln, err := listenReusePortTCP(addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx, ln)
	}()

	<-ctx.Done()
	return s.Stop(5 * time.Second)
}

func (s *TCPFrontend) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConnection(ctx, c)
		}(conn)
	}
}

// pendingReply is one query's in-order slot: the writer blocks on ready
// until the resolve goroutine fills it, guaranteeing replies are written
// in arrival order even though resolution runs concurrently.
type pendingReply struct {
	ready chan struct{}
	resp  []byte
}

func (s *TCPFrontend) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan *pendingReply, maxInFlightPerConn)
	inFlight := make(chan struct{}, maxInFlightPerConn)

	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		s.writeLoop(conn, queue)
	}()

	for {
		msg, ok := s.readMessage(conn)
		if !ok {
			break
		}
		if len(msg) == 0 {
			continue
		}

		slot := &pendingReply{ready: make(chan struct{})}
		select {
		case queue <- slot:
		case <-connCtx.Done():
			close(queue)
			writerWG.Wait()
			return
		}

		inFlight <- struct{}{}
		go func(payload []byte, slot *pendingReply) {
			defer func() { <-inFlight }()
			defer close(slot.ready)
			if s.Handler == nil {
				return
			}
			res := s.Handler.Handle(connCtx, "tcp", conn.RemoteAddr().String(), payload)
			slot.resp = res.ResponseBytes
		}(msg, slot)
	}

	close(queue)
	writerWG.Wait()
}

// writeLoop drains queue in order, blocking on each slot's ready signal
// before writing its response, so replies go out in the order queries
// arrived regardless of which resolve goroutine finished first.
func (s *TCPFrontend) writeLoop(conn net.Conn, queue <-chan *pendingReply) {
	for slot := range queue {
		<-slot.ready
		if len(slot.resp) == 0 {
			continue
		}
		if !s.writeMessage(conn, slot.resp) {
			return
		}
	}
}

// readMessage reads one length-prefixed query. The length prefix's read
// deadline is the connection's full idle timeout (§4.6/§6: 120s with no
// in-flight work and no pending write before closing) since that wait is
// the idle wait itself; once a length prefix has arrived, a message is
// known to be mid-flight and the shorter tcpReadTimeout applies to the
// body so a peer that sends a length but stalls the payload doesn't tie
// up the connection for the full idle budget.
func (s *TCPFrontend) readMessage(conn net.Conn) ([]byte, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(tcpIdleTimeout))
	var lenBuf [2]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, false
	}
	msgLen := int(binary.BigEndian.Uint16(lenBuf[:]))
	if msgLen == 0 {
		return nil, true
	}
	if msgLen > maxTCPMessageSize {
		return nil, false
	}

	_ = conn.SetReadDeadline(time.Now().Add(tcpReadTimeout))
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(conn, msg); err != nil {
		return nil, false
	}
	return msg, true
}

func (s *TCPFrontend) writeMessage(conn net.Conn, response []byte) bool {
	if len(response) > maxTCPMessageSize {
		response = truncateResponse(response, maxTCPMessageSize)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(tcpReadTimeout))

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(response)))

	bufs := net.Buffers{lenBuf[:], response}
	_, err := bufs.WriteTo(conn)
	return err == nil
}

// Stop closes the listener and waits up to timeout for active connections
// to finish.
func (s *TCPFrontend) Stop(timeout time.Duration) error {
	if s.listener != nil {
		_ = s.listener.Close()
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
		return errors.New("tcp frontend: timeout waiting for connections to close")
	}
}
