package upstream

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startEchoUDPServer replies to every datagram with a canned response,
// regardless of what was sent, and returns its address.
func startEchoUDPServer(t *testing.T, response []byte) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 4096)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			_ = n
			_, _ = conn.WriteToUDP(response, addr)
		}
	}()
	return conn.LocalAddr().String()
}

func TestUDPClientQueryReturnsResponse(t *testing.T) {
	want := []byte{0, 1, 0x81, 0x80, 0, 1, 0, 1, 0, 0, 0, 0}
	addr := startEchoUDPServer(t, want)

	c := NewUDPClient()
	c.Timeout = time.Second
	got, err := c.Query(context.Background(), addr, []byte{0, 1, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestUDPClientTruncationTriggersTCPRetryToSameHost(t *testing.T) {
	truncated := []byte{0, 1, 0x83, 0x80, 0, 1, 0, 0, 0, 0, 0, 0} // TC bit set
	addr := startEchoUDPServer(t, truncated)

	c := NewUDPClient()
	c.Timeout = time.Second
	c.TCPTimeout = 200 * time.Millisecond
	// Nothing listens for TCP at addr, so the automatic fallback must fail
	// fast with a dial error rather than silently returning the truncated
	// UDP response.
	_, err := c.Query(context.Background(), addr, []byte{0, 1, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
}

func TestQueryTCPFraming(t *testing.T) {
	full := []byte{0, 1, 0x81, 0x80, 0, 1, 0, 1, 0, 0, 0, 0, 0xde, 0xad}
	tcpAddr := startEchoTCPServer(t, full)

	got, err := QueryTCP(context.Background(), tcpAddr, []byte{0, 1}, time.Second)
	require.NoError(t, err)
	require.Equal(t, full, got)
}

func startEchoTCPServer(t *testing.T, response []byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				var prefix [2]byte
				if _, err := c.Read(prefix[:]); err != nil {
					return
				}
				var out [2]byte
				out[0] = byte(len(response) >> 8)
				out[1] = byte(len(response))
				if _, err := c.Write(out[:]); err != nil {
					return
				}
				_, _ = c.Write(response)
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestNewTransactionIDVaries(t *testing.T) {
	a, err := NewTransactionID()
	require.NoError(t, err)
	b, err := NewTransactionID()
	require.NoError(t, err)
	// Not a strict guarantee, but collision across two reads is astronomically
	// unlikely and would indicate a broken random source.
	require.NotEqual(t, a, b)
}
