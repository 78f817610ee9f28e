package frontend

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/corvid/internal/dns"
	"github.com/jroosing/corvid/internal/resolver"
)

func TestUDPFrontendAnswersQuery(t *testing.T) {
	queryBytes := buildTestQuery(t, "example.com", dns.TypeA)
	res := &mockResolver{response: resolver.Result{ResponseBytes: queryBytes, Source: "mock"}}

	fe := &UDPFrontend{Handler: &Handler{Resolver: res, Timeout: time.Second}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	addr := ln.LocalAddr().String()
	ln.Close()

	runDone := make(chan struct{})
	go func() {
		_ = fe.Run(ctx, addr)
		close(runDone)
	}()

	// Wait for the socket to come up.
	require.Eventually(t, func() bool {
		conn, err := net.Dial("udp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return fe.conn != nil
	}, time.Second, 5*time.Millisecond)

	conn, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(queryBytes)
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, queryBytes, buf[:n])
	assert.Equal(t, 1, res.callCount)

	cancel()
	<-runDone
}

func TestTruncateUDPResponseSetsTCBitAndKeepsQuestion(t *testing.T) {
	p := dns.Packet{
		Header:    dns.Header{ID: 1, Flags: dns.QRFlag, QDCount: 1, ANCount: 1},
		Questions: []dns.Question{{Name: dns.NewName("example.com"), Type: dns.TypeA, Class: dns.ClassIN}},
		Answers:   []dns.Record{dns.NewIPRecord(dns.RRHeader{Name: dns.NewName("example.com"), Class: dns.ClassIN, TTL: 300}, net.ParseIP("1.2.3.4"))},
	}
	full, err := p.Marshal()
	require.NoError(t, err)

	truncated := truncateResponse(full, 10)
	require.Less(t, len(truncated), len(full))
	assert.True(t, dns.IsTruncated(truncated))

	resp, err := dns.ParsePacket(truncated)
	require.NoError(t, err)
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, dns.NewName("example.com"), resp.Questions[0].Name)
	assert.Empty(t, resp.Answers)
}

func TestTruncateUDPResponseLeavesSmallResponsesAlone(t *testing.T) {
	small := []byte{0, 1, 0x81, 0x80, 0, 1, 0, 0, 0, 0, 0, 0}
	assert.Equal(t, small, truncateResponse(small, 512))
}
