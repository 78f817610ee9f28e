//go:build linux

package frontend

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenReusePortUDP and listenReusePortTCP set SO_REUSEPORT on the
// listening socket so an operator can run multiple corvid processes bound
// to the same address — e.g. for a zero-downtime restart, where the
// replacement process binds before the old one stops — without either
// process sharding work within itself the way a multi-socket-per-core
// design would. Each frontend here still owns exactly one socket.
//
// SO_REUSEPORT is Linux-specific; other platforms fall back to a plain
// listener (see reuseport_other.go).
func listenReusePortUDP(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp", udpAddr.String())
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

func listenReusePortTCP(addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}
	return lc.Listen(context.Background(), "tcp", addr)
}
