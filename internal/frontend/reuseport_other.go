//go:build !linux

package frontend

import "net"

// listenReusePortUDP and listenReusePortTCP fall back to plain listeners on
// non-Linux platforms, where SO_REUSEPORT either doesn't exist or has
// different semantics (see reuseport_linux.go).
func listenReusePortUDP(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", udpAddr)
}

func listenReusePortTCP(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
