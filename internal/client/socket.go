package client

import (
	"fmt"
	"net"
)

// openListener binds a socket that has joined group:port for receiving.
// Mirrors internal/host's sender-side socket setup (§4.7) on the
// receiving end: the client only ever listens, so it needs none of the
// TTL/loopback controls a broadcaster's send socket requires.
func openListener(group string, port int, iface string) (*net.UDPConn, error) {
	var ifi *net.Interface
	if iface != "" {
		var err error
		ifi, err = net.InterfaceByName(iface)
		if err != nil {
			return nil, fmt.Errorf("client: resolve interface %q: %w", iface, err)
		}
	}
	ip := net.ParseIP(group)
	if ip == nil {
		return nil, fmt.Errorf("client: invalid multicast group %q", group)
	}
	conn, err := net.ListenMulticastUDP("udp4", ifi, &net.UDPAddr{IP: ip, Port: port})
	if err != nil {
		return nil, fmt.Errorf("client: join %s:%d: %w", group, port, err)
	}
	return conn, nil
}
