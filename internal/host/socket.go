package host

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// resolveInterface looks up a net.Interface by name. An empty name means
// "let the OS pick the default multicast-capable interface" (nil).
func resolveInterface(name string) (*net.Interface, error) {
	if name == "" {
		return nil, nil
	}
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("host: resolve interface %q: %w", name, err)
	}
	return ifi, nil
}

// openSender returns a UDP socket for sending to a multicast group with
// TTL=1 (LAN-only, §4.7) and multicast loopback disabled so a host never
// processes its own broadcasts as if they came from a peer.
func openSender(group string, port int, iface string) (*net.UDPConn, error) {
	ifi, err := resolveInterface(iface)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("host: open sender socket: %w", err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(1); err != nil {
		conn.Close()
		return nil, fmt.Errorf("host: set multicast ttl: %w", err)
	}
	if err := pc.SetMulticastLoopback(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("host: disable multicast loopback: %w", err)
	}
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			conn.Close()
			return nil, fmt.Errorf("host: set multicast interface: %w", err)
		}
	}

	ip := net.ParseIP(group)
	if ip == nil {
		conn.Close()
		return nil, fmt.Errorf("host: invalid multicast group %q", group)
	}
	if err := conn.Connect(&net.UDPAddr{IP: ip, Port: port}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("host: connect sender to %s:%d: %w", group, port, err)
	}

	return conn, nil
}

// openListener binds a socket that has joined group:port for receiving,
// used both for the data/heartbeat/identity/focus consumers and for
// observing a peer host's heartbeats on its own group.
func openListener(group string, port int, iface string) (*net.UDPConn, error) {
	ifi, err := resolveInterface(iface)
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(group)
	if ip == nil {
		return nil, fmt.Errorf("host: invalid multicast group %q", group)
	}
	conn, err := net.ListenMulticastUDP("udp4", ifi, &net.UDPAddr{IP: ip, Port: port})
	if err != nil {
		return nil, fmt.Errorf("host: join %s:%d: %w", group, port, err)
	}
	return conn, nil
}
