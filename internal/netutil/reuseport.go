// Package netutil provides the small platform-dependent socket tuning
// the hole-punch protocol relies on: binding the same local port for
// both a listening and a dialing socket, and keepalive tuning so a
// pending punch attempt doesn't get silently dropped by a NAT.
package netutil

import (
	"context"
	"net"
	"time"
)

// listenConfig is used by Listen; Dial sets the same Control func on its
// net.Dialer, so both a server and a client leg bind to the same local
// port with SO_REUSEADDR/SO_REUSEPORT set.
var listenConfig = net.ListenConfig{Control: listenConfigControl}

// Listen opens a TCP listener on localAddr with port reuse enabled.
func Listen(ctx context.Context, localAddr string) (net.Listener, error) {
	network := "tcp4"
	if isIPv6Addr(localAddr) {
		network = "tcp6"
	}
	return listenConfig.Listen(ctx, network, localAddr)
}

// Dial connects from localAddr to peerAddr with port reuse enabled on
// the local side, so it can share a port with a concurrent Listen on
// the same address. An empty localAddr dials without pinning a local
// port (but still with SO_REUSEADDR/SO_REUSEPORT set, so the kernel
// picks an ephemeral port that is itself reusable).
func Dial(ctx context.Context, localAddr, peerAddr string) (net.Conn, error) {
	network := "tcp"
	var local *net.TCPAddr
	if localAddr != "" {
		if isIPv6Addr(localAddr) {
			network = "tcp6"
		} else {
			network = "tcp4"
		}
		local = mustResolveTCPAddr(network, localAddr)
	}
	dialer := net.Dialer{
		Control:   listenConfigControl,
		LocalAddr: local,
	}
	return dialer.DialContext(ctx, network, peerAddr)
}

func mustResolveTCPAddr(network, addr string) *net.TCPAddr {
	tcpAddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return nil
	}
	return tcpAddr
}

func isIPv6Addr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() == nil
}

// SetKeepalive tunes conn's TCP keepalive to the aggressive interval
// the hole-punch protocol needs to keep a punched connection alive
// through a NAT's idle-connection timeout: 10s before the first probe,
// 1s between probes, 10 probes before giving up. Grounded on
// original_source/gday_hole_punch/src/hole_puncher.rs's
// get_local_socket TcpKeepalive settings.
func SetKeepalive(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tc.SetKeepAliveConfig(net.KeepAliveConfig{
		Enable:   true,
		Idle:     10 * time.Second,
		Interval: 1 * time.Second,
		Count:    10,
	})
}
