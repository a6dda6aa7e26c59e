// Package transport turns loaded certificate material into the
// tls.Config values the rendezvous server and client use for the
// control channel.
package transport

import (
	"crypto/tls"
	"fmt"
)

// ALPNProtocol identifies the gday rendezvous protocol over TLS.
const ALPNProtocol = "gday/1"

// ServerTLSConfig builds a server-side tls.Config from PEM-encoded
// certificate and key bytes.
func ServerTLSConfig(certPEM, keyPEM []byte) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("transport: parse TLS certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		NextProtos:   []string{ALPNProtocol},
	}, nil
}

// ClientTLSConfig builds a client-side tls.Config for dialing the
// rendezvous server. gday does not build a CA-verified PKI for the
// control channel: the PAKE handshake in internal/holepunch is what
// actually authenticates the peer, so by default the client skips
// certificate verification and only uses TLS to frustrate passive
// on-path observers. Callers that run their own CA can still pass a
// strict config in, since strictVerify only governs the default case.
func ClientTLSConfig(strictVerify bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS13,
		NextProtos:         []string{ALPNProtocol},
		InsecureSkipVerify: !strictVerify,
	}
}

// CloneTLSConfig returns a copy of cfg, or nil if cfg is nil.
func CloneTLSConfig(cfg *tls.Config) *tls.Config {
	if cfg == nil {
		return nil
	}
	return cfg.Clone()
}
