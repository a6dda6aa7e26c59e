package holepunch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/postalsys/gday/internal/metrics"
	"github.com/postalsys/gday/internal/netutil"
	"github.com/postalsys/gday/internal/protocol"
)

// HolePunchTimeout bounds the whole punching attempt: past this, every
// outstanding listen/dial goroutine is cancelled and TryConnectToPeer
// gives up.
const HolePunchTimeout = 20 * time.Second

// PeerConnection is a successfully punched, PAKE-verified connection
// to the room's other occupant, along with the session key derived
// during verification (used to seed the chunked AEAD stream).
type PeerConnection struct {
	Conn      net.Conn
	SessionKey [32]byte
}

// ErrNoAddressesToTry is returned when the local Contact lists no local
// endpoints, leaving nothing to listen or dial from — a malformed
// Contact, not a network failure.
var ErrNoAddressesToTry = errors.New("holepunch: no local or peer addresses to attempt")

// TryConnectToPeer races simultaneous listen/connect attempts across
// every local/peer endpoint combination, the same way two ends of a
// NAT-punched TCP connection are only reachable through whichever
// local port each side happens to share, and returns as soon as one
// attempt completes a full PAKE handshake and mutual verification.
// Grounded on
// original_source/gday_hole_punch/src/hole_puncher.rs's
// try_connect_to_peer/try_connect/try_accept.
// m may be nil, in which case no metrics are recorded.
func TryConnectToPeer(ctx context.Context, local protocol.Contact, peer protocol.FullContact, sharedSecret uint64, m *metrics.Metrics) (*PeerConnection, error) {
	ctx, cancel := context.WithTimeout(ctx, HolePunchTimeout)
	defer cancel()

	start := time.Now()

	var attempts []func(context.Context) (*PeerConnection, error)

	for _, localAddr := range local.Local {
		localAddr := localAddr
		attempts = append(attempts, func(ctx context.Context) (*PeerConnection, error) {
			recordAttempt(m, "accept")
			return tryAccept(ctx, localAddr, sharedSecret)
		})
		for _, peerAddr := range append(append([]protocol.Endpoint{}, peer.Peer.Local...), peer.Peer.Public) {
			localAddr, peerAddr := localAddr, peerAddr
			attempts = append(attempts, func(ctx context.Context) (*PeerConnection, error) {
				recordAttempt(m, "connect")
				return tryConnect(ctx, localAddr, peerAddr, sharedSecret)
			})
		}
	}

	if len(attempts) == 0 {
		return nil, ErrNoAddressesToTry
	}

	pc, err := selectFirstSuccess(ctx, attempts)
	if m != nil {
		if err == nil {
			m.PunchOutcomes.WithLabelValues("success").Inc()
			m.PunchLatency.Observe(time.Since(start).Seconds())
		} else {
			m.PunchOutcomes.WithLabelValues("failure").Inc()
		}
	}
	return pc, err
}

func recordAttempt(m *metrics.Metrics, kind string) {
	if m != nil {
		m.PunchAttempts.WithLabelValues(kind).Inc()
	}
}

// selectFirstSuccess runs every attempt concurrently and returns the
// first to succeed, cancelling the rest. Grounded on the fan-out /
// first-done-wins goroutine orchestration style used across the
// corpus for racing concurrent network operations.
func selectFirstSuccess(ctx context.Context, attempts []func(context.Context) (*PeerConnection, error)) (*PeerConnection, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		conn *PeerConnection
		err  error
	}
	results := make(chan result, len(attempts))

	var wg sync.WaitGroup
	for _, attempt := range attempts {
		wg.Add(1)
		go func(attempt func(context.Context) (*PeerConnection, error)) {
			defer wg.Done()
			conn, err := attempt(ctx)
			results <- result{conn, err}
		}(attempt)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for r := range results {
		if r.err == nil {
			cancel()
			return r.conn, nil
		}
		lastErr = r.err
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, fmt.Errorf("holepunch: all attempts failed: %w", lastErr)
}

func tryAccept(ctx context.Context, local protocol.Endpoint, sharedSecret uint64) (*PeerConnection, error) {
	ln, err := netutil.Listen(ctx, local.String())
	if err != nil {
		return nil, fmt.Errorf("holepunch: listen on %s: %w", local, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return nil, fmt.Errorf("holepunch: accept on %s: %w", local, err)
		}
		pc, err := handshakeAndVerify(conn, sharedSecret)
		if err != nil {
			conn.Close()
			continue
		}
		return pc, nil
	}
}

// tryConnect retries indefinitely on dial failure (refused/reset,
// while the peer's NAT hasn't yet opened a pinhole) and on verification
// failure alike, stopping only on success or ctx's deadline/
// cancellation — spec.md §4.6/§5's "retried until the overall deadline
// elapses".
func tryConnect(ctx context.Context, local, peer protocol.Endpoint, sharedSecret uint64) (*PeerConnection, error) {
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		conn, err := netutil.Dial(ctx, local.String(), peer.String())
		if err != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(dialRetryInterval):
			}
			continue
		}
		pc, err := handshakeAndVerify(conn, sharedSecret)
		if err != nil {
			conn.Close()
			continue
		}
		return pc, nil
	}
}

// dialRetryInterval spaces out repeated connect attempts against a
// peer whose NAT hasn't opened a pinhole yet, so a tight loop of
// refused connections doesn't spin the CPU.
const dialRetryInterval = 100 * time.Millisecond

func handshakeAndVerify(conn net.Conn, sharedSecret uint64) (*PeerConnection, error) {
	if err := netutil.SetKeepalive(conn); err != nil {
		return nil, fmt.Errorf("holepunch: set keepalive: %w", err)
	}

	session, err := NewPAKESession()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(session.HandshakeMessage()); err != nil {
		return nil, fmt.Errorf("holepunch: send handshake: %w", err)
	}
	peerPub, err := ReadHandshakeMessage(conn)
	if err != nil {
		return nil, err
	}
	if err := session.Complete(peerPub, sharedSecret); err != nil {
		return nil, err
	}

	sessionKey := session.SessionKey()
	if err := verifyPeer(conn, sessionKey); err != nil {
		return nil, err
	}

	return &PeerConnection{Conn: conn, SessionKey: sessionKey}, nil
}
