package main

import (
	"context"
	"fmt"

	"github.com/postalsys/gday/internal/aeadstream"
	"github.com/postalsys/gday/internal/holepunch"
	"github.com/postalsys/gday/internal/metrics"
	"github.com/postalsys/gday/internal/protocol"
	"github.com/postalsys/gday/internal/rendezvousclient"
	"github.com/postalsys/gday/internal/transport"
)

// runRendezvousAndPunch drives the full core pipeline described in
// SPEC_FULL.md §2's control-flow diagram: connect to the rendezvous
// server, create/join the room, exchange contact information, then
// race hole-punch attempts until one side reaches a PAKE-verified
// connection.
func runRendezvousAndPunch(ctx context.Context, server string, listenPort uint16, roomCode, sharedSecret uint64, isCreator, insecureTLS bool) (*holepunch.PeerConnection, protocol.FullContact, error) {
	conn, err := rendezvousclient.ConnectToServer(ctx, server, transport.ClientTLSConfig(!insecureTLS), true)
	if err != nil {
		return nil, protocol.FullContact{}, err
	}
	defer conn.Close()

	sharer := rendezvousclient.NewContactSharer(conn)
	if isCreator {
		if err := sharer.CreateRoom(ctx, roomCode); err != nil {
			return nil, protocol.FullContact{}, err
		}
	} else {
		sharer.JoinRoom(roomCode)
	}
	public, err := sharer.RecordPublicAddr(ctx)
	if err != nil {
		return nil, protocol.FullContact{}, err
	}
	local, err := rendezvousclient.LocalEndpoints(listenPort)
	if err != nil {
		return nil, protocol.FullContact{}, err
	}
	if err := sharer.ShareContact(ctx, local); err != nil {
		return nil, protocol.FullContact{}, err
	}
	fc, err := sharer.AwaitPeerContact(ctx)
	if err != nil {
		return nil, protocol.FullContact{}, err
	}

	mine := protocol.Contact{Local: local, Public: public}
	pc, err := holepunch.TryConnectToPeer(ctx, mine, fc, sharedSecret, metrics.Default())
	if err != nil {
		return nil, protocol.FullContact{}, err
	}
	return pc, fc, nil
}

// openSecureStream negotiates the chunked-AEAD base nonce over the
// PAKE-verified connection and wraps it as a ConnStream, the opaque
// secure byte stream SPEC_FULL.md §6 hands off to the file-transfer
// layer (out of scope here, represented by exchangeGreeting).
func openSecureStream(pc *holepunch.PeerConnection) (*aeadstream.ConnStream, error) {
	baseNonce, err := holepunch.NegotiateNonce(pc.Conn)
	if err != nil {
		return nil, err
	}
	stream, err := aeadstream.NewConn(pc.Conn, pc.SessionKey, baseNonce)
	if err != nil {
		return nil, fmt.Errorf("gday: open secure stream: %w", err)
	}
	return stream, nil
}
