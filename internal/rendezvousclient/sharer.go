package rendezvousclient

import (
	"context"
	"fmt"
	"net"

	"github.com/postalsys/gday/internal/protocol"
)

// ContactSharer drives the client side of the rendezvous protocol over
// an already-connected net.Conn (see ConnectToServer). Grounded on
// original_source/gday_hole_punch/src/contact_sharer.rs's
// ContactSharer::create_room/join_room/share_contact/get_peer_contact,
// adapted to the framed JSON codec in internal/protocol.
type ContactSharer struct {
	conn      net.Conn
	roomCode  uint64
	isCreator bool
}

// NewContactSharer wraps conn for the rendezvous client calls below.
func NewContactSharer(conn net.Conn) *ContactSharer {
	return &ContactSharer{conn: conn}
}

// CreateRoom implements spec.md's CreateRoom client call: it asks the
// server to create a fresh room for roomCode and waits for
// confirmation. Only the creator side of a rendezvous calls this; a
// room code already in use fails with ErrRoomCodeTaken.
func (c *ContactSharer) CreateRoom(ctx context.Context, roomCode uint64) error {
	if err := protocol.WriteMessageContext(ctx, c.conn, protocol.NewCreateRoom(roomCode)); err != nil {
		return err
	}
	reply, err := protocol.ReadServerMsgContext(ctx, c.conn)
	if err != nil {
		return err
	}
	if err := expect(reply, protocol.KindRoomCreated); err != nil {
		return err
	}
	c.roomCode = roomCode
	c.isCreator = true
	return nil
}

// JoinRoom records which room this sharer is entering as the joiner.
// Unlike CreateRoom it sends nothing: the joiner's room slot is
// created implicitly, server-side, by its first RecordPublicAddr call.
func (c *ContactSharer) JoinRoom(roomCode uint64) {
	c.roomCode = roomCode
	c.isCreator = false
}

// RecordPublicAddr asks the server to record (and report back) the
// public endpoint this connection was observed arriving from.
func (c *ContactSharer) RecordPublicAddr(ctx context.Context) (protocol.Endpoint, error) {
	if err := protocol.WriteMessageContext(ctx, c.conn, protocol.NewRecordPublicAddr(c.roomCode, c.isCreator)); err != nil {
		return protocol.Endpoint{}, err
	}
	reply, err := protocol.ReadServerMsgContext(ctx, c.conn)
	if err != nil {
		return protocol.Endpoint{}, err
	}
	if err := expect(reply, protocol.KindReceivedAddr); err != nil {
		return protocol.Endpoint{}, err
	}
	return reply.ReceivedAddr.Public, nil
}

// ShareContact sends this side's local candidate endpoints to the
// server, to be relayed to the room's other occupant.
func (c *ContactSharer) ShareContact(ctx context.Context, local []protocol.Endpoint) error {
	if err := protocol.WriteMessageContext(ctx, c.conn, protocol.NewShareContact(c.roomCode, c.isCreator, local)); err != nil {
		return err
	}
	reply, err := protocol.ReadServerMsgContext(ctx, c.conn)
	if err != nil {
		return err
	}
	return expect(reply, protocol.KindClientContact)
}

// AwaitPeerContact blocks, respecting ctx, until the server delivers
// the room's other occupant's full contact information.
func (c *ContactSharer) AwaitPeerContact(ctx context.Context) (protocol.FullContact, error) {
	reply, err := protocol.ReadServerMsgContext(ctx, c.conn)
	if err != nil {
		return protocol.FullContact{}, err
	}
	if err := expect(reply, protocol.KindPeerContact); err != nil {
		return protocol.FullContact{}, err
	}
	return reply.PeerContact.Contact, nil
}

func expect(msg *protocol.ServerMsg, kind string) error {
	if msg.Kind == protocol.KindError && msg.ErrorReply != nil {
		return protocol.ErrFromReply(*msg.ErrorReply)
	}
	if msg.Kind != kind {
		return fmt.Errorf("rendezvousclient: expected %s, got %s", kind, msg.Kind)
	}
	return nil
}

// LocalEndpoints enumerates this host's non-loopback interface
// addresses as candidate Endpoints for hole punching, paired with
// port. Grounded on contact_sharer.rs's local-address enumeration used
// to populate Contact.local before it's shared.
func LocalEndpoints(port uint16) ([]protocol.Endpoint, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("rendezvousclient: enumerate interfaces: %w", err)
	}

	var eps []protocol.Endpoint
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
			continue
		}
		eps = append(eps, protocol.Endpoint{IP: ipNet.IP, Port: port})
	}
	return eps, nil
}
