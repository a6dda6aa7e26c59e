package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// HeaderSize is the size of the framing header: one version byte plus
// a four-byte big-endian payload length.
const HeaderSize = 1 + 4

// WriteMessage frames v (a *ClientMsg or *ServerMsg) as
// [version][length][json payload] and writes it to w in a single call.
func WriteMessage(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("protocol: encode payload: %w", err)
	}
	if len(payload) > MaxMessageSize {
		return ErrMessageTooLarge
	}

	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = ProtocolVersion
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write frame: %w", err)
	}
	return nil
}

// readHeader reads and validates the fixed-size framing header,
// returning the declared payload length.
func readHeader(r io.Reader) (uint32, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, fmt.Errorf("protocol: read header: %w", err)
	}
	if hdr[0] != ProtocolVersion {
		return 0, ErrBadVersion
	}
	length := binary.BigEndian.Uint32(hdr[1:5])
	if length > MaxMessageSize {
		return 0, ErrMessageTooLarge
	}
	return length, nil
}

// ReadClientMsg reads one framed ClientMsg from r.
func ReadClientMsg(r io.Reader) (*ClientMsg, error) {
	payload, err := readPayload(r)
	if err != nil {
		return nil, err
	}
	var m ClientMsg
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &m, nil
}

// ReadServerMsg reads one framed ServerMsg from r.
func ReadServerMsg(r io.Reader) (*ServerMsg, error) {
	payload, err := readPayload(r)
	if err != nil {
		return nil, err
	}
	var m ServerMsg
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &m, nil
}

func readPayload(r io.Reader) ([]byte, error) {
	length, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("protocol: read payload: %w", err)
	}
	return payload, nil
}

// Kind string constants used to discriminate the ClientMsg/ServerMsg
// sum types on the wire.
const (
	KindCreateRoom       = "create_room"
	KindRecordPublicAddr = "record_public_addr"
	KindShareContact     = "share_contact"

	KindRoomCreated   = "room_created"
	KindReceivedAddr  = "received_addr"
	KindClientContact = "client_contact"
	KindPeerContact   = "peer_contact"
	KindError         = "error"
)

// NewCreateRoom builds a ClientMsg wrapping CreateRoom. Only the
// creator of a room ever sends this, so IsCreator is always true.
func NewCreateRoom(roomCode uint64) *ClientMsg {
	return &ClientMsg{Kind: KindCreateRoom, CreateRoom: &CreateRoom{RoomCode: roomCode, IsCreator: true}}
}

// NewRecordPublicAddr builds a ClientMsg wrapping RecordPublicAddr,
// tagged with which room and which side of it this connection is.
func NewRecordPublicAddr(roomCode uint64, isCreator bool) *ClientMsg {
	return &ClientMsg{Kind: KindRecordPublicAddr, RecordPublicAddr: &RecordPublicAddr{RoomCode: roomCode, IsCreator: isCreator}}
}

// NewShareContact builds a ClientMsg wrapping ShareContact, tagged with
// which room and which side of it this connection is.
func NewShareContact(roomCode uint64, isCreator bool, local []Endpoint) *ClientMsg {
	return &ClientMsg{Kind: KindShareContact, ShareContact: &ShareContact{RoomCode: roomCode, IsCreator: isCreator, Local: local}}
}

// NewRoomCreated builds a ServerMsg wrapping RoomCreated.
func NewRoomCreated(roomCode uint64) *ServerMsg {
	return &ServerMsg{Kind: KindRoomCreated, RoomCreated: &RoomCreated{RoomCode: roomCode}}
}

// NewReceivedAddr builds a ServerMsg wrapping ReceivedAddr.
func NewReceivedAddr(public Endpoint) *ServerMsg {
	return &ServerMsg{Kind: KindReceivedAddr, ReceivedAddr: &ReceivedAddr{Public: public}}
}

// NewClientContact builds a ServerMsg wrapping ClientContact.
func NewClientContact() *ServerMsg {
	return &ServerMsg{Kind: KindClientContact, ClientContact: &ClientContact{}}
}

// NewPeerContact builds a ServerMsg wrapping PeerContact.
func NewPeerContact(fc FullContact) *ServerMsg {
	return &ServerMsg{Kind: KindPeerContact, PeerContact: &PeerContact{Contact: fc}}
}

// NewErrorReply builds a ServerMsg wrapping an ErrorReply for err.
func NewErrorReply(err error) *ServerMsg {
	reply := ErrorReplyFor(err)
	return &ServerMsg{Kind: KindError, ErrorReply: &reply}
}
