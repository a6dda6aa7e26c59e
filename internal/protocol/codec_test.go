package protocol

import (
	"bytes"
	"net"
	"testing"
)

func TestWriteReadClientMsg_RoundTrip(t *testing.T) {
	cases := []*ClientMsg{
		NewCreateRoom(314),
		NewRecordPublicAddr(314, false),
		NewShareContact(314, false, []Endpoint{{IP: net.ParseIP("10.0.0.5"), Port: 4455}}),
	}

	for _, want := range cases {
		t.Run(want.Kind, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteMessage(&buf, want); err != nil {
				t.Fatalf("WriteMessage: %v", err)
			}
			got, err := ReadClientMsg(&buf)
			if err != nil {
				t.Fatalf("ReadClientMsg: %v", err)
			}
			if got.Kind != want.Kind {
				t.Errorf("Kind = %q, want %q", got.Kind, want.Kind)
			}
		})
	}
}

func TestWriteReadServerMsg_RoundTrip(t *testing.T) {
	fc := FullContact{
		Local: Contact{Public: Endpoint{IP: net.ParseIP("203.0.113.4"), Port: 9001}},
		Peer:  Contact{Public: Endpoint{IP: net.ParseIP("203.0.113.9"), Port: 9002}},
	}
	cases := []*ServerMsg{
		NewRoomCreated(314),
		NewReceivedAddr(Endpoint{IP: net.ParseIP("198.51.100.1"), Port: 1234}),
		NewClientContact(),
		NewPeerContact(fc),
		NewErrorReply(ErrRoomCodeTaken),
	}

	for _, want := range cases {
		t.Run(want.Kind, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteMessage(&buf, want); err != nil {
				t.Fatalf("WriteMessage: %v", err)
			}
			got, err := ReadServerMsg(&buf)
			if err != nil {
				t.Fatalf("ReadServerMsg: %v", err)
			}
			if got.Kind != want.Kind {
				t.Errorf("Kind = %q, want %q", got.Kind, want.Kind)
			}
		})
	}
}

func TestReadHeader_RejectsBadVersion(t *testing.T) {
	buf := []byte{0xFF, 0, 0, 0, 2, '{', '}'}
	_, err := ReadClientMsg(bytes.NewReader(buf))
	if err != ErrBadVersion {
		t.Fatalf("err = %v, want ErrBadVersion", err)
	}
}

func TestReadHeader_RejectsOversizeLength(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[0] = ProtocolVersion
	buf[1], buf[2], buf[3], buf[4] = 0xFF, 0xFF, 0xFF, 0xFF
	_, err := ReadClientMsg(bytes.NewReader(buf))
	if err != ErrMessageTooLarge {
		t.Fatalf("err = %v, want ErrMessageTooLarge", err)
	}
}

func TestErrorReplyRoundTrip(t *testing.T) {
	for _, want := range []error{ErrRoomCodeTaken, ErrRoomNotFound, ErrAlreadyShared, ErrPeerTimedOut, ErrRateLimited} {
		reply := ErrorReplyFor(want)
		got := ErrFromReply(reply)
		if got != want {
			t.Errorf("ErrFromReply(ErrorReplyFor(%v)) = %v", want, got)
		}
	}
}
