package rendezvous

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/postalsys/gday/internal/protocol"
)

func remoteAddr(ip string, port int) net.Addr {
	return &net.TCPAddr{IP: net.ParseIP(ip), Port: port}
}

func TestCreateRoom_RejectsDuplicateCode(t *testing.T) {
	s := NewState(0, time.Minute)

	h, err := s.CreateRoom(314)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if !h.IsCreator {
		t.Error("creator handle should have IsCreator = true")
	}

	if _, err := s.CreateRoom(314); err != protocol.ErrRoomCodeTaken {
		t.Fatalf("duplicate create err = %v, want ErrRoomCodeTaken", err)
	}
}

func TestRecordPublicAddr_JoinerEntersImplicitly(t *testing.T) {
	s := NewState(0, time.Minute)

	if _, err := s.CreateRoom(1); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	// The joiner never calls CreateRoom: its first call is
	// RecordPublicAddr with isCreator=false, which must create its slot
	// lazily.
	_, h, err := s.RecordPublicAddr(1, false, remoteAddr("203.0.113.2", 2222))
	if err != nil {
		t.Fatalf("joiner RecordPublicAddr: %v", err)
	}
	if h.IsCreator {
		t.Error("joiner handle should have IsCreator = false")
	}
}

func TestRecordPublicAddr_UnknownRoomCodeFails(t *testing.T) {
	s := NewState(0, time.Minute)

	if _, _, err := s.RecordPublicAddr(999, false, remoteAddr("203.0.113.2", 2222)); err != protocol.ErrRoomNotFound {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestShareContact_DeliversFullContactToBothSides(t *testing.T) {
	s := NewState(0, time.Minute)

	h1, _ := s.CreateRoom(1)
	_, h2, err := s.RecordPublicAddr(1, false, remoteAddr("203.0.113.2", 2222))
	if err != nil {
		t.Fatalf("RecordPublicAddr(joiner): %v", err)
	}
	if _, _, err := s.RecordPublicAddr(1, true, remoteAddr("203.0.113.1", 1111)); err != nil {
		t.Fatalf("RecordPublicAddr(creator): %v", err)
	}

	local1 := []protocol.Endpoint{{IP: net.ParseIP("10.0.0.1"), Port: 4000}}
	local2 := []protocol.Endpoint{{IP: net.ParseIP("10.0.0.2"), Port: 5000}}

	if err := s.ShareContact(h1, local1); err != nil {
		t.Fatalf("ShareContact(h1): %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// h1 hasn't received its peer's contact yet — the other occupant
	// hasn't shared.
	var fc1 protocol.FullContact
	var err1 error
	done := make(chan struct{})
	go func() {
		fc1, err1 = s.AwaitPeerContact(ctx, h1)
		close(done)
	}()

	if err := s.ShareContact(h2, local2); err != nil {
		t.Fatalf("ShareContact(h2): %v", err)
	}

	<-done

	if err1 != nil {
		t.Fatalf("AwaitPeerContact(h1): %v", err1)
	}
	if fc1.Peer.Public.Port != 2222 {
		t.Errorf("h1's peer public port = %d, want 2222", fc1.Peer.Public.Port)
	}

	fc2, err := s.AwaitPeerContact(context.Background(), h2)
	if err != nil {
		t.Fatalf("AwaitPeerContact(h2): %v", err)
	}
	if fc2.Peer.Public.Port != 1111 {
		t.Errorf("h2's peer public port = %d, want 1111", fc2.Peer.Public.Port)
	}

	// A completed room is removed rather than left to linger.
	if s.RoomCount() != 0 {
		t.Fatalf("RoomCount after completion = %d, want 0", s.RoomCount())
	}
}

func TestShareContact_RejectsDoubleShare(t *testing.T) {
	s := NewState(0, time.Minute)
	h1, _ := s.CreateRoom(7)

	if err := s.ShareContact(h1, nil); err != nil {
		t.Fatalf("first share: %v", err)
	}
	if err := s.ShareContact(h1, nil); err != protocol.ErrAlreadyShared {
		t.Fatalf("second share err = %v, want ErrAlreadyShared", err)
	}
}

func TestRoomIsolation_DifferentCodesDontCrossTalk(t *testing.T) {
	s := NewState(0, time.Minute)

	hA, _ := s.CreateRoom(100)
	hB, _ := s.CreateRoom(200)

	if hA.RoomCode == hB.RoomCode {
		t.Fatal("expected distinct room codes to produce distinct rooms")
	}

	// Only one occupant in each room; AwaitPeerContact should time out,
	// not be satisfied by the other room's occupant.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := s.AwaitPeerContact(ctx, hA); err != context.DeadlineExceeded {
		t.Fatalf("AwaitPeerContact(hA) err = %v, want DeadlineExceeded", err)
	}
}

func TestAllow_RateLimitsPerIP(t *testing.T) {
	s := NewState(2, time.Minute)

	if !s.Allow("1.2.3.4") {
		t.Fatal("1st request should be allowed")
	}
	if !s.Allow("1.2.3.4") {
		t.Fatal("2nd request should be allowed")
	}
	if s.Allow("1.2.3.4") {
		t.Fatal("3rd request should be rate limited")
	}
	// A different source IP has its own independent bucket.
	if !s.Allow("5.6.7.8") {
		t.Fatal("different source IP should not share the bucket")
	}
}

func TestExpireRoom_DiscardsIncompleteRoomAfterTimeout(t *testing.T) {
	s := NewState(0, 30*time.Millisecond)

	s.CreateRoom(9)
	if s.RoomCount() != 1 {
		t.Fatalf("RoomCount = %d, want 1", s.RoomCount())
	}

	time.Sleep(100 * time.Millisecond)

	if s.RoomCount() != 0 {
		t.Fatalf("RoomCount after expiry = %d, want 0", s.RoomCount())
	}
}

// TestExpireRoom_ReleasesBlockedWaiter guards the bug the room-timeout
// path used to have: a room with only one occupant would be silently
// dropped from the map on expiry, leaving that occupant's
// AwaitPeerContact call blocked forever, since its ctx is the
// connection's lifetime, not the room's.
func TestExpireRoom_ReleasesBlockedWaiter(t *testing.T) {
	s := NewState(0, 30*time.Millisecond)

	h, err := s.CreateRoom(9)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		_, err := s.AwaitPeerContact(ctx, h)
		result <- err
	}()

	select {
	case err := <-result:
		if err != protocol.ErrPeerTimedOut {
			t.Fatalf("AwaitPeerContact err = %v, want ErrPeerTimedOut", err)
		}
	case <-time.After(time.Second):
		t.Fatal("AwaitPeerContact did not return after room expiry; waiter is stuck")
	}

	if s.RoomCount() != 0 {
		t.Fatalf("RoomCount after expiry = %d, want 0", s.RoomCount())
	}
}

func TestExpireRoom_DoesNotDiscardCompletedRoom(t *testing.T) {
	s := NewState(0, 30*time.Millisecond)

	h1, _ := s.CreateRoom(9)
	_, h2, err := s.RecordPublicAddr(9, false, remoteAddr("203.0.113.2", 2222))
	if err != nil {
		t.Fatalf("RecordPublicAddr(joiner): %v", err)
	}

	if err := s.ShareContact(h1, nil); err != nil {
		t.Fatalf("ShareContact(h1): %v", err)
	}
	if err := s.ShareContact(h2, nil); err != nil {
		t.Fatalf("ShareContact(h2): %v", err)
	}

	// ShareContact already removed the completed room from the map;
	// the timer firing afterward must be a no-op, not a double-delete
	// or a close on an already-drained channel.
	time.Sleep(100 * time.Millisecond)

	if s.RoomCount() != 0 {
		t.Fatalf("RoomCount after timeout = %d, want 0 (room already completed and removed)", s.RoomCount())
	}

	fc, err := s.AwaitPeerContact(context.Background(), h1)
	if err != nil {
		t.Fatalf("AwaitPeerContact(h1) after completion: %v", err)
	}
	if fc.Peer.Public.Port != 2222 {
		t.Errorf("h1's peer public port = %d, want 2222", fc.Peer.Public.Port)
	}
}
