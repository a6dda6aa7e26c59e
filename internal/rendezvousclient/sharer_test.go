package rendezvousclient_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/postalsys/gday/internal/protocol"
	"github.com/postalsys/gday/internal/rendezvous"
	"github.com/postalsys/gday/internal/rendezvousclient"
)

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	state := rendezvous.NewState(0, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go rendezvous.HandleConnection(ctx, conn, state, logger)
		}
	}()

	return ln.Addr().String(), func() {
		cancel()
		ln.Close()
	}
}

func TestEndToEnd_BothPeersLearnEachOther(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA, err := rendezvousclient.ConnectToServer(ctx, addr, nil, false)
	if err != nil {
		t.Fatalf("ConnectToServer(A): %v", err)
	}
	defer connA.Close()
	connB, err := rendezvousclient.ConnectToServer(ctx, addr, nil, false)
	if err != nil {
		t.Fatalf("ConnectToServer(B): %v", err)
	}
	defer connB.Close()

	sharerA := rendezvousclient.NewContactSharer(connA)
	sharerB := rendezvousclient.NewContactSharer(connB)

	const roomCode = 12345
	if err := sharerA.CreateRoom(ctx, roomCode); err != nil {
		t.Fatalf("A.CreateRoom: %v", err)
	}
	// B is the joiner: it never sends CreateRoom, only records its
	// intent to enter the room A already created.
	sharerB.JoinRoom(roomCode)

	if _, err := sharerA.RecordPublicAddr(ctx); err != nil {
		t.Fatalf("A.RecordPublicAddr: %v", err)
	}
	if _, err := sharerB.RecordPublicAddr(ctx); err != nil {
		t.Fatalf("B.RecordPublicAddr: %v", err)
	}

	localA := []protocol.Endpoint{{IP: net.ParseIP("10.0.0.1"), Port: 7000}}
	localB := []protocol.Endpoint{{IP: net.ParseIP("10.0.0.2"), Port: 8000}}

	resultCh := make(chan error, 2)
	var fcA, fcB protocol.FullContact
	go func() {
		err := sharerA.ShareContact(ctx, localA)
		if err == nil {
			fcA, err = sharerA.AwaitPeerContact(ctx)
		}
		resultCh <- err
	}()
	go func() {
		err := sharerB.ShareContact(ctx, localB)
		if err == nil {
			fcB, err = sharerB.AwaitPeerContact(ctx)
		}
		resultCh <- err
	}()

	for i := 0; i < 2; i++ {
		if err := <-resultCh; err != nil {
			t.Fatalf("share/await failed: %v", err)
		}
	}

	if len(fcA.Peer.Local) != 1 || !fcA.Peer.Local[0].IP.Equal(localB[0].IP) {
		t.Errorf("A's peer local = %+v, want %+v", fcA.Peer.Local, localB)
	}
	if len(fcB.Peer.Local) != 1 || !fcB.Peer.Local[0].IP.Equal(localA[0].IP) {
		t.Errorf("B's peer local = %+v, want %+v", fcB.Peer.Local, localA)
	}
}

func TestCreateRoom_DuplicateCodeRejected(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const roomCode = 99

	conn1, err := rendezvousclient.ConnectToServer(ctx, addr, nil, false)
	if err != nil {
		t.Fatalf("ConnectToServer: %v", err)
	}
	defer conn1.Close()
	if err := rendezvousclient.NewContactSharer(conn1).CreateRoom(ctx, roomCode); err != nil {
		t.Fatalf("first CreateRoom: %v", err)
	}

	conn2, err := rendezvousclient.ConnectToServer(ctx, addr, nil, false)
	if err != nil {
		t.Fatalf("ConnectToServer: %v", err)
	}
	defer conn2.Close()

	err = rendezvousclient.NewContactSharer(conn2).CreateRoom(ctx, roomCode)
	if err != protocol.ErrRoomCodeTaken {
		t.Fatalf("second CreateRoom err = %v, want ErrRoomCodeTaken", err)
	}
}

func TestRecordPublicAddr_UnknownRoomCodeRejected(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := rendezvousclient.ConnectToServer(ctx, addr, nil, false)
	if err != nil {
		t.Fatalf("ConnectToServer: %v", err)
	}
	defer conn.Close()

	sharer := rendezvousclient.NewContactSharer(conn)
	sharer.JoinRoom(404)
	if _, err := sharer.RecordPublicAddr(ctx); err != protocol.ErrRoomNotFound {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestPeerTimedOut_DeliveredWhenOtherSideNeverArrives(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	state := rendezvous.NewState(0, 50*time.Millisecond)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go rendezvous.HandleConnection(ctx, conn, state, logger)
		}
	}()
	defer ln.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	conn, err := rendezvousclient.ConnectToServer(callCtx, ln.Addr().String(), nil, false)
	if err != nil {
		t.Fatalf("ConnectToServer: %v", err)
	}
	defer conn.Close()

	sharer := rendezvousclient.NewContactSharer(conn)
	if err := sharer.CreateRoom(callCtx, 55); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := sharer.RecordPublicAddr(callCtx); err != nil {
		t.Fatalf("RecordPublicAddr: %v", err)
	}
	if err := sharer.ShareContact(callCtx, nil); err != nil {
		t.Fatalf("ShareContact: %v", err)
	}

	_, err = sharer.AwaitPeerContact(callCtx)
	if err != protocol.ErrPeerTimedOut {
		t.Fatalf("AwaitPeerContact err = %v, want ErrPeerTimedOut", err)
	}
}
