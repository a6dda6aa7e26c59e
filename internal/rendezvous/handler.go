package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/postalsys/gday/internal/logging"
	"github.com/postalsys/gday/internal/protocol"
	"github.com/postalsys/gday/internal/recovery"
)

// HandleConnection runs the request loop for one client connection.
// The creator's connection sends CreateRoom, then RecordPublicAddr,
// then ShareContact; the joiner's sends RecordPublicAddr first (with
// no prior CreateRoom — its room slot is created implicitly) and then
// ShareContact. Both converge on blocking until the peer's contact
// arrives, the room expires (reported as ErrPeerTimedOut), or ctx is
// cancelled. Grounded on
// original_source/gday_contact_exchange_server/src/connection_handler.rs's
// handle_connection/handle_requests/handle_message sequencing.
//
// Allow is checked once per mutating request (every ReadClientMsg
// dispatched below), not once per connection, so a client cannot
// multiply its request budget by pipelining all three calls into one
// connection.
func HandleConnection(ctx context.Context, conn net.Conn, state *State, logger *slog.Logger) {
	defer conn.Close()
	defer recovery.RecoverWithLog(logger, "rendezvous.HandleConnection")

	srcIP, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	allow := func() bool { return state.Allow(srcIP) }

	if !allow() {
		writeError(conn, logger, state, protocol.ErrRateLimited)
		return
	}

	handle, err := handleFirstMessage(conn, state)
	if err != nil {
		writeError(conn, logger, state, err)
		return
	}
	logger.Info("room joined", logging.KeyRoomCode, handle.RoomCode, logging.KeyIsCreator, handle.IsCreator, logging.KeyRemoteAddr, conn.RemoteAddr().String())

	if handle.IsCreator {
		if !allow() {
			writeError(conn, logger, state, protocol.ErrRateLimited)
			return
		}
		newHandle, err := handleRecordPublicAddr(conn, state, handle.RoomCode, true)
		if err != nil {
			writeError(conn, logger, state, err)
			return
		}
		handle = newHandle
	}

	if !allow() {
		writeError(conn, logger, state, protocol.ErrRateLimited)
		return
	}
	if err := handleShareContact(conn, state, handle); err != nil {
		writeError(conn, logger, state, err)
		return
	}

	fc, err := state.AwaitPeerContact(ctx, handle)
	if err != nil {
		if errors.Is(err, protocol.ErrPeerTimedOut) {
			writeError(conn, logger, state, err)
			return
		}
		if !errors.Is(err, context.Canceled) {
			logger.Warn("await peer contact failed", logging.KeyError, err.Error())
		}
		return
	}

	if err := protocol.WriteMessage(conn, protocol.NewPeerContact(fc)); err != nil {
		logger.Warn("write peer contact failed", logging.KeyError, err.Error())
	}
}

// handleFirstMessage reads the connection's opening message and
// dispatches on its kind: create_room starts a room as its creator;
// record_public_addr with is_creator=false enters an existing room as
// its joiner, with no preceding create_room at all.
func handleFirstMessage(conn net.Conn, state *State) (OccupantHandle, error) {
	msg, err := protocol.ReadClientMsg(conn)
	if err != nil {
		return OccupantHandle{}, err
	}

	switch msg.Kind {
	case protocol.KindCreateRoom:
		if msg.CreateRoom == nil {
			return OccupantHandle{}, fmt.Errorf("%w: create_room missing body", protocol.ErrMalformed)
		}
		handle, err := state.CreateRoom(msg.CreateRoom.RoomCode)
		if err != nil {
			return OccupantHandle{}, err
		}
		if err := protocol.WriteMessage(conn, protocol.NewRoomCreated(msg.CreateRoom.RoomCode)); err != nil {
			return OccupantHandle{}, err
		}
		return handle, nil

	case protocol.KindRecordPublicAddr:
		if msg.RecordPublicAddr == nil {
			return OccupantHandle{}, fmt.Errorf("%w: record_public_addr missing body", protocol.ErrMalformed)
		}
		if msg.RecordPublicAddr.IsCreator {
			return OccupantHandle{}, fmt.Errorf("%w: creator must open with create_room", protocol.ErrMalformed)
		}
		public, handle, err := state.RecordPublicAddr(msg.RecordPublicAddr.RoomCode, false, conn.RemoteAddr())
		if err != nil {
			return OccupantHandle{}, err
		}
		if err := protocol.WriteMessage(conn, protocol.NewReceivedAddr(public)); err != nil {
			return OccupantHandle{}, err
		}
		return handle, nil

	default:
		return OccupantHandle{}, fmt.Errorf("%w: expected create_room or record_public_addr, got %s", protocol.ErrMalformed, msg.Kind)
	}
}

func handleRecordPublicAddr(conn net.Conn, state *State, roomCode uint64, isCreator bool) (OccupantHandle, error) {
	msg, err := protocol.ReadClientMsg(conn)
	if err != nil {
		return OccupantHandle{}, err
	}
	if msg.Kind != protocol.KindRecordPublicAddr || msg.RecordPublicAddr == nil {
		return OccupantHandle{}, fmt.Errorf("%w: expected record_public_addr, got %s", protocol.ErrMalformed, msg.Kind)
	}

	public, handle, err := state.RecordPublicAddr(roomCode, isCreator, conn.RemoteAddr())
	if err != nil {
		return OccupantHandle{}, err
	}
	if err := protocol.WriteMessage(conn, protocol.NewReceivedAddr(public)); err != nil {
		return OccupantHandle{}, err
	}
	return handle, nil
}

func handleShareContact(conn net.Conn, state *State, handle OccupantHandle) error {
	msg, err := protocol.ReadClientMsg(conn)
	if err != nil {
		return err
	}
	if msg.Kind != protocol.KindShareContact || msg.ShareContact == nil {
		return fmt.Errorf("%w: expected share_contact, got %s", protocol.ErrMalformed, msg.Kind)
	}

	if err := state.ShareContact(handle, msg.ShareContact.Local); err != nil {
		return err
	}
	return protocol.WriteMessage(conn, protocol.NewClientContact())
}

func writeError(conn net.Conn, logger *slog.Logger, state *State, err error) {
	logger.Warn("rejecting client request", logging.KeyError, err.Error())
	if state.metrics != nil {
		state.metrics.RequestErrors.WithLabelValues(protocol.ErrorReplyFor(err).Code).Inc()
	}
	if writeErr := protocol.WriteMessage(conn, protocol.NewErrorReply(err)); writeErr != nil {
		logger.Warn("failed to write error reply", logging.KeyError, writeErr.Error())
	}
}
