package protocol

import "errors"

// Sentinel errors surfaced by the codec and, once relayed across the
// wire via ErrorReply, reconstructed by the client from the Code field.
var (
	ErrRoomCodeTaken = errors.New("room code already in use")
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadyShared = errors.New("contact already shared for this room")
	ErrPeerTimedOut  = errors.New("peer did not arrive before the room timed out")
	ErrRateLimited   = errors.New("too many requests from this address")
	ErrMalformed     = errors.New("malformed request")

	// ErrBadVersion is returned when a frame's leading version byte does
	// not match ProtocolVersion.
	ErrBadVersion = errors.New("protocol: unsupported version byte")

	// ErrMessageTooLarge is returned when a frame declares a payload
	// length over MaxMessageSize.
	ErrMessageTooLarge = errors.New("protocol: message exceeds maximum size")
)

// ErrorReplyFor maps a sentinel error to the wire code/message pair
// sent back to the client.
func ErrorReplyFor(err error) ErrorReply {
	switch {
	case errors.Is(err, ErrRoomCodeTaken):
		return ErrorReply{Code: ErrCodeRoomCodeTaken, Message: err.Error()}
	case errors.Is(err, ErrRoomNotFound):
		return ErrorReply{Code: ErrCodeRoomNotFound, Message: err.Error()}
	case errors.Is(err, ErrAlreadyShared):
		return ErrorReply{Code: ErrCodeAlreadyShared, Message: err.Error()}
	case errors.Is(err, ErrPeerTimedOut):
		return ErrorReply{Code: ErrCodePeerTimedOut, Message: err.Error()}
	case errors.Is(err, ErrRateLimited):
		return ErrorReply{Code: ErrCodeRateLimited, Message: err.Error()}
	default:
		return ErrorReply{Code: ErrCodeMalformed, Message: err.Error()}
	}
}

// ErrFromReply reconstructs a sentinel error from a received
// ErrorReply so callers can use errors.Is against it.
func ErrFromReply(r ErrorReply) error {
	switch r.Code {
	case ErrCodeRoomCodeTaken:
		return ErrRoomCodeTaken
	case ErrCodeRoomNotFound:
		return ErrRoomNotFound
	case ErrCodeAlreadyShared:
		return ErrAlreadyShared
	case ErrCodePeerTimedOut:
		return ErrPeerTimedOut
	case ErrCodeRateLimited:
		return ErrRateLimited
	default:
		return ErrMalformed
	}
}
