package protocol

import (
	"context"
	"net"
	"time"
)

// deadlineConn is satisfied by net.Conn; kept as its own interface so
// tests can exercise the cooperative path with a fake that isn't a full
// net.Conn.
type deadlineConn interface {
	SetDeadline(t time.Time) error
}

// applyDeadline pushes ctx's deadline (if any) onto conn and returns a
// cleanup func that clears it again. Callers defer the cleanup so a
// conn reused for a later call isn't left with a stale deadline.
func applyDeadline(ctx context.Context, conn deadlineConn) (func(), error) {
	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(dl); err != nil {
			return func() {}, err
		}
		return func() { conn.SetDeadline(time.Time{}) }, nil
	}
	return func() {}, nil
}

// WriteMessageContext is WriteMessage with ctx cancellation/deadline
// applied to conn before the write, per spec.md's "async vs sync
// duality": the same encode path as WriteMessage, only the deadline
// differs.
func WriteMessageContext(ctx context.Context, conn net.Conn, v any) error {
	cleanup, err := applyDeadline(ctx, conn)
	if err != nil {
		return err
	}
	defer cleanup()
	return WriteMessage(conn, v)
}

// ReadClientMsgContext is ReadClientMsg with ctx cancellation/deadline
// applied to conn before the read.
func ReadClientMsgContext(ctx context.Context, conn net.Conn) (*ClientMsg, error) {
	cleanup, err := applyDeadline(ctx, conn)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return ReadClientMsg(conn)
}

// ReadServerMsgContext is ReadServerMsg with ctx cancellation/deadline
// applied to conn before the read.
func ReadServerMsgContext(ctx context.Context, conn net.Conn) (*ServerMsg, error) {
	cleanup, err := applyDeadline(ctx, conn)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return ReadServerMsg(conn)
}
