package aeadstream

import (
	"context"
	"net"
	"time"
)

// ConnStream is a Stream backed by a net.Conn, additionally exposing
// deadline-based cancellation for callers that prefer a
// context.Context-shaped API over blocking Read/Write (spec.md §9
// "async vs sync duality").
type ConnStream struct {
	*Stream
	conn net.Conn
}

// NewConn is New specialized to a net.Conn, so ReadContext/WriteContext
// are available.
func NewConn(conn net.Conn, key [32]byte, baseNonce [7]byte) (*ConnStream, error) {
	s, err := New(conn, key, baseNonce)
	if err != nil {
		return nil, err
	}
	return &ConnStream{Stream: s, conn: conn}, nil
}

// ReadContext is Read with ctx's deadline applied to the underlying
// connection first.
func (c *ConnStream) ReadContext(ctx context.Context, p []byte) (int, error) {
	cleanup, err := c.applyDeadline(ctx)
	if err != nil {
		return 0, err
	}
	defer cleanup()
	return c.Stream.Read(p)
}

// WriteContext is Write with ctx's deadline applied to the underlying
// connection first.
func (c *ConnStream) WriteContext(ctx context.Context, p []byte) (int, error) {
	cleanup, err := c.applyDeadline(ctx)
	if err != nil {
		return 0, err
	}
	defer cleanup()
	return c.Stream.Write(p)
}

func (c *ConnStream) applyDeadline(ctx context.Context) (func(), error) {
	if dl, ok := ctx.Deadline(); ok {
		if err := c.conn.SetDeadline(dl); err != nil {
			return func() {}, err
		}
		return func() { c.conn.SetDeadline(time.Time{}) }, nil
	}
	return func() {}, nil
}
