package rendezvous

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"

	"github.com/postalsys/gday/internal/logging"
	"github.com/postalsys/gday/internal/recovery"
)

// DefaultPort is the rendezvous server's default TCP port.
const DefaultPort = 2311

// Server accepts rendezvous connections and dispatches each to
// HandleConnection on its own goroutine.
type Server struct {
	State     *State
	Logger    *slog.Logger
	TLSConfig *tls.Config // nil disables TLS
}

// NewServer builds a Server around an already-constructed State.
func NewServer(state *State, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{State: state, Logger: logger}
}

// Serve accepts connections on listenAddr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listenAddr string) error {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("rendezvous: listen on %s: %w", listenAddr, err)
	}
	if s.TLSConfig != nil {
		ln = tls.NewListener(ln, s.TLSConfig)
	}
	defer ln.Close()

	s.Logger.Info("rendezvous server listening", logging.KeyAddress, listenAddr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("rendezvous: accept: %w", err)
			}
		}
		go func() {
			defer recovery.RecoverWithLog(s.Logger, "rendezvous.Serve.connection")
			HandleConnection(ctx, conn, s.State, s.Logger)
		}()
	}
}
