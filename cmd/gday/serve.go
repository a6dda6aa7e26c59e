package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/postalsys/gday/internal/certutil"
	"github.com/postalsys/gday/internal/config"
	"github.com/postalsys/gday/internal/logging"
	"github.com/postalsys/gday/internal/metrics"
	"github.com/postalsys/gday/internal/rendezvous"
	"github.com/postalsys/gday/internal/transport"
)

func newServeCmd() *cobra.Command {
	var configPath string
	var generateCert bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the rendezvous server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Defaults()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			m := metrics.Default()

			state := rendezvous.NewState(cfg.Limits.MaxRequestsPerMinute, cfg.Limits.RoomTimeout).WithMetrics(m)
			server := rendezvous.NewServer(state, logger)

			if cfg.TLS.Enabled {
				var certPEM, keyPEM []byte
				var err error
				if generateCert {
					gc, genErr := certutil.GenerateSelfSignedCert(certutil.DefaultServerOptions("gday-rendezvous"))
					if genErr != nil {
						return genErr
					}
					certPEM, keyPEM = gc.CertPEM, gc.KeyPEM
					logger.Info("generated self-signed TLS certificate", logging.KeyComponent, "serve", "fingerprint", gc.Fingerprint())
				} else {
					certPEM, keyPEM, err = cfg.TLS.CertAndKeyPEM()
					if err != nil {
						return err
					}
				}
				tlsConfig, err := transport.ServerTLSConfig(certPEM, keyPEM)
				if err != nil {
					return err
				}
				server.TLSConfig = tlsConfig
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.Metrics.Enabled {
				go serveMetrics(ctx, cfg.Metrics.Listen, logger)
			}

			return server.Serve(ctx, cfg.Server.Listen)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults used if omitted)")
	cmd.Flags().BoolVar(&generateCert, "generate-cert", false, "generate a self-signed certificate instead of reading tls.cert/tls.key")
	return cmd
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", logging.KeyAddress, addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server stopped", logging.KeyError, err.Error())
	}
}
