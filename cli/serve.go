package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevemurr/dashstate/config"
	"github.com/stevemurr/dashstate/handler"
	"github.com/stevemurr/dashstate/logging"
	"github.com/stevemurr/dashstate/metrics"
)

const shutdownTimeout = 10 * time.Second

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

func serveCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard state over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			h := handler.New(rt.open(), rt.logger.Named("http"), metrics.Handler(rt.registry))
			srv := &http.Server{
				Addr:              net.JoinHostPort(rt.cfg.Server.Host, strconv.Itoa(rt.cfg.Server.Port)),
				Handler:           handler.AccessLog(handler.CORS(h, rt.cfg.Server.AllowedOrigins), rt.logger.Named("http")),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("dashstate starting",
					zap.String("addr", srv.Addr),
					zap.String("store", rt.cfg.Store.Backend),
					zap.String("data_dir", rt.cfg.Store.DataDir))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			rt.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}
