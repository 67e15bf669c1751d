package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"quiz-host/internal/devserver"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newDevServerCmd(e *env) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local game server for play-testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = e.cfg.Server.Listen
			}
			return runDevServer(cmd.Context(), e, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default server.listen)")
	return cmd
}

func runDevServer(ctx context.Context, e *env, listen string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logrus.NewEntry(e.log)
	srv := devserver.New(ctx, log)
	if e.cfg.Server.JoinURL != "" {
		srv.JoinURL = func(_ *http.Request, code string) string { return e.cfg.JoinURL(code) }
	}

	server := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", listen).Info("starting dev game server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down dev game server...")
	}

	srv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
