package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxwire-ai/voxwire/pkg/devserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the development server",
	Long: `Run the development server.

Serves the answer stream, speech synthesis, and chat room endpoints that
the talk and chat commands connect to. Answer mode "mock" streams canned
replies; "gemini" proxies the Gemini API (requires GEMINI_API_KEY).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := devserver.New(ctx, cfg, logger)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
