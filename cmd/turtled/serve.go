package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"turtled/internal/httpapi"
	"turtled/internal/registry"
	"turtled/internal/robotsocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the robot socket listener and the operator HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := registry.New()

	robotListener := robotsocket.New(cfg.ListenRobots, cfg.DataDir, reg, log.WithField("component", "robotsocket"))
	httpServer := &http.Server{
		Addr:    cfg.ListenHTTP,
		Handler: httpapi.New(reg, log.WithField("component", "httpapi")),
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- robotListener.Serve(ctx)
	}()
	go func() {
		log.WithField("addr", cfg.ListenHTTP).Info("operator HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown error")
	}
	cancel()

	return nil
}
