package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/mockprep/internal/fakeapi"
)

var devserverAddr string

func newDevserverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run an in-memory backend for local testing",
		Args:  cobra.NoArgs,
		RunE:  runDevserverCmd,
	}
	cmd.Flags().StringVar(&devserverAddr, "addr", "127.0.0.1:8000", "listen address")
	return cmd
}

func runDevserverCmd(_ *cobra.Command, _ []string) error {
	baseURL := "http://" + devserverAddr
	if strings.HasPrefix(devserverAddr, ":") {
		baseURL = "http://localhost" + devserverAddr
	}
	fake := fakeapi.New(fakeapi.Config{TestMode: true, BaseURL: baseURL})
	srv := &http.Server{
		Addr:              devserverAddr,
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logErrf("Fake backend listening on %s (test mode)\n", baseURL)
	logErrf("Point the client at it with: %s=%s mockprep --test-mode\n", apiURLEnv, baseURL)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
