package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BadgerOps/wheelgap/internal/server"
	"github.com/spf13/cobra"
)

var serveListen string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mirror tree over HTTP",
		Long: `Start a static HTTP server over the mirror tree so that pip on the
air-gapped network can install from it:

  pip install --index-url http://<host>:<port>/simple/ <package>

By default, the server listens on the address configured in the config file
(default: 0.0.0.0:8080). Use --listen to override.`,
		Example: `  wheelgap serve
  wheelgap serve --listen 127.0.0.1:9000`,
		RunE: serveRun,
	}

	cmd.Flags().StringVar(&serveListen, "listen", "", "address to listen on (host:port)")

	return cmd
}

func serveRun(cmd *cobra.Command, args []string) error {
	log := slog.Default()

	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	listen := globalCfg.Server.Listen
	if serveListen != "" {
		listen = serveListen
	}

	mirrorRoot := globalCfg.MirrorDir()
	if _, err := os.Stat(mirrorRoot); os.IsNotExist(err) {
		return fmt.Errorf("mirror tree not found at %s: run 'wheelgap mirror' first", mirrorRoot)
	}

	log.Info("server starting", "listen", listen, "mirror", mirrorRoot)

	srv := server.NewServer(mirrorRoot, logger)

	// Channel to listen for errors from server
	errChan := make(chan error, 1)

	// Start the server in a goroutine
	go func() {
		fmt.Printf("Serving %s on %s...\n", mirrorRoot, listen)
		if err := srv.Start(listen); err != nil {
			errChan <- err
		}
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for either an error or a shutdown signal
	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info("received shutdown signal", "signal", sig)
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		fmt.Println("Server stopped gracefully")
	}

	return nil
}
