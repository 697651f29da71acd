package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vku/taskchat/internal/auth"
	"github.com/vku/taskchat/internal/backend"
	"github.com/vku/taskchat/internal/config"
	"github.com/vku/taskchat/internal/gateway"
	"github.com/vku/taskchat/internal/provider"
)

var listenOverride string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the taskchat gateway",
	Long:  `Starts the HTTP gateway that verifies caller credentials, retrieves task data and drives the AI backend.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenOverride, "listen", "", "Listen address (overrides config)")
}

// taskStore is what a provider implementation must offer the serving path.
type taskStore interface {
	provider.Provider
	gateway.Pinger
	io.Closer
}

func openStore(cfg *config.Config) (taskStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return provider.NewSQLiteStore(cfg.Store.SQLite.Path)
	case "mysql":
		return provider.NewMySQLStore(cfg.Store.MySQL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Println("Starting taskchat gateway...")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenOverride != "" {
		cfg.Listen = listenOverride
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	log.Printf("Task store ready (driver=%s)", cfg.Store.Driver)

	dispatcher := backend.New(cfg.Backend)
	service := gateway.NewService(store, dispatcher)
	server := gateway.NewServer(verifier, service, store, cfg.Listen)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			store.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing task store...")
	if err := store.Close(); err != nil {
		log.Printf("Store close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
