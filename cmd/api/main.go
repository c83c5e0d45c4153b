package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"arcade-server/internal/server"
)

func gracefulShutdown(appServer *server.Server, httpServer *http.Server, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("Shutdown signal received, press Ctrl+C again to force")
	stop()

	// Thirty seconds covers a final save of every session plus socket
	// teardown.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := appServer.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown with error: %v", err)
	}

	done <- true
}

func run(cfg *server.Config) error {
	appServer, httpServer, err := server.NewServer(*cfg)
	if err != nil {
		return err
	}

	done := make(chan bool, 1)
	go gracefulShutdown(appServer, httpServer, done)

	log.Printf("Listening on %s", httpServer.Addr)
	err = httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-done
	log.Println("Graceful shutdown complete.")
	return nil
}

func main() {
	cfg := &server.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}
