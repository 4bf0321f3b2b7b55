package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Serve builds the HTTP surface and blocks serving it until an interrupt
// signal triggers a graceful shutdown, the same bind-then-signal-handle
// shape as tusd's own Serve.
func Serve() {
	mux := http.NewServeMux()

	if Flags.ShowGreeting {
		mux.HandleFunc("GET /{$}", DisplayGreeting)
	}

	RegisterHandlers(mux)

	if Flags.ExposeMetrics {
		SetupMetrics(mux)
	}

	address := Flags.HttpHost + ":" + Flags.HttpPort
	listener, err := NewListener(address)
	if err != nil {
		stderr.Fatalf("Unable to create listener: %s", err)
	}

	stdout.Printf("Using %s as address to listen.\n", address)

	server := &http.Server{Handler: mux}

	shutdownComplete := setupSignalHandler(server)

	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownComplete
	} else {
		stderr.Fatalf("Unable to serve: %s", err)
	}
}

func setupSignalHandler(server *http.Server) <-chan struct{} {
	shutdownComplete := make(chan struct{})

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		stdout.Println("Received interrupt signal. Shutting down s3mockd...")

		go func() {
			<-c
			stdout.Println("Received second interrupt signal. Exiting immediately!")
			os.Exit(1)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), Flags.ShutdownTimeout)
		defer cancel()

		err := server.Shutdown(ctx)
		if err == nil {
			stdout.Println("Shutdown completed. Goodbye!")
		} else if errors.Is(err, context.DeadlineExceeded) {
			stderr.Println("Shutdown timeout exceeded. Exiting immediately!")
		} else {
			stderr.Printf("Failed to shutdown gracefully: %s\n", err)
		}

		close(shutdownComplete)
	}()

	return shutdownComplete
}
