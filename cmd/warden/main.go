package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davidkarpay/warden/internal/agent"
	"github.com/davidkarpay/warden/internal/version"
)

func main() {
	httpAddr := flag.String("http", "", "HTTP listen address for local API and health endpoints (overrides config)")
	configPath := flag.String("config", "", "Path to the warden TOML config")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("warden %s (%s)\n", version.Version, version.Commit)
		return
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := agent.New(agent.Options{ConfigPath: *configPath, HTTPAddr: *httpAddr})
	if err != nil {
		log.Fatalf("[main] agent init error: %v", err)
	}

	addr := a.Config().HTTP.Addr
	srv := &http.Server{Addr: addr, Handler: a.Router()}

	go func() {
		log.Printf("[main] warden starting addr=%s version=%s", addr, version.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] http server error: %v", err)
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	log.Println("[main] shutdown signal received, draining...")

	// Graceful HTTP shutdown with timeout
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("[main] http shutdown error: %v", err)
	}

	if err := a.Close(); err != nil {
		log.Printf("[main] agent close error: %v", err)
	}

	log.Println("[main] bye")
	_ = os.Stdout.Sync()
}
