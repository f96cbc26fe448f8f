// membridged is the local memory daemon: it owns the vector store and
// serves the HTTP API that the CLI, editors and the MCP bridge talk to.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/membridge/membridge/app"
	"github.com/membridge/membridge/config"
	"github.com/membridge/membridge/httpapi"
	"github.com/membridge/membridge/memory"
	"github.com/membridge/membridge/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.New(cfg.MetricsNamespace)
	hub := httpapi.NewEventHub(metrics)

	manager, cleanup, err := app.NewManager(cfg, memory.WithNotifier(hub))
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer cleanup()

	extractor, err := app.NewExtractor(cfg)
	if err != nil {
		log.Fatalf("extractor init failed: %v", err)
	}

	api := httpapi.New(cfg, manager, extractor, hub, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("[MEMBRIDGED] Listening on %s (data dir %s, user %s)", cfg.BindAddr, cfg.DataDir, cfg.UserID)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("[MEMBRIDGED] Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[MEMBRIDGED] Graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}
	log.Printf("[MEMBRIDGED] Shutdown complete")
}
