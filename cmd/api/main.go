package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"planhub.org/internal/authz"
	"planhub.org/internal/events"
	"planhub.org/internal/httpapi"
	"planhub.org/internal/obs"
	"planhub.org/internal/store/memory"
	"planhub.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		store authz.Store
		probe httpapi.ReadyProbe
	)
	if dsn := os.Getenv("PLANHUB_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		log.Print("PLANHUB_PG_DSN not set, using in-memory store")
		store = memory.New()
	}

	stream := events.New()
	engine, err := authz.NewEngine(store, authz.WithPublisher(stream))
	if err != nil {
		log.Fatalf("init engine: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := engine.EnsureBuiltins(ctx); err != nil {
		cancel()
		log.Fatalf("seed builtins: %v", err)
	}
	cancel()

	api := httpapi.New(probe, version, engine, stream)

	addr := os.Getenv("PLANHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting planhub-authz %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}
