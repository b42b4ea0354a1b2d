package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campuscore.org/internal/audit"
	"campuscore.org/internal/auth"
	"campuscore.org/internal/channel"
	"campuscore.org/internal/grant"
	"campuscore.org/internal/httpapi"
	"campuscore.org/internal/identity"
	"campuscore.org/internal/obs"
	"campuscore.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("PORTAL_PG_DSN")
	if dsn == "" {
		log.Fatal("missing PORTAL_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	recorder := audit.NewRecorder(store, nil)

	identities, err := identity.NewService(store, recorder)
	if err != nil {
		log.Fatalf("identity service: %v", err)
	}
	authSvc, err := auth.NewService(store, recorder)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	channels, err := channel.NewService(store, recorder)
	if err != nil {
		log.Fatalf("channel service: %v", err)
	}
	grants, err := grant.NewService(store, recorder)
	if err != nil {
		log.Fatalf("grant service: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Store:      store,
		Auth:       authSvc,
		Identities: identities,
		Channels:   channels,
		Grants:     grants,
		Recorder:   recorder,
		ReadyProbe: httpapi.ReadyProbe{DB: store.DB()},
		Version:    version,
	})

	addr := os.Getenv("PORTAL_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.RateLimit(api.Handler(), 50, 25),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting campuscore-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
