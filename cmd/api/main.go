package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"accesslab.dev/internal/access"
	"accesslab.dev/internal/audit"
	"accesslab.dev/internal/authn"
	"accesslab.dev/internal/config"
	"accesslab.dev/internal/httpapi"
	"accesslab.dev/internal/identity"
	"accesslab.dev/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	// Local development keeps secrets in a .env file; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.SessionSecret == "" {
		log.Fatal("ACCESSLAB_SESSION_SECRET is required")
	}
	if cfg.LogSecret == "" {
		log.Fatal("ACCESSLAB_LOG_KEY is required")
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// A DSN selects the Postgres stores; without one the service runs fully
	// in memory, which is enough for local demos.
	var db *sql.DB
	var (
		store     identity.Store
		resources identity.ResourceStore
		auditSink audit.Store
	)
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = identity.NewPGStore(db)
		resources = identity.NewPGResourceStore(db)
		auditSink = audit.NewPGStore(db)
	} else {
		log.Print("no ACCESSLAB_PG_DSN set, using in-memory stores")
		store = identity.NewMemStore()
		resources = identity.NewMemResourceStore()
		auditSink = audit.NewMemStore()
	}

	recorder := audit.NewRecorder(auditSink, cfg.LogSecret)

	authnSvc, err := authn.NewService(store, recorder,
		authn.WithLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutDuration),
		authn.WithTOTPSkew(cfg.TOTPSkew),
	)
	if err != nil {
		log.Fatalf("authn: %v", err)
	}

	engine, err := access.NewEngine(resources, recorder,
		access.WithBusinessHours(cfg.HoursOpen, cfg.HoursClose),
	)
	if err != nil {
		log.Fatalf("access: %v", err)
	}

	sessions, err := httpapi.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}

	api := httpapi.New(authnSvc, engine, resources, sessions, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting accesslab-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
