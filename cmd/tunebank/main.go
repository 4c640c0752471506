// Package main runs the tunebank server: a closed credit economy over a
// music catalog, exposed as a REST API.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/blef1o/tunebank/internal/app"
	"github.com/blef1o/tunebank/internal/app/httpapi"
	"github.com/blef1o/tunebank/internal/app/storage"
	"github.com/blef1o/tunebank/internal/app/storage/postgres"
	"github.com/blef1o/tunebank/internal/config"
	"github.com/blef1o/tunebank/internal/platform/migrations"
	"github.com/blef1o/tunebank/pkg/logger"
)

func main() {
	_ = godotenv.Load() // allow .env for local runs

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("main").WithError(err).Error("load config")
		os.Exit(1)
	}
	log := logger.New(cfg.Logging).WithField("component", "main")

	var journal storage.JournalStore
	var db *sql.DB
	if cfg.Database.Driver == "postgres" {
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.WithError(err).Error("open database")
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.WithError(err).Error("ping database")
			os.Exit(1)
		}
		if err := migrations.Apply(db); err != nil {
			log.WithError(err).Error("apply migrations")
			os.Exit(1)
		}
		journal = postgres.New(db)
		log.Info("journal backed by postgres")
	} else {
		log.Info("journal kept in memory")
	}

	application, err := app.New(app.Config{
		SystemAccount:    cfg.Economy.SystemAccount,
		AuthorityAccount: cfg.Economy.AuthorityAccount,
		InitialSupply:    cfg.Economy.InitialSupply,
		ListenAddr:       cfg.Server.Addr(),
		API: httpapi.Config{
			JWTSecret:         []byte(cfg.API.JWTSecret),
			RequestsPerSecond: cfg.API.RequestsPerSecond,
			Burst:             cfg.API.Burst,
			AuditWindow:       cfg.API.AuditWindow,
			AuditFile:         cfg.API.AuditFile,
		},
	}, app.Stores{Journal: journal}, logger.New(cfg.Logging))
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}
	log.Infof("tunebank listening on %s", cfg.Server.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("received %s, shutting down", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
