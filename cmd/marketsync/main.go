// Package main runs the marketsync price synchronization service.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	app "github.com/nexafin/marketsync/internal/app"
	"github.com/nexafin/marketsync/internal/app/httpapi"
	"github.com/nexafin/marketsync/internal/app/storage/postgres"
	"github.com/nexafin/marketsync/internal/config"
	"github.com/nexafin/marketsync/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	log := logger.NewDefault("marketsync")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("load configuration")
		os.Exit(1)
	}

	stores := app.Stores{}
	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.WithError(err).Error("open database")
			os.Exit(1)
		}
		db.SetMaxOpenConns(20)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.WithError(err).Error("connect to database")
			os.Exit(1)
		}

		store := postgres.New(db)
		stores.Assets = store
		stores.Trades = store
		log.Info("using postgres storage")
	} else {
		log.Info("DATABASE_URL not set; using in-memory storage")
	}

	application, err := app.New(stores, app.Options{
		CryptoEndpoint: cfg.Providers.CryptoURL,
		CryptoAPIKey:   cfg.Providers.CryptoKey,
		ForexEndpoint:  cfg.Providers.ForexURL,
		ForexAPIKey:    cfg.Providers.ForexKey,
		SyncSchedule:   cfg.Sync.Schedule,
	}, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start services")
		os.Exit(1)
	}

	router := httpapi.NewRouter(application, httpapi.RouterConfig{
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		SyncSecret:     cfg.Auth.SyncSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log,
	})

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.ListenAddr).Info("http server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("http server")
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("stop services")
	}
	if db != nil {
		_ = db.Close()
	}

	log.Info("stopped")
}
