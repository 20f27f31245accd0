// Package main boots the payment webhook reconciliation HTTP server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/payment-webhook-reconciler/internal/config"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/events"
	httpapi "github.com/fairyhunter13/payment-webhook-reconciler/internal/http"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/metrics"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/obs"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/provider"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/recon"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/storage"
)

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	cfg := config.Load()
	obs.InitLogger(logLevel(cfg.LogLevel))
	obs.Logger.Info("service_starting")

	var store storage.Store
	if cfg.DBDSN != "" {
		db, err := storage.Open(cfg.DBDSN)
		if err != nil {
			obs.Logger.Error("db_open_failed", "error", err)
			os.Exit(1)
		}
		store = db
		obs.Logger.Info("db_connected")
	} else {
		store = storage.NewMemory()
		obs.Logger.Warn("db_dsn_empty_using_memory_store")
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		k := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = k.Close() }()
		pub = k
		obs.Logger.Info("kafka_publisher_enabled", "topic", cfg.KafkaTopic)
	}

	fetcher := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAccessToken, cfg.ProviderTimeout)
	engine := recon.New(store, pub)
	reg := metrics.NewRegistry()

	app := httpapi.NewApp(cfg, fetcher, engine, reg)
	mux := httpapi.NewRouter(app, reg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	obs.Logger.Info("service_stopped")
}
