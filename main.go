package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config, \"off\" disables)")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := SetupTracing(ctx, cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	var (
		sinks   []OutcomeSink
		history OutcomeQuerier
	)
	if cfg.Database.Path != "" && cfg.Database.Path != "off" {
		store, err := OpenStore(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
		history = store
		logger.Info("match history enabled", "path", cfg.Database.Path)
	}
	if cfg.Redis.Addr != "" {
		pub, err := NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			logger.Warn("outcome publishing disabled", "error", err)
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
			logger.Info("outcome publishing enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
		}
	}
	recorder := NewRecorder(logger, sinks...)

	clock := realClock{}
	var auth *Auth
	if cfg.Auth.Secret != "" || cfg.Auth.Required {
		auth, err = NewAuth(cfg.Auth.Secret, cfg.Auth.TokenExpiry, clock)
		if err != nil {
			return err
		}
	}

	registry := NewRegistry(cfg.Registry, cfg.Game, clock, logger, recorder)
	hub := NewHub(registry, cfg.MaxConnsPerIP, cfg.MaxConns, logger)
	srv := NewServer(hub, auth, cfg.Auth.Required, history, cfg.PublicURL, logger)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	registry.Close()
	hub.CloseAll()
	recorder.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", "error", err)
	}
	return nil
}
