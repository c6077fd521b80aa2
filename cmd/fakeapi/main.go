package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weiawesome/chat-client/internal/config"
	"github.com/weiawesome/chat-client/internal/fakeapi"
	pkglog "github.com/weiawesome/chat-client/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:     cfg.Log.Level,
		Pretty:    cfg.Log.Pretty,
		Component: "fakeapi",
	})
	logger := pkglog.L()

	srv, err := fakeapi.New(fakeapi.Config{
		TokenSecret: cfg.FakeAPI.TokenSecret,
		TokenTTL:    cfg.FakeAPI.TokenTTL,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create fake api")
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", srv.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.FakeAPI.Host, cfg.FakeAPI.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info().Str("host", cfg.FakeAPI.Host).Int("port", cfg.FakeAPI.Port).Msg("fake api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// SIGHUP reseeds the database; SIGINT/SIGTERM stop the server.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signals {
		if sig == syscall.SIGHUP {
			if err := srv.Reseed(); err != nil {
				logger.Error().Err(err).Msg("reseed failed")
			}
			continue
		}
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		break
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("fake api stopped")
}
