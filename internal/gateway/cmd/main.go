package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/memeroyale/realtime/internal/gateway"
	"github.com/memeroyale/realtime/internal/identity"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := gateway.DefaultConfig()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		var err error
		cfg, err = gateway.LoadConfig(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to load config")
		}
	}
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.TimerBucket = getEnv("TIMER_BUCKET", cfg.TimerBucket)
	if v := os.Getenv("ALLOW_ANONYMOUS"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			log.Fatal().Str("value", v).Msg("invalid ALLOW_ANONYMOUS")
		}
		cfg.AllowAnonymous = allow
	}

	log.Info().
		Str("port", cfg.Port).
		Str("nats_url", cfg.NATSURL).
		Bool("allow_anonymous", cfg.AllowAnonymous).
		Msg("starting realtime gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service, err := gateway.NewService(ctx, cfg, identity.NewHeaderProvider(), clockwork.NewRealClock(), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)

	corsOptions := cors.Options{AllowCredentials: true}
	if len(cfg.AllowedOrigins) > 0 {
		corsOptions.AllowedOrigins = cfg.AllowedOrigins
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     cors.New(corsOptions).Handler(mux),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	service.Close()
	cancel()

	log.Info().Msg("realtime gateway shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
