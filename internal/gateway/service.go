// Package gateway wires the realtime components together and exposes
// them over HTTP: WebSocket room routes, health, stats, and metrics.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/memeroyale/realtime/internal/backplane"
	"github.com/memeroyale/realtime/internal/countdown"
	"github.com/memeroyale/realtime/internal/identity"
	"github.com/memeroyale/realtime/internal/metrics"
	"github.com/memeroyale/realtime/internal/registry"
	"github.com/memeroyale/realtime/internal/session"
	"github.com/memeroyale/realtime/internal/store"
)

// Service owns the full realtime stack for one server process.
type Service struct {
	cfg       Config
	backplane backplane.Backplane
	registry  *registry.Registry
	store     store.Store
	countdown *countdown.Manager
	handler   *WebSocketHandler
	metrics   *metrics.Metrics
	promReg   *prometheus.Registry
	logger    zerolog.Logger
}

// NewService builds the service from configuration. With a NATS URL it
// runs horizontally scalable (NATS pub/sub backplane, JetStream KV
// countdown store); with "memory" it runs single-node on in-process
// implementations.
func NewService(ctx context.Context, cfg Config, provider identity.Provider, clock clockwork.Clock, logger zerolog.Logger) (*Service, error) {
	var (
		bp backplane.Backplane
		st store.Store
	)

	if cfg.NATSURL == "" || cfg.NATSURL == "memory" {
		logger.Warn().Msg("running single-node with in-process backplane and store")
		bp = backplane.NewMemory()
		st = store.NewMemory()
	} else {
		natsBP, err := backplane.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("create backplane: %w", err)
		}
		kv, err := store.NewKV(ctx, natsBP.Conn(), cfg.TimerBucket)
		if err != nil {
			natsBP.Close()
			return nil, fmt.Errorf("create countdown store: %w", err)
		}
		bp, st = natsBP, kv
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	reg := registry.New(bp, logger)
	cd := countdown.NewManager(st, reg, clock, logger, m)
	presence := session.NewTracker(reg, logger)

	deps := session.Deps{
		Registry:  reg,
		Countdown: cd,
		Presence:  presence,
		Clock:     clock,
		Metrics:   m,
		Logger:    logger,
		Config:    cfg.Session,
	}

	return &Service{
		cfg:       cfg,
		backplane: bp,
		registry:  reg,
		store:     st,
		countdown: cd,
		handler:   NewWebSocketHandler(provider, deps, cfg.AllowAnonymous, logger),
		metrics:   m,
		promReg:   promReg,
		logger:    logger,
	}, nil
}

// RegisterRoutes registers all HTTP routes with the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	s.logger.Info().Msg("gateway routes registered")
}

// Close stops the countdown drivers and tears down the backplane.
// Open WebSocket connections are dropped by the HTTP server shutdown.
func (s *Service) Close() {
	s.countdown.Stop()
	s.backplane.Close()
	s.logger.Info().Msg("gateway service stopped")
}
