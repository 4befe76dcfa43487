package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stakewatch/stakewatch/internal/config"
	"github.com/stakewatch/stakewatch/internal/logger"
)

const systemMetricsInterval = 15 * time.Second

// Server exposes the Prometheus scrape endpoint and a basic health check,
// and keeps the process gauges fresh while running.
type Server struct {
	cfg *config.MetricsConfig
	log *logger.Logger

	srv      *http.Server
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewServer creates a new metrics server.
func NewServer(cfg *config.MetricsConfig, log *logger.Logger) *Server {
	return &Server{
		cfg:    cfg,
		log:    log.WithComponent("metrics"),
		stopCh: make(chan struct{}),
	}
}

// Start launches the HTTP listener and the system metrics refresher.
// It returns immediately; listen errors are logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info("metrics server is disabled")
		return nil
	}

	s.srv = &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go s.refreshLoop(ctx)

	go func() {
		s.log.Infof("metrics server listening on %s%s", s.cfg.ListenAddress, s.cfg.Path)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("metrics server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts the HTTP listener down and stops the refresher.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	s.stopOnce.Do(func() { close(s.stopCh) })

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}

	return nil
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK")) //nolint:errcheck
	})
	return mux
}

func (s *Server) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			UpdateSystemMetrics()
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}
