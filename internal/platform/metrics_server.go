package platform

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MetricsServer serves a prometheus gatherer over HTTP while the habitat runs.
type MetricsServer struct {
	Addr     string
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func (s *MetricsServer) Name() string {
	return "metrics"
}

func (s *MetricsServer) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}
	if s.Gatherer == nil {
		return errors.New("metrics gatherer is required")
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.Logger.Info().Str("addr", listener.Addr().String()).Msg("metrics server started")
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	s.server = server
	s.listener = listener
	return nil
}

func (s *MetricsServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	s.server = nil
	s.listener = nil
	return err
}

// ListenAddr reports the bound address, which differs from Addr when Addr
// asks for an ephemeral port.
func (s *MetricsServer) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
