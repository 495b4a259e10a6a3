package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wemix/blockwait/pkg/logger"
)

// Exporter handles the HTTP server for Prometheus metrics
type Exporter struct {
	recorder *Recorder
	logger   *logger.Logger
	server   *http.Server
	port     int
	path     string
}

// NewExporter creates a new Prometheus exporter
func NewExporter(recorder *Recorder, port int, path string, logger *logger.Logger) *Exporter {
	if path == "" {
		path = "/metrics"
	}
	if port == 0 {
		port = 9090
	}

	return &Exporter{
		recorder: recorder,
		logger:   logger,
		port:     port,
		path:     path,
	}
}

// Start starts the Prometheus HTTP server
func (e *Exporter) Start() error {
	mux := http.NewServeMux()

	// Metrics endpoint
	handler := promhttp.HandlerFor(
		e.recorder.Registry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Timeout:           10 * time.Second,
			ErrorLog:          e.logger.StdLogger(),
		},
	)
	mux.Handle(e.path, handler)

	// Health check endpoint
	mux.HandleFunc("/health", e.healthHandler)

	// Ready check endpoint
	mux.HandleFunc("/ready", e.readyHandler)

	e.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", e.port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		e.logger.Info("starting metrics exporter",
			zap.Int("port", e.port),
			zap.String("path", e.path))

		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Error("metrics exporter error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Prometheus HTTP server
func (e *Exporter) Stop() error {
	if e.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.server.Shutdown(ctx); err != nil {
		e.logger.Error("failed to shutdown metrics exporter gracefully", zap.Error(err))
		return err
	}

	e.logger.Info("metrics exporter stopped")
	return nil
}

// healthHandler handles health check requests
func (e *Exporter) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readyHandler reports ready once a height has been observed
func (e *Exporter) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !e.recorder.HasObservedHeight() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not_ready","message":"no height observed yet"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
