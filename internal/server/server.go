package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/event-indexer/internal/config"
	"github.com/smartdevs17/event-indexer/internal/connection"
	"github.com/smartdevs17/event-indexer/internal/metrics"
	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/internal/monitor"
	"github.com/smartdevs17/event-indexer/internal/storage"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// Version is reported by the health endpoint
var Version = "dev"

// HTTPServer serves the event query API
type HTTPServer struct {
	config         *config.ServerConfig
	server         *http.Server
	router         *mux.Router
	storage        storage.Storage
	monitor        monitor.Monitor
	connection     connection.Manager
	metricsManager *metrics.Manager
	logger         *logrus.Entry
	stopUpdater    chan struct{}
	stopOnce       sync.Once
}

// NewHTTPServer creates a new HTTP server. monitor, conn and metricsManager may be nil.
func NewHTTPServer(
	cfg *config.ServerConfig,
	store storage.Storage,
	mon monitor.Monitor,
	conn connection.Manager,
	metricsManager *metrics.Manager,
) *HTTPServer {
	server := &HTTPServer{
		config:         cfg,
		storage:        store,
		monitor:        mon,
		connection:     conn,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("http"),
		stopUpdater:    make(chan struct{}),
	}

	server.setupRouter()

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	// Middleware
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	// OPTIONS must match a route for the CORS middleware to run
	s.router.HandleFunc("/events", s.listEventsHandler).Methods(http.MethodGet, http.MethodOptions)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/events", s.listEventsHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/monitor/status", s.monitorStatusHandler).Methods(http.MethodGet)

	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	}

	if s.config.EnableMetrics && s.metricsManager != nil {
		s.router.Handle("/metrics", s.metricsManager.Handler())
		api.HandleFunc("/stats", s.statsHandler).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "Not found", nil)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})
}

// Handler returns the configured router
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	if s.metricsManager != nil {
		s.updateComponentMetrics()
		go s.systemMetricsUpdater()
	}

	errChan := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Give the server a moment to start and check for immediate binding errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopUpdater:
			return
		case <-ticker.C:
			s.updateComponentMetrics()
		}
	}
}

func (s *HTTPServer) updateComponentMetrics() {
	s.metricsManager.UpdateSystemMetrics()
	m := s.metricsManager.GetPrometheusMetrics()
	if m == nil {
		return
	}

	m.UpdateComponentHealth("storage", s.storage.Ping() == nil)
	if s.monitor != nil {
		m.UpdateComponentHealth("monitor", s.monitor.GetHealth().Healthy)
	}
	if s.connection != nil {
		m.UpdateComponentHealth("connection", s.connection.IsConnected())
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")
	s.stopOnce.Do(func() { close(s.stopUpdater) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// listEventsHandler returns every stored record, or only those of ?type=.
// The response is always a JSON array in insertion order.
func (s *HTTPServer) listEventsHandler(w http.ResponseWriter, r *http.Request) {
	var (
		records []*models.EventRecord
		err     error
	)

	if raw := r.URL.Query().Get("type"); raw != "" {
		eventType, parseErr := models.ParseEventType(raw)
		if parseErr != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid event type", parseErr)
			return
		}
		records, err = s.storage.GetEventsByType(r.Context(), eventType)
	} else {
		records, err = s.storage.GetEvents(r.Context())
	}

	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve events", err)
		return
	}
	if records == nil {
		records = []*models.EventRecord{}
	}

	s.writeJSON(w, http.StatusOK, records)
}

// healthHandler returns basic health status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]interface{}{}
	healthy := true

	storageHealthy := s.storage.Ping() == nil
	components["storage"] = storageHealthy
	healthy = healthy && storageHealthy

	if s.monitor != nil {
		health := s.monitor.GetHealth()
		components["monitor"] = health
		healthy = healthy && health.Healthy
	}
	if s.connection != nil {
		connected := s.connection.IsConnected()
		components["connection"] = connected
		healthy = healthy && connected
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":          status,
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"version":         Version,
		"metrics_enabled": s.config.EnableMetrics,
		"components":      components,
	})
}

// statsHandler returns application statistics
func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	storageStats, err := s.storage.GetStorageStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve storage stats", err)
		return
	}

	stats := map[string]interface{}{
		"timestamp":       time.Now(),
		"storage":         storageStats,
		"metrics_enabled": s.config.EnableMetrics,
	}
	if s.monitor != nil {
		stats["monitor"] = s.monitor.GetStats()
	}
	if s.connection != nil {
		stats["connection"] = s.connection.Stats()
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// monitorStatusHandler gets monitor status
func (s *HTTPServer) monitorStatusHandler(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Monitor is not configured", nil)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"running":   s.monitor.IsRunning(),
		"health":    s.monitor.GetHealth(),
		"stats":     s.monitor.GetStats(),
		"timestamp": time.Now(),
	})
}

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string, err error) {
	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now(),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
		entry := s.logger.WithFields(logrus.Fields{"status": status, "message": message}).WithError(err)
		if status >= http.StatusInternalServerError {
			entry.Error("HTTP error")
		} else {
			entry.Debug("HTTP client error")
		}
	}

	s.writeJSON(w, status, errorResponse)
}
