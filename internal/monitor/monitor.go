package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/event-indexer/internal/connection"
	"github.com/smartdevs17/event-indexer/internal/metrics"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// Monitor defines the event monitor interface
type Monitor interface {
	// Lifecycle management
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool

	// Statistics and monitoring
	GetStats() *MonitorStats
	GetHealth() *HealthStatus
}

// MonitorConfig holds monitor configuration
type MonitorConfig struct {
	ContractAddress  common.Address `json:"contract_address"`
	ResubscribeDelay time.Duration  `json:"resubscribe_delay"`
}

// MonitorStats provides monitoring statistics
type MonitorStats struct {
	StartTime           time.Time           `json:"start_time"`
	Uptime              time.Duration       `json:"uptime"`
	IsRunning           bool                `json:"is_running"`
	ContractAddress     string              `json:"contract_address"`
	TotalLogsReceived   uint64              `json:"total_logs_received"`
	TotalEventsSaved    uint64              `json:"total_events_saved"`
	TotalLogsDropped    uint64              `json:"total_logs_dropped"`
	TotalStreamFailures uint64              `json:"total_stream_failures"`
	Subscriptions       []SubscriptionStats `json:"subscriptions"`
}

// HealthStatus provides health information
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Status    string            `json:"status"`
	LastCheck time.Time         `json:"last_check"`
	Issues    []string          `json:"issues,omitempty"`
	States    map[string]string `json:"states"`
}

// EventMonitor runs one Subscription per indexed event. Subscriptions are
// independent: a failing stream never stalls the others.
type EventMonitor struct {
	config        *MonitorConfig
	subscriptions []*Subscription
	logger        *logrus.Entry

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startTime time.Time

	metricsManager *metrics.Manager
}

// NewEventMonitor creates a monitor for every signature in Signatures()
func NewEventMonitor(source connection.LogSource, sink EventSink, cfg *MonitorConfig) *EventMonitor {
	return NewEventMonitorWithOptions(source, sink, cfg, nil)
}

// NewEventMonitorWithOptions creates a monitor that records metrics on m
func NewEventMonitorWithOptions(source connection.LogSource, sink EventSink, cfg *MonitorConfig, m *metrics.Manager) *EventMonitor {
	opts := SubscriptionOptions{
		Contract:         cfg.ContractAddress,
		ResubscribeDelay: cfg.ResubscribeDelay,
		Metrics:          m,
	}

	sigs := Signatures()
	subs := make([]*Subscription, 0, len(sigs))
	for _, sig := range sigs {
		subs = append(subs, NewSubscription(sig, source, sink, opts))
	}

	return &EventMonitor{
		config:         cfg,
		subscriptions:  subs,
		logger:         utils.ComponentLogger("monitor"),
		metricsManager: m,
	}
}

// Start launches every subscription in its own goroutine
func (em *EventMonitor) Start(ctx context.Context) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Monitor already running", "")
	}

	em.logger.WithField("contract", utils.AddressString(em.config.ContractAddress)).Info("Starting event monitor")

	runCtx, cancel := context.WithCancel(ctx)
	em.cancel = cancel
	em.running = true
	em.startTime = time.Now()

	for _, sub := range em.subscriptions {
		em.wg.Add(1)
		go func(sub *Subscription) {
			defer em.wg.Done()
			sub.Run(runCtx)
		}(sub)
	}

	if m := em.metricsManager.GetPrometheusMetrics(); m != nil {
		m.UpdateEventFiltersActive(len(em.subscriptions))
		m.UpdateComponentHealth("monitor", true)
	}

	em.logger.WithField("subscriptions", len(em.subscriptions)).Info("Event monitor started")
	return nil
}

// Stop cancels all subscriptions and waits for them to return
func (em *EventMonitor) Stop() error {
	em.mu.Lock()
	if !em.running {
		em.mu.Unlock()
		return nil
	}
	em.logger.Info("Stopping event monitor")
	em.running = false
	em.cancel()
	em.mu.Unlock()

	em.wg.Wait()

	if m := em.metricsManager.GetPrometheusMetrics(); m != nil {
		m.UpdateEventFiltersActive(0)
		m.UpdateComponentHealth("monitor", false)
	}

	em.logger.Info("Event monitor stopped")
	return nil
}

// IsRunning returns whether the monitor is running
func (em *EventMonitor) IsRunning() bool {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.running
}

// Subscriptions returns the managed subscriptions in signature order
func (em *EventMonitor) Subscriptions() []*Subscription {
	return append([]*Subscription(nil), em.subscriptions...)
}

// GetStats returns monitoring statistics
func (em *EventMonitor) GetStats() *MonitorStats {
	em.mu.RLock()
	stats := &MonitorStats{
		StartTime:       em.startTime,
		IsRunning:       em.running,
		ContractAddress: utils.AddressString(em.config.ContractAddress),
		Subscriptions:   make([]SubscriptionStats, 0, len(em.subscriptions)),
	}
	if em.running {
		stats.Uptime = time.Since(em.startTime)
	}
	em.mu.RUnlock()

	for _, sub := range em.subscriptions {
		s := sub.Stats()
		stats.TotalLogsReceived += s.LogsReceived
		stats.TotalEventsSaved += s.EventsSaved
		stats.TotalLogsDropped += s.LogsDropped
		stats.TotalStreamFailures += s.StreamFailures
		stats.Subscriptions = append(stats.Subscriptions, s)
	}

	return stats
}

// GetHealth reports healthy when every subscription is streaming
func (em *EventMonitor) GetHealth() *HealthStatus {
	health := &HealthStatus{
		Healthy:   true,
		Status:    "healthy",
		LastCheck: time.Now(),
		States:    make(map[string]string, len(em.subscriptions)),
	}

	if !em.IsRunning() {
		health.Healthy = false
		health.Status = "stopped"
		health.Issues = append(health.Issues, "Monitor is not running")
	}

	for _, sub := range em.subscriptions {
		state := sub.State()
		health.States[sub.Signature().Kind.String()] = state.String()
		if state != StateStreaming && health.Status != "stopped" {
			health.Healthy = false
			health.Status = "degraded"
			health.Issues = append(health.Issues, fmt.Sprintf("%s subscription is %s", sub.Signature().Name, state))
		}
	}

	return health
}
