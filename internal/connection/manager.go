package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/event-indexer/internal/config"
	"github.com/smartdevs17/event-indexer/internal/metrics"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// Manager defines the connection manager interface
type Manager interface {
	GetRPCClient(ctx context.Context) (*rpc.Client, error)
	GetClient(ctx context.Context) (*ethclient.Client, error)
	CurrentURL() string
	ReportFailure(err error)
	HealthCheck(ctx context.Context) error
	IsConnected() bool
	Close() error
	Stats() ConnectionStats
}

// ConnectionManager dials the primary node URL and falls back to backups
type ConnectionManager struct {
	config          *config.NodeConfig
	urls            []string
	currentIndex    int
	rpcClient       *rpc.Client
	client          *ethclient.Client
	mu              sync.RWMutex
	logger          *logrus.Entry
	stats           ConnectionStats
	lastHealthCheck time.Time
	isHealthy       bool
	metricsManager  *metrics.Manager

	dial func(ctx context.Context, url string) (*rpc.Client, error)
}

// ConnectionStats holds connection statistics
type ConnectionStats struct {
	FailedDials     uint64    `json:"failed_dials"`
	ReportedErrors  uint64    `json:"reported_errors"`
	Reconnects      uint64    `json:"reconnects"`
	CurrentURL      string    `json:"current_url"`
	LastConnectedAt time.Time `json:"last_connected_at"`
	LastHealthCheck time.Time `json:"last_health_check"`
	IsHealthy       bool      `json:"is_healthy"`
	NetworkID       uint64    `json:"network_id"`
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(cfg *config.NodeConfig) *ConnectionManager {
	urls := []string{cfg.URL}
	urls = append(urls, cfg.BackupURLs...)

	return &ConnectionManager{
		config: cfg,
		urls:   urls,
		logger: utils.ComponentLogger("connection"),
		stats: ConnectionStats{
			CurrentURL: cfg.URL,
		},
		dial: rpc.DialContext,
	}
}

// SetMetricsManager enables connection metrics
func (cm *ConnectionManager) SetMetricsManager(m *metrics.Manager) {
	cm.metricsManager = m
}

// GetRPCClient returns the current RPC client, dialing or re-dialing when the
// connection has been reported broken and no longer answers.
func (cm *ConnectionManager) GetRPCClient(ctx context.Context) (*rpc.Client, error) {
	cm.mu.RLock()
	client := cm.rpcClient
	healthy := cm.isHealthy
	lastCheck := cm.lastHealthCheck
	cm.mu.RUnlock()

	if client == nil {
		return cm.connect(ctx)
	}

	if !healthy || time.Since(lastCheck) > time.Minute {
		if _, err := cm.quickHealthCheck(ctx, client); err != nil {
			cm.logger.WithError(err).Warn("Client health check failed, reconnecting")
			return cm.reconnect(ctx, client)
		}
		cm.mu.Lock()
		cm.isHealthy = true
		cm.lastHealthCheck = time.Now()
		cm.mu.Unlock()
	}

	return client, nil
}

// GetClient returns an ethclient over the current RPC client
func (cm *ConnectionManager) GetClient(ctx context.Context) (*ethclient.Client, error) {
	if _, err := cm.GetRPCClient(ctx); err != nil {
		return nil, err
	}
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.client, nil
}

// CurrentURL returns the URL of the node currently in use
func (cm *ConnectionManager) CurrentURL() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.stats.CurrentURL
}

// ReportFailure marks the connection suspect; the next GetRPCClient verifies it
func (cm *ConnectionManager) ReportFailure(err error) {
	cm.mu.Lock()
	cm.isHealthy = false
	cm.stats.ReportedErrors++
	cm.stats.IsHealthy = false
	endpoint := cm.stats.CurrentURL
	cm.mu.Unlock()

	if m := cm.metricsManager.GetPrometheusMetrics(); m != nil {
		m.RecordConnectionError(endpoint, "stream_failure")
	}
	cm.logger.WithError(err).Debug("Connection failure reported")
}

// connect establishes a new connection
func (cm *ConnectionManager) connect(ctx context.Context) (*rpc.Client, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	// Another caller may have connected while we waited for the lock
	if cm.rpcClient != nil {
		return cm.rpcClient, nil
	}

	attempts := cm.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	urls := cm.getAllURLs()

	for attempt := 0; attempt < attempts; attempt++ {
		for _, url := range urls {
			cm.logger.WithFields(logrus.Fields{"url": url, "attempt": attempt + 1}).Info("Attempting connection")

			client, err := cm.dialWithTimeout(ctx, url)
			if err != nil {
				cm.recordDialFailure(url, err)
				continue
			}

			// Verify the connection works
			networkID, err := cm.quickHealthCheck(ctx, client)
			if err != nil {
				client.Close()
				cm.recordDialFailure(url, err)
				continue
			}

			if cm.config.NetworkID != 0 && networkID != cm.config.NetworkID {
				client.Close()
				cm.recordDialFailure(url, fmt.Errorf("network ID mismatch: expected %d, got %d", cm.config.NetworkID, networkID))
				continue
			}

			cm.rpcClient = client
			cm.client = ethclient.NewClient(client)
			cm.currentIndex = cm.indexOf(url)
			cm.stats.CurrentURL = url
			cm.stats.LastConnectedAt = time.Now()
			cm.stats.NetworkID = networkID
			cm.stats.IsHealthy = true
			cm.isHealthy = true
			cm.lastHealthCheck = time.Now()

			cm.logger.WithFields(logrus.Fields{"url": url, "network_id": networkID}).Info("Successfully connected to node")
			return client, nil
		}

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cm.config.RetryDelay):
				// Continue to next attempt
			}
		}
	}

	return nil, utils.NewAppError(utils.ErrCodeConnection, "Failed to connect to any node",
		"All connection attempts exhausted")
}

// reconnect drops stale and dials again; a concurrent caller may already have replaced it
func (cm *ConnectionManager) reconnect(ctx context.Context, stale *rpc.Client) (*rpc.Client, error) {
	cm.mu.Lock()
	if cm.rpcClient == stale {
		stale.Close()
		cm.rpcClient = nil
		cm.client = nil
		cm.stats.Reconnects++
	}
	cm.mu.Unlock()

	return cm.connect(ctx)
}

func (cm *ConnectionManager) recordDialFailure(url string, err error) {
	cm.logger.WithError(err).WithField("url", url).Warn("Connection failed")
	cm.stats.FailedDials++
	if m := cm.metricsManager.GetPrometheusMetrics(); m != nil {
		m.RecordConnectionError(url, "dial_failed")
	}
}

// dialWithTimeout creates a connection with timeout
func (cm *ConnectionManager) dialWithTimeout(ctx context.Context, url string) (*rpc.Client, error) {
	timeout := cm.config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return cm.dial(dialCtx, url)
}

// quickHealthCheck asks the node for its network ID
func (cm *ConnectionManager) quickHealthCheck(ctx context.Context, client *rpc.Client) (uint64, error) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	networkID, err := ethclient.NewClient(client).NetworkID(checkCtx)
	cm.recordRPC("net_version", err, start)
	if err != nil {
		return 0, err
	}
	return networkID.Uint64(), nil
}

// HealthCheck verifies the node answers and reports the expected network
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	client, err := cm.GetRPCClient(ctx)
	if err != nil {
		return err
	}

	networkID, err := cm.quickHealthCheck(ctx, client)
	if err != nil {
		cm.ReportFailure(err)
		return utils.WrapAppError(utils.ErrCodeConnection, "Failed to get network ID", err)
	}

	if cm.config.NetworkID != 0 && networkID != cm.config.NetworkID {
		return utils.NewAppError(utils.ErrCodeConnection,
			"Network ID mismatch",
			fmt.Sprintf("expected %d, got %d", cm.config.NetworkID, networkID))
	}

	cm.mu.Lock()
	cm.stats.NetworkID = networkID
	cm.stats.LastHealthCheck = time.Now()
	cm.stats.IsHealthy = true
	cm.lastHealthCheck = time.Now()
	cm.isHealthy = true
	cm.mu.Unlock()

	return nil
}

// IsConnected returns whether the manager is connected
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.rpcClient != nil && cm.isHealthy
}

// Close closes the connection
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.rpcClient != nil {
		cm.rpcClient.Close()
		cm.rpcClient = nil
		cm.client = nil
	}

	cm.isHealthy = false
	cm.stats.IsHealthy = false
	cm.logger.Info("Connection manager closed")
	return nil
}

// Stats returns connection statistics
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.stats
}

func (cm *ConnectionManager) recordRPC(method string, err error, start time.Time) {
	m := cm.metricsManager.GetPrometheusMetrics()
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RecordRPCRequest(method, status, time.Since(start))
}

// getAllURLs returns all available URLs starting from current index
func (cm *ConnectionManager) getAllURLs() []string {
	if cm.currentIndex > 0 && cm.currentIndex < len(cm.urls) {
		rotated := make([]string, 0, len(cm.urls))
		rotated = append(rotated, cm.urls[cm.currentIndex:]...)
		rotated = append(rotated, cm.urls[:cm.currentIndex]...)
		return rotated
	}

	return cm.urls
}

func (cm *ConnectionManager) indexOf(url string) int {
	for i, u := range cm.urls {
		if u == url {
			return i
		}
	}
	return 0
}
