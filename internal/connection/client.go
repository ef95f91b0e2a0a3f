package connection

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/event-indexer/internal/metrics"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// NodeClient opens log streams on the node held by a Manager.
// Websocket endpoints use eth_subscribe; HTTP endpoints poll an installed filter.
type NodeClient struct {
	manager        Manager
	pollInterval   time.Duration
	logger         *logrus.Entry
	metricsManager *metrics.Manager
}

// NewNodeClient creates a node client
func NewNodeClient(manager Manager, pollInterval time.Duration) *NodeClient {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &NodeClient{
		manager:      manager,
		pollInterval: pollInterval,
		logger:       utils.ComponentLogger("node_client"),
	}
}

// SetMetricsManager enables RPC metrics for opened streams
func (nc *NodeClient) SetMetricsManager(m *metrics.Manager) {
	nc.metricsManager = m
}

// SubscribeLogs registers query with the node and returns the resulting stream
func (nc *NodeClient) SubscribeLogs(ctx context.Context, query ethereum.FilterQuery) (LogStream, error) {
	rpcClient, err := nc.manager.GetRPCClient(ctx)
	if err != nil {
		return nil, err
	}

	url := nc.manager.CurrentURL()
	logger := nc.logger.WithFields(logrus.Fields{
		"url":    url,
		"topics": query.Topics,
	})

	var stream LogStream
	if IsWebSocketURL(url) {
		stream, err = newSubscriptionStream(ctx, ethclient.NewClient(rpcClient), query, nc.metricsManager)
	} else {
		stream, err = newFilterPoller(ctx, rpcClient, query, nc.pollInterval, nc.metricsManager)
	}
	if err != nil {
		nc.manager.ReportFailure(err)
		return nil, utils.WrapAppError(utils.ErrCodeStream, "Failed to register log filter", err)
	}

	logger.Debug("Log stream opened")
	return stream, nil
}

// IsWebSocketURL reports whether url uses a websocket scheme
func IsWebSocketURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://")
}

func recordRPC(m *metrics.Manager, method string, err error, start time.Time) {
	pm := m.GetPrometheusMetrics()
	if pm == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	pm.RecordRPCRequest(method, status, time.Since(start))
}
