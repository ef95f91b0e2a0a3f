package connection

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/event-indexer/internal/metrics"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// rpcCaller is the part of rpc.Client used for filter polling
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// FilterPoller installs a log filter on an HTTP node and polls it for changes.
// Any polling error, including node-side filter expiry, ends the stream.
type FilterPoller struct {
	caller   rpcCaller
	filterID string
	interval time.Duration
	logger   *logrus.Entry
	metrics  *metrics.Manager

	ctx      context.Context
	cancel   context.CancelFunc
	messages chan StreamMessage
	once     sync.Once

	mu        sync.RWMutex
	pollCount uint64
	lastPoll  time.Time
}

func newFilterPoller(ctx context.Context, caller rpcCaller, query ethereum.FilterQuery, interval time.Duration, m *metrics.Manager) (*FilterPoller, error) {
	var filterID string
	start := time.Now()
	err := caller.CallContext(ctx, &filterID, "eth_newFilter", toFilterArg(query))
	recordRPC(m, "eth_newFilter", err, start)
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	p := &FilterPoller{
		caller:   caller,
		filterID: filterID,
		interval: interval,
		logger:   utils.ComponentLogger("filter_poller").WithField("filter_id", filterID),
		metrics:  m,
		ctx:      pollCtx,
		cancel:   cancel,
		messages: make(chan StreamMessage),
	}
	go p.poll()
	return p, nil
}

func (p *FilterPoller) poll() {
	defer close(p.messages)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}

		logs, err := p.changes()
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.emit(StreamEnded(err))
			return
		}

		for _, log := range logs {
			if !p.emit(LogReceived(log)) {
				return
			}
		}
	}
}

func (p *FilterPoller) changes() ([]types.Log, error) {
	p.mu.Lock()
	p.pollCount++
	p.lastPoll = time.Now()
	p.mu.Unlock()

	var logs []types.Log
	start := time.Now()
	err := p.caller.CallContext(p.ctx, &logs, "eth_getFilterChanges", p.filterID)
	recordRPC(p.metrics, "eth_getFilterChanges", err, start)
	return logs, err
}

func (p *FilterPoller) emit(msg StreamMessage) bool {
	select {
	case p.messages <- msg:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Messages returns the stream channel; it is closed once the poller stops
func (p *FilterPoller) Messages() <-chan StreamMessage {
	return p.messages
}

// Close stops polling and uninstalls the filter
func (p *FilterPoller) Close() {
	p.once.Do(func() {
		p.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var removed bool
		start := time.Now()
		err := p.caller.CallContext(ctx, &removed, "eth_uninstallFilter", p.filterID)
		recordRPC(p.metrics, "eth_uninstallFilter", err, start)
		if err != nil {
			p.logger.WithError(err).Debug("Failed to uninstall filter")
		}
	})
}

// PollCount returns how many times the filter has been polled
func (p *FilterPoller) PollCount() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pollCount
}

// toFilterArg builds eth_newFilter params; an unset range means "latest"
func toFilterArg(q ethereum.FilterQuery) map[string]interface{} {
	arg := map[string]interface{}{
		"address":   q.Addresses,
		"topics":    q.Topics,
		"fromBlock": blockArg(q.FromBlock),
		"toBlock":   blockArg(q.ToBlock),
	}
	return arg
}

func blockArg(n *big.Int) string {
	if n == nil {
		return "latest"
	}
	return hexutil.EncodeBig(n)
}
