package monitor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/event-indexer/internal/connection"
	"github.com/smartdevs17/event-indexer/internal/metrics"
	"github.com/smartdevs17/event-indexer/internal/models"
)

// topicSource serves one shared stream per event topic; failing topics never subscribe
type topicSource struct {
	mu       sync.Mutex
	streams  map[common.Hash]*fakeStream
	failing  map[common.Hash]bool
	attempts map[common.Hash]int
}

func newTopicSource() *topicSource {
	src := &topicSource{
		streams:  make(map[common.Hash]*fakeStream),
		failing:  make(map[common.Hash]bool),
		attempts: make(map[common.Hash]int),
	}
	for _, sig := range Signatures() {
		src.streams[sig.ID()] = newFakeStream(8)
	}
	return src
}

func (s *topicSource) SubscribeLogs(ctx context.Context, q ethereum.FilterQuery) (connection.LogStream, error) {
	topic := q.Topics[0][0]

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[topic]++
	if s.failing[topic] {
		return nil, errors.New("filter not found")
	}
	return &sharedStream{ch: s.streams[topic].ch}, nil
}

func (s *topicSource) attemptsFor(sig *Signature) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[sig.ID()]
}

// sharedStream reads a channel it does not own
type sharedStream struct {
	ch chan connection.StreamMessage
}

func (s *sharedStream) Messages() <-chan connection.StreamMessage { return s.ch }
func (s *sharedStream) Close()                                   {}

func TestEventMonitorSubscriptionsAreIndependent(t *testing.T) {
	source := newTopicSource()
	source.failing[DepositSignature.ID()] = true
	sink := &recordingSink{}
	m := metrics.NewManager()

	em := NewEventMonitorWithOptions(source, sink, &MonitorConfig{
		ContractAddress:  contract,
		ResubscribeDelay: 10 * time.Millisecond,
	}, m)

	require.NoError(t, em.Start(context.Background()))
	assert.True(t, em.IsRunning())
	assert.Error(t, em.Start(context.Background()))

	source.streams[WithdrawSignature.ID()].ch <- connection.LogReceived(withdrawLog(bob, big.NewInt(9)))
	source.streams[OwnershipTransferredSignature.ID()].ch <- connection.LogReceived(ownershipLog(alice, bob))

	require.Eventually(t, func() bool { return sink.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return source.attemptsFor(DepositSignature) >= 3 }, 2*time.Second, 5*time.Millisecond)

	assert.Len(t, sink.byType(models.EventTypeWithdraw), 1)
	assert.Len(t, sink.byType(models.EventTypeOwnershipTransferred), 1)
	assert.Empty(t, sink.byType(models.EventTypeDeposit))

	health := em.GetHealth()
	assert.False(t, health.Healthy)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "streaming", health.States["WITHDRAW"])
	assert.Equal(t, "streaming", health.States["OWNERSHIPTRANSFERRED"])
	assert.NotEqual(t, "streaming", health.States["DEPOSIT"])

	stats := em.GetStats()
	assert.True(t, stats.IsRunning)
	assert.Equal(t, "0x5fbdb2315678afecb367f032d93f642f64180aa3", stats.ContractAddress)
	assert.Equal(t, uint64(2), stats.TotalEventsSaved)
	assert.GreaterOrEqual(t, stats.TotalStreamFailures, uint64(2))
	require.Len(t, stats.Subscriptions, 3)
	assert.Equal(t, models.EventTypeDeposit, stats.Subscriptions[0].EventType)

	require.NoError(t, em.Stop())
	assert.False(t, em.IsRunning())
	for _, sub := range em.Subscriptions() {
		assert.Equal(t, StateStopped, sub.State())
	}
	assert.Equal(t, "stopped", em.GetHealth().Status)
	assert.NoError(t, em.Stop())

	pm := m.GetPrometheusMetrics()
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.EventsProcessedTotal.WithLabelValues("WITHDRAW", "saved")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(pm.StreamFailuresTotal.WithLabelValues("DEPOSIT")), float64(2))
}

func TestEventMonitorHealthyWhenAllStreaming(t *testing.T) {
	em := NewEventMonitor(newTopicSource(), &recordingSink{}, &MonitorConfig{ContractAddress: contract})

	require.NoError(t, em.Start(context.Background()))
	defer em.Stop()

	require.Eventually(t, func() bool { return em.GetHealth().Healthy }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "healthy", em.GetHealth().Status)
	assert.Empty(t, em.GetHealth().Issues)
}

func TestEventMonitorStopsWithParentContext(t *testing.T) {
	em := NewEventMonitor(newTopicSource(), &recordingSink{}, &MonitorConfig{ContractAddress: contract})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, em.Start(ctx))

	cancel()
	require.Eventually(t, func() bool {
		for _, sub := range em.Subscriptions() {
			if sub.State() != StateStopped {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, em.Stop())
}
