package connection

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/smartdevs17/event-indexer/internal/metrics"
)

// logSubscriber is the part of ethclient.Client used for push subscriptions
type logSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// subscriptionStream adapts an eth_subscribe("logs") subscription to LogStream
type subscriptionStream struct {
	sub      ethereum.Subscription
	logs     chan types.Log
	messages chan StreamMessage
	done     chan struct{}
	once     sync.Once
}

func newSubscriptionStream(ctx context.Context, client logSubscriber, query ethereum.FilterQuery, m *metrics.Manager) (*subscriptionStream, error) {
	logs := make(chan types.Log, 64)

	start := time.Now()
	sub, err := client.SubscribeFilterLogs(ctx, query, logs)
	recordRPC(m, "eth_subscribe", err, start)
	if err != nil {
		return nil, err
	}

	s := &subscriptionStream{
		sub:      sub,
		logs:     logs,
		messages: make(chan StreamMessage),
		done:     make(chan struct{}),
	}
	go s.forward()
	return s, nil
}

func (s *subscriptionStream) forward() {
	defer close(s.messages)

	for {
		select {
		case <-s.done:
			return
		case log := <-s.logs:
			if !s.emit(LogReceived(log)) {
				return
			}
		case err := <-s.sub.Err():
			s.emit(StreamEnded(err))
			return
		}
	}
}

func (s *subscriptionStream) emit(msg StreamMessage) bool {
	select {
	case s.messages <- msg:
		return true
	case <-s.done:
		return false
	}
}

func (s *subscriptionStream) Messages() <-chan StreamMessage {
	return s.messages
}

func (s *subscriptionStream) Close() {
	s.once.Do(func() {
		close(s.done)
		s.sub.Unsubscribe()
	})
}
