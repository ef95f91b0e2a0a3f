package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/event-indexer/internal/connection"
	"github.com/smartdevs17/event-indexer/internal/metrics"
	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// DefaultResubscribeDelay is the wait between a failed stream and the next subscribe
const DefaultResubscribeDelay = 5 * time.Second

// SubscriptionState is the lifecycle position of one subscription
type SubscriptionState int

const (
	StateConnecting SubscriptionState = iota
	StateStreaming
	StateFailed
	StateStopped
)

func (s SubscriptionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// EventSink receives mapped records
type EventSink interface {
	SaveEvent(ctx context.Context, record *models.EventRecord) (*models.EventRecord, error)
}

// SubscriptionOptions configures a Subscription. Zero values select defaults.
type SubscriptionOptions struct {
	Contract         common.Address
	ResubscribeDelay time.Duration
	Decoder          Decoder
	Mapper           EventMapper
	Metrics          *metrics.Manager
}

// SubscriptionStats describes one subscription
type SubscriptionStats struct {
	EventType       models.EventType `json:"event_type"`
	Signature       string           `json:"signature"`
	Topic           string           `json:"topic"`
	State           string           `json:"state"`
	LogsReceived    uint64           `json:"logs_received"`
	EventsSaved     uint64           `json:"events_saved"`
	LogsDropped     uint64           `json:"logs_dropped"`
	StreamFailures  uint64           `json:"stream_failures"`
	Resubscriptions uint64           `json:"resubscriptions"`
	LastEventTime   *time.Time       `json:"last_event_time,omitempty"`
	LastError       *string          `json:"last_error,omitempty"`
	LastErrorTime   *time.Time       `json:"last_error_time,omitempty"`
}

// Subscription keeps one log filter alive on the node and routes each matching
// log through decode, map and save. Stream failures are retried forever after
// ResubscribeDelay; per-log failures drop the log and keep streaming.
type Subscription struct {
	sig     *Signature
	source  connection.LogSource
	sink    EventSink
	query   ethereum.FilterQuery
	delay   time.Duration
	decoder Decoder
	mapper  EventMapper
	metrics *metrics.Manager
	logger  *logrus.Entry

	// wait blocks for d or until ctx ends; false means ctx ended
	wait func(ctx context.Context, d time.Duration) bool

	mu    sync.RWMutex
	state SubscriptionState
	stats SubscriptionStats
}

// NewSubscription creates a subscription for sig on opts.Contract
func NewSubscription(sig *Signature, source connection.LogSource, sink EventSink, opts SubscriptionOptions) *Subscription {
	if opts.ResubscribeDelay <= 0 {
		opts.ResubscribeDelay = DefaultResubscribeDelay
	}
	if opts.Decoder == nil {
		opts.Decoder = NewLogDecoder()
	}
	if opts.Mapper == nil {
		opts.Mapper = MapEvent
	}

	return &Subscription{
		sig:     sig,
		source:  source,
		sink:    sink,
		query:   sig.FilterQuery(opts.Contract),
		delay:   opts.ResubscribeDelay,
		decoder: opts.Decoder,
		mapper:  opts.Mapper,
		metrics: opts.Metrics,
		logger: utils.ComponentLogger("subscription").WithFields(logrus.Fields{
			"event":    sig.Name,
			"contract": utils.AddressString(opts.Contract),
		}),
		wait:  sleepContext,
		state: StateConnecting,
		stats: SubscriptionStats{
			EventType: sig.Kind,
			Signature: sig.String(),
			Topic:     sig.ID().Hex(),
		},
	}
}

// Run subscribes and processes logs until ctx is cancelled, then returns in
// state Stopped.
func (s *Subscription) Run(ctx context.Context) {
	defer s.setState(StateStopped)

	for ctx.Err() == nil {
		s.setState(StateConnecting)

		err := s.stream(ctx)
		if ctx.Err() != nil {
			return
		}

		s.fail(err)
		if !s.wait(ctx, s.delay) {
			return
		}

		s.mu.Lock()
		s.stats.Resubscriptions++
		s.mu.Unlock()
		if m := s.metrics.GetPrometheusMetrics(); m != nil {
			m.RecordResubscription(s.sig.Kind.String())
		}
		s.logger.Info("Resubscribing")
	}
}

// stream subscribes once and consumes the stream until it ends
func (s *Subscription) stream(ctx context.Context) error {
	stream, err := s.source.SubscribeLogs(ctx, s.query)
	if err != nil {
		return err
	}
	defer stream.Close()

	s.setState(StateStreaming)
	s.logger.WithField("topic", s.sig.ID().Hex()).Info("Subscribed to event")

	messages := stream.Messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return connection.ErrStreamEnded
			}
			if msg.Ended() {
				return msg.Err
			}
			s.handleLog(ctx, msg.Log)
		}
	}
}

func (s *Subscription) fail(err error) {
	s.setState(StateFailed)

	now := time.Now()
	errMsg := err.Error()
	s.mu.Lock()
	s.stats.StreamFailures++
	s.stats.LastError = &errMsg
	s.stats.LastErrorTime = &now
	s.mu.Unlock()

	if m := s.metrics.GetPrometheusMetrics(); m != nil {
		m.RecordStreamFailure(s.sig.Kind.String())
	}
	s.logger.WithError(err).WithField("retry_in", s.delay).Error("Event stream failed")
}

// handleLog runs one log through the pipeline; failures drop the log
func (s *Subscription) handleLog(ctx context.Context, log types.Log) {
	start := time.Now()
	logger := s.logger.WithFields(logrus.Fields{
		"block":     log.BlockNumber,
		"tx_hash":   log.TxHash.Hex(),
		"log_index": log.Index,
	})

	s.mu.Lock()
	s.stats.LogsReceived++
	s.mu.Unlock()

	decoded, err := s.decoder.Decode(log, s.sig)
	if err != nil {
		s.drop(logger, "decode_error", err, start)
		return
	}

	record, err := s.mapper(decoded)
	if err != nil {
		s.drop(logger, "map_error", err, start)
		return
	}

	saved, err := s.sink.SaveEvent(ctx, record)
	if err != nil {
		s.drop(logger, "storage_error", err, start)
		return
	}
	if saved == nil {
		saved = record
	}

	now := time.Now()
	s.mu.Lock()
	s.stats.EventsSaved++
	s.stats.LastEventTime = &now
	s.mu.Unlock()

	if m := s.metrics.GetPrometheusMetrics(); m != nil {
		m.RecordEventProcessed(s.sig.Kind.String(), "saved", time.Since(start))
	}
	logger.WithFields(logrus.Fields(saved.Summary())).Info("Event saved")
}

func (s *Subscription) drop(logger *logrus.Entry, status string, err error, start time.Time) {
	now := time.Now()
	errMsg := err.Error()
	s.mu.Lock()
	s.stats.LogsDropped++
	s.stats.LastError = &errMsg
	s.stats.LastErrorTime = &now
	s.mu.Unlock()

	if m := s.metrics.GetPrometheusMetrics(); m != nil {
		m.RecordEventProcessed(s.sig.Kind.String(), status, time.Since(start))
	}
	logger.WithError(err).WithField("reason", status).Warn("Dropping log")
}

func (s *Subscription) setState(state SubscriptionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	if m := s.metrics.GetPrometheusMetrics(); m != nil {
		m.UpdateSubscriptionState(s.sig.Kind.String(), int(state))
	}
}

// State returns the current lifecycle state
func (s *Subscription) State() SubscriptionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Signature returns the event this subscription follows
func (s *Subscription) Signature() *Signature {
	return s.sig
}

// Stats returns a snapshot of the subscription counters
func (s *Subscription) Stats() SubscriptionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := s.stats
	stats.State = s.state.String()
	return stats
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
