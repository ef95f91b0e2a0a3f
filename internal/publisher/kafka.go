package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/event-indexer/internal/config"
	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// Publisher forwards saved event records to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, record *models.EventRecord) error
	Close() error
}

// messageWriter is the part of kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per record to a single topic, keyed by event type
type KafkaPublisher struct {
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
	logger       *logrus.Entry
}

// NewKafkaPublisher creates a publisher for cfg
func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = "contract-events"
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	p := newKafkaPublisher(writer, cfg.Topic, cfg.WriteTimeout)
	p.logger.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("Kafka publisher configured")
	return p, nil
}

func newKafkaPublisher(writer messageWriter, topic string, writeTimeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{
		writer:       writer,
		topic:        topic,
		writeTimeout: writeTimeout,
		logger:       utils.ComponentLogger("publisher"),
	}
}

// Publish encodes record as JSON and writes it
func (p *KafkaPublisher) Publish(ctx context.Context, record *models.EventRecord) error {
	if record == nil {
		return utils.NewAppError(utils.ErrCodePublish, "Cannot publish nil record")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return utils.WrapAppError(utils.ErrCodePublish, "Failed to encode record", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(record.EventType.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(record.EventType.String())},
			{Key: "record_id", Value: []byte(strconv.FormatInt(record.ID, 10))},
		},
	})
	if err != nil {
		return utils.WrapAppError(utils.ErrCodePublish, "Failed to write record to kafka", err)
	}

	p.logger.WithFields(logrus.Fields{
		"id":         record.ID,
		"event_type": record.EventType,
		"topic":      p.topic,
	}).Debug("Record published")
	return nil
}

// Close flushes pending messages and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
