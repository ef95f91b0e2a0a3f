package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/event-indexer/internal/config"
	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
	deadline bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func depositRecord() *models.EventRecord {
	from := "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	return &models.EventRecord{
		ID:          12,
		EventType:   models.EventTypeDeposit,
		Amount:      big.NewInt(1000),
		FromAddress: &from,
	}
}

func TestKafkaPublisherWritesRecord(t *testing.T) {
	writer := &fakeWriter{}
	p := newKafkaPublisher(writer, "contract-events", time.Second)

	require.NoError(t, p.Publish(context.Background(), depositRecord()))
	require.Len(t, writer.messages, 1)
	assert.True(t, writer.deadline)

	msg := writer.messages[0]
	assert.Equal(t, "DEPOSIT", string(msg.Key))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "DEPOSIT", body["eventType"])
	assert.Equal(t, float64(12), body["id"])
	assert.Equal(t, float64(1000), body["amount"])
	assert.Nil(t, body["toAddress"])

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "DEPOSIT", headers["event_type"])
	assert.Equal(t, "12", headers["record_id"])

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{err: errors.New("leader not available")}, "contract-events", time.Second)

	err := p.Publish(context.Background(), depositRecord())
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodePublish))
	assert.Contains(t, err.Error(), "leader not available")
}

func TestKafkaPublisherRejectsNilRecord(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{}, "contract-events", time.Second)
	assert.Error(t, p.Publish(context.Background(), nil))
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(config.KafkaConfig{})
	assert.Error(t, err)

	p, err := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	assert.Equal(t, "contract-events", p.topic)
	assert.Equal(t, 10*time.Second, p.writeTimeout)
	require.NoError(t, p.Close())
}
