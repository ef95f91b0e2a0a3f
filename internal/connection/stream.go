package connection

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrStreamEnded is reported when a stream terminates without a cause
var ErrStreamEnded = errors.New("log stream ended")

// StreamMessage is one notification from a log stream: either a received
// log (Err == nil) or the terminal end of the stream (Err != nil).
type StreamMessage struct {
	Log types.Log
	Err error
}

// LogReceived wraps a delivered log
func LogReceived(log types.Log) StreamMessage {
	return StreamMessage{Log: log}
}

// StreamEnded wraps the terminal stream error
func StreamEnded(err error) StreamMessage {
	if err == nil {
		err = ErrStreamEnded
	}
	return StreamMessage{Err: err}
}

// Ended reports whether the message terminates the stream
func (m StreamMessage) Ended() bool {
	return m.Err != nil
}

// LogStream is a live stream of logs matching one filter.
// After an Ended message no further messages are delivered.
type LogStream interface {
	Messages() <-chan StreamMessage
	Close()
}

// LogSource registers log filters with a node
type LogSource interface {
	SubscribeLogs(ctx context.Context, query ethereum.FilterQuery) (LogStream, error)
}
