package accountcore

import (
	"io"

	"github.com/MrEthical07/accountcore/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one security-relevant record. It never carries tokens,
// codes or passwords.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// LoggerSink writes each event as one structured zap entry.
type LoggerSink = audit.LoggerSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing newline-delimited JSON to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLoggerSink returns a sink logging through logger.Named("audit").
func NewLoggerSink(logger *zap.Logger) *LoggerSink {
	return audit.NewLoggerSink(logger)
}
