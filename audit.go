package rollAuth

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/rollAuth/internal/audit"
)

// AuditEvent is one roll-in, poll or logout record delivered to an AuditSink.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events into a channel readable through Events.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs each event through a slog.Logger.
type SlogSink = internalaudit.SlogSink

// MultiSink fans out to several sinks in order.
type MultiSink = internalaudit.MultiSink

// NewChannelSink describes the newchannelsink operation and its observable behavior.
//
// A non-positive buffer is raised to 1.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
//
// Writes are serialized; the writer does not need to be goroutine safe.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink that logs every event at info level.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}
