// Package notify delivers transient success and failure messages to the
// user. Sinks are fire-and-forget: they never return errors and never
// affect the caller's control flow.
package notify

import (
	"log/slog"
	"sync"

	"github.com/DukeRupert/fazenda/internal/metrics"
)

// Kind distinguishes success from failure messages.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Sink receives user-facing notifications.
type Sink interface {
	Success(msg string)
	Error(msg string)
}

// Message is one queued notification.
type Message struct {
	Kind Kind
	Text string
}

// =============================================================================
// Flash queue
// =============================================================================

// Flash queues messages for a browser session until the next render.
type Flash struct {
	mu       sync.Mutex
	messages []Message
	limit    int
	seq      uint64
}

// NewFlash creates a queue that keeps at most limit messages, dropping the
// oldest. A limit of zero keeps 10.
func NewFlash(limit int) *Flash {
	if limit <= 0 {
		limit = 10
	}
	return &Flash{limit: limit}
}

func (f *Flash) Success(msg string) { f.push(KindSuccess, msg) }
func (f *Flash) Error(msg string)   { f.push(KindError, msg) }

func (f *Flash) push(kind Kind, msg string) {
	metrics.Notified(string(kind))
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.messages = append(f.messages, Message{Kind: kind, Text: msg})
	if over := len(f.messages) - f.limit; over > 0 {
		f.messages = f.messages[over:]
	}
}

// Drain returns the queued messages in order and empties the queue.
func (f *Flash) Drain() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.messages
	f.messages = nil
	return out
}

// Len returns the number of queued messages.
func (f *Flash) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// Seq counts every message ever pushed, including dropped ones. Comparing
// two readings tells whether anything was reported in between.
func (f *Flash) Seq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

// =============================================================================
// Log sink and fan-out
// =============================================================================

// LogSink writes notifications to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs every message.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Success(msg string) {
	s.logger.Info("notification", "kind", KindSuccess, "message", msg)
}

func (s *LogSink) Error(msg string) {
	s.logger.Warn("notification", "kind", KindError, "message", msg)
}

// Multi fans a notification out to every sink.
type Multi []Sink

func (m Multi) Success(msg string) {
	for _, s := range m {
		s.Success(msg)
	}
}

func (m Multi) Error(msg string) {
	for _, s := range m {
		s.Error(msg)
	}
}
