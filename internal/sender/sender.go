// Package sender emits outbound broadcasts on the platform channel.
package sender

import (
	"context"
	"log/slog"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/metrics"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform"
)

// CodeSendBroadcast identifies send failures on the bridge and HTTP boundary.
const CodeSendBroadcast = "SEND_BROADCAST_ERROR"

// SendBroadcastError reports a payload the platform refused to emit.
type SendBroadcastError struct {
	Action string
	Err    error
}

func (e *SendBroadcastError) Error() string { return "error sending broadcast: " + e.Err.Error() }
func (e *SendBroadcastError) Unwrap() error { return e.Err }
func (e *SendBroadcastError) Code() string  { return CodeSendBroadcast }

// Sender builds single-field payloads and emits them.
type Sender struct {
	ch     platform.Channel
	logger *slog.Logger
}

// Option configures a Sender.
type Option func(*Sender)

// WithLogger sets the sender logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) { s.logger = l }
}

// New creates a sender emitting on ch.
func New(ch platform.Channel, opts ...Option) *Sender {
	s := &Sender{ch: ch, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send emits {key: value} tagged with action and category. An empty category
// becomes payload.DefaultCategory. Success says nothing about listeners.
func (s *Sender) Send(ctx context.Context, action, key, value, category string) (*payload.Payload, error) {
	p := payload.New(action, category, key, value)
	if err := s.ch.Emit(ctx, p); err != nil {
		metrics.BroadcastsSent.WithLabelValues("error").Inc()
		s.logger.Error("send broadcast failed", "action", action, "category", p.Category, "err", err)
		return nil, &SendBroadcastError{Action: action, Err: err}
	}
	metrics.BroadcastsSent.WithLabelValues("success").Inc()
	s.logger.Info("broadcast sent", "action", action, "category", p.Category, "id", p.ID)
	return p, nil
}
