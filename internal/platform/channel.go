// Package platform defines the boundary to the transport that actually
// carries broadcasts. The core never looks past this interface.
package platform

import (
	"context"
	"errors"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
)

var (
	// ErrClosed is returned by operations on a closed channel.
	ErrClosed = errors.New("platform channel closed")

	// ErrUnknownDriver is returned when no factory is registered under a name.
	ErrUnknownDriver = errors.New("unknown platform driver")

	// ErrNotArmed is returned when disarming an id that was never armed.
	ErrNotArmed = errors.New("receiver not armed")
)

// DeliverFunc receives payloads matching an armed filter. It is called on the
// channel's own goroutine and must not block for long.
type DeliverFunc func(p *payload.Payload)

// Channel is a platform broadcast transport.
type Channel interface {
	// Name identifies the driver ("memory", "redis").
	Name() string
	// Arm starts delivering payloads matching f to fn under id.
	Arm(ctx context.Context, id string, f payload.Filter, fn DeliverFunc) error
	// Disarm stops delivery for id.
	Disarm(ctx context.Context, id string) error
	// Emit publishes p to every armed receiver of its filter.
	Emit(ctx context.Context, p *payload.Payload) error
	// Close releases the transport.
	Close() error
}

// Pinger is implemented by channels that can report transport health.
type Pinger interface {
	Ping(ctx context.Context) error
}
