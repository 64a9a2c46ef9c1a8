package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/receiver"
)

// Registrar is the registry as seen by a coordinator.
type Registrar interface {
	Register(ctx context.Context, spec receiver.Spec) (receiver.Handle, error)
	Unregister(ctx context.Context, h receiver.Handle) error
}

// Attacher installs the single listener for an event name.
type Attacher interface {
	Attach(name string, fn func(ev *payload.Event)) (detach func())
}

// Phase is the registration state of a coordinator.
type Phase int32

const (
	Unregistered Phase = iota
	Registering
	Registered
	Unregistering
)

func (p Phase) String() string {
	switch p {
	case Unregistered:
		return "unregistered"
	case Registering:
		return "registering"
	case Registered:
		return "registered"
	case Unregistering:
		return "unregistering"
	default:
		return "unknown"
	}
}

// Coordinator registers its store's binding on Mount and unregisters it on
// Unmount. Repeated mounts are no-ops.
type Coordinator struct {
	store  *Store
	reg    Registrar
	events Attacher
	logger *slog.Logger

	opMu   sync.Mutex // serializes Mount and Unmount
	phase  atomic.Int32
	detach func()
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator binds store to a registry and an event publisher.
func NewCoordinator(store *Store, reg Registrar, events Attacher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{store: store, reg: reg, events: events, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Store() *Store { return c.store }
func (c *Coordinator) Phase() Phase  { return Phase(c.phase.Load()) }

// Mount registers the binding unless it is already registered. The listener
// is attached before Register so nothing delivered after it returns is lost.
func (c *Coordinator) Mount(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Phase() != Unregistered {
		return nil
	}
	c.phase.Store(int32(Registering))

	b := c.store.Binding()
	detach := c.events.Attach(b.Event, c.store.SetData)
	h, err := c.reg.Register(ctx, b.Spec())
	if err != nil {
		detach()
		c.phase.Store(int32(Unregistered))
		return err
	}
	c.detach = detach
	c.store.SetReceiverHandle(h)
	c.phase.Store(int32(Registered))
	c.logger.Debug("subscription mounted", "event", b.Event, "handle", h)
	return nil
}

// Unmount detaches the listener and unregisters. The handle is cleared even
// when Unregister fails; the failure is returned.
func (c *Coordinator) Unmount(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Phase() != Registered {
		return nil
	}
	c.phase.Store(int32(Unregistering))

	if c.detach != nil {
		c.detach()
		c.detach = nil
	}
	h, _ := c.store.Handle()
	err := c.reg.Unregister(ctx, h)
	c.store.ClearReceiverHandle()
	c.phase.Store(int32(Unregistered))

	if err != nil {
		c.logger.Warn("unregister failed on unmount, handle cleared", "handle", h, "err", err)
		return err
	}
	c.logger.Debug("subscription unmounted", "handle", h)
	return nil
}
