package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/match"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/metrics"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform"
)

// Sink receives every payload the platform delivers to a receiver.
type Sink interface {
	Deliver(r *Receiver, p *payload.Payload)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r *Receiver, p *payload.Payload)

func (f SinkFunc) Deliver(r *Receiver, p *payload.Payload) { f(r, p) }

// Registry owns the set of live receivers for one platform channel.
// Register and Unregister are serialized; lookups may run concurrently.
type Registry struct {
	ch     platform.Channel
	sink   Sink
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	next     Handle
	byHandle map[Handle]*Receiver
	order    []Handle // insertion order
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry arming receivers on ch and handing
// their deliveries to sink.
func NewRegistry(ch platform.Channel, sink Sink, opts ...Option) *Registry {
	r := &Registry{
		ch:       ch,
		sink:     sink,
		logger:   slog.Default(),
		now:      time.Now,
		byHandle: make(map[Handle]*Receiver),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register arms a new receiver and returns its handle. On failure the
// registry is left exactly as it was.
func (r *Registry) Register(ctx context.Context, spec Spec) (Handle, error) {
	f := payload.NewFilter(spec.Filter, spec.Category)
	rcv, err := r.build(spec, f)
	if err != nil {
		return 0, r.registerFailed(f, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rcv.handle = r.next
	deliver := func(p *payload.Payload) {
		metrics.DeliveriesReceived.Inc()
		r.sink.Deliver(rcv, p)
	}
	if err := r.ch.Arm(ctx, armID(rcv.handle), f, deliver); err != nil {
		return 0, r.registerFailed(f, err)
	}
	rcv.active.Store(true)
	r.next++
	r.byHandle[rcv.handle] = rcv
	r.order = append(r.order, rcv.handle)

	metrics.ReceiversRegistered.WithLabelValues("success").Inc()
	metrics.ReceiversActive.Inc()
	r.logger.Info("receiver registered",
		"handle", rcv.handle, "filter", f.Name, "category", f.Category,
		"event", rcv.event, "actions", rcv.actions, "source", rcv.source)
	return rcv.handle, nil
}

func (r *Registry) build(spec Spec, f payload.Filter) (*Receiver, error) {
	if spec.Event == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrInvalidSpec)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rcv := &Receiver{
		filter:    f,
		actions:   slices.Clone(spec.Actions),
		event:     spec.Event,
		source:    spec.Source,
		createdAt: r.now().UTC(),
	}
	if spec.Where != "" {
		prog, err := match.Compile(spec.Where)
		if err != nil {
			return nil, fmt.Errorf("%w: where: %w", ErrInvalidSpec, err)
		}
		rcv.where = prog
	}
	return rcv, nil
}

func (r *Registry) registerFailed(f payload.Filter, err error) error {
	metrics.ReceiversRegistered.WithLabelValues("error").Inc()
	regErr := &RegisterError{Filter: f.Name, Err: err}
	r.logger.Error("register failed", "filter", f.Name, "category", f.Category, "err", err)
	return regErr
}

// Unregister disarms and removes the receiver. An unknown handle, or a
// platform that refuses to disarm, leaves the registry unchanged.
func (r *Registry) Unregister(ctx context.Context, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rcv, ok := r.byHandle[h]
	if !ok {
		return r.unregisterFailed(h, ErrInvalidHandle)
	}
	if err := r.ch.Disarm(ctx, armID(h)); err != nil {
		return r.unregisterFailed(h, err)
	}
	rcv.active.Store(false)
	delete(r.byHandle, h)
	if i := slices.Index(r.order, h); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}

	metrics.ReceiversUnregistered.WithLabelValues("success").Inc()
	metrics.ReceiversActive.Dec()
	r.logger.Info("receiver unregistered", "handle", h, "filter", rcv.filter.Name)
	return nil
}

func (r *Registry) unregisterFailed(h Handle, err error) error {
	metrics.ReceiversUnregistered.WithLabelValues("error").Inc()
	r.logger.Error("unregister failed", "handle", h, "err", err)
	return &UnregisterError{Handle: h, Err: err}
}

// Get returns the receiver for h.
func (r *Registry) Get(h Handle) (*Receiver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rcv, ok := r.byHandle[h]
	return rcv, ok
}

// List returns live receivers in registration order.
func (r *Registry) List() []*Receiver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Receiver, 0, len(r.order))
	for _, h := range r.order {
		out = append(out, r.byHandle[h])
	}
	return out
}

// Len returns the number of live receivers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHandle)
}

// Close unregisters every receiver, newest first, and reports the failures.
func (r *Registry) Close(ctx context.Context) error {
	handles := r.List()
	var errs []error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := r.Unregister(ctx, handles[i].Handle()); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close registry: %d receiver(s) failed to unregister: %w", len(errs), errs[0])
	}
	return nil
}

func armID(h Handle) string { return "rcv-" + h.String() }
