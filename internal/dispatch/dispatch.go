// Package dispatch moves platform deliveries through extraction to the event
// publisher on a bounded worker pool.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/extract"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/match"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/metrics"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/receiver"
)

// Publisher is the event channel side of the dispatcher.
type Publisher interface {
	Publish(ev *payload.Event) bool
}

// Config sizes the worker pool. Workers == 0 processes deliveries inline on
// the platform goroutine. QueueDepth is split evenly across the workers, and
// every delivery for one receiver goes to the same worker.
type Config struct {
	Workers    int
	QueueDepth int
}

type delivery struct {
	rcv *receiver.Receiver
	p   *payload.Payload
	at  time.Time
}

// Dispatcher implements receiver.Sink.
type Dispatcher struct {
	pub    Publisher
	logger *slog.Logger
	pool   *workerPool[delivery] // nil when inline
	down   atomic.Bool
}

var _ receiver.Sink = (*Dispatcher)(nil)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a dispatcher publishing to pub and starts its workers.
func New(ctx context.Context, pub Publisher, conf Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{pub: pub, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	if conf.Workers > 0 {
		depth := conf.QueueDepth
		if depth <= 0 {
			depth = conf.Workers * 10
		}
		d.pool = newWorkerPool(ctx, conf.Workers, depth, d.process)
	}
	return d
}

// Deliver queues p on the worker that owns r. When that worker's queue is
// full the delivery is dropped.
func (d *Dispatcher) Deliver(r *receiver.Receiver, p *payload.Payload) {
	w := delivery{rcv: r, p: p, at: time.Now()}
	if d.pool == nil {
		if d.down.Load() {
			d.drop(w, "shutdown")
			return
		}
		d.process(context.Background(), w)
		return
	}
	if !d.pool.Submit(int64(r.Handle()), w) {
		reason := "queue_full"
		if d.down.Load() {
			reason = "shutdown"
		}
		d.drop(w, reason)
		return
	}
	metrics.QueueUtilization.Set(d.QueueUtilization())
}

func (d *Dispatcher) process(_ context.Context, w delivery) {
	if !w.rcv.Active() {
		d.drop(w, "inactive")
		return
	}
	ok, err := w.rcv.Accepts(w.p)
	switch {
	case errors.Is(err, match.ErrFieldNotFound):
		d.drop(w, "filtered")
		return
	case err != nil:
		d.logger.Warn("where evaluation failed", "handle", w.rcv.Handle(), "err", err)
		d.drop(w, "where_error")
		return
	case !ok:
		d.drop(w, "filtered")
		return
	}

	fields, missing := extract.Extract(w.p, w.rcv.Actions())
	if len(missing) > 0 {
		d.logger.Debug("keys have no data", "handle", w.rcv.Handle(), "payload", w.p.ID, "keys", missing)
	}
	d.pub.Publish(payload.NewEvent(w.rcv.Event(), fields, w.p))
	metrics.DispatchDuration.Observe(float64(time.Since(w.at).Microseconds()) / 1000)
}

func (d *Dispatcher) drop(w delivery, reason string) {
	metrics.DeliveriesDropped.WithLabelValues(reason).Inc()
	d.logger.Debug("delivery dropped", "reason", reason, "handle", w.rcv.Handle(), "payload", w.p.ID)
}

// QueueUtilization returns queue used / capacity (0–1).
func (d *Dispatcher) QueueUtilization() float64 {
	if d.pool == nil || d.pool.QueueCap() == 0 {
		return 0
	}
	return float64(d.pool.QueueLen()) / float64(d.pool.QueueCap())
}

// Shutdown stops accepting deliveries and waits for queued ones to finish.
func (d *Dispatcher) Shutdown() {
	d.down.Store(true)
	if d.pool != nil {
		d.pool.Drain()
	}
	metrics.QueueUtilization.Set(0)
}
