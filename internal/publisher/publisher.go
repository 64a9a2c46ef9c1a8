// Package publisher forwards extracted events to named event channels. Each
// name has at most one listener; attaching a new one replaces the old.
package publisher

import (
	"log/slog"
	"sync"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/metrics"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
)

// Listener receives events published on one name.
type Listener = func(ev *payload.Event)

type slot struct {
	fn Listener
}

// Publisher is the set of single-slot event channels.
type Publisher struct {
	logger *slog.Logger

	mu    sync.RWMutex
	slots map[string]*slot
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the publisher logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// New creates a publisher with no listeners.
func New(opts ...Option) *Publisher {
	p := &Publisher{
		logger: slog.Default(),
		slots:  make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Attach makes fn the listener for name. The returned detach removes fn only
// if it is still the attached listener.
func (p *Publisher) Attach(name string, fn Listener) (detach func()) {
	s := &slot{fn: fn}

	p.mu.Lock()
	_, replaced := p.slots[name]
	p.slots[name] = s
	p.mu.Unlock()

	if replaced {
		p.logger.Debug("event listener replaced", "event", name)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.slots[name] == s {
				delete(p.slots, name)
			}
		})
	}
}

// Publish hands ev to the listener attached to ev.Name and reports whether
// one was there. Events with no listener are dropped.
func (p *Publisher) Publish(ev *payload.Event) bool {
	p.mu.RLock()
	s := p.slots[ev.Name]
	p.mu.RUnlock()

	if s == nil {
		metrics.EventsPublished.WithLabelValues("dropped").Inc()
		p.logger.Debug("no listener, event dropped", "event", ev.Name, "id", ev.ID)
		return false
	}
	s.fn(ev)
	metrics.EventsPublished.WithLabelValues("delivered").Inc()
	return true
}

// Listening reports whether name has a listener.
func (p *Publisher) Listening(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.slots[name]
	return ok
}
