// Package redis carries broadcasts over Redis pub/sub. Each filter key maps
// to one Redis channel; one PubSub connection serves every armed receiver.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform"
)

// DefaultPrefix namespaces every Redis channel this package touches.
const DefaultPrefix = "broadcastevent:"

type armed struct {
	id string
	fn platform.DeliverFunc
}

// Channel is a platform.Channel backed by Redis pub/sub.
type Channel struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger

	mu      sync.RWMutex
	ps      *goredis.PubSub
	subs    map[string][]armed         // redis channel → receivers
	keyOf   map[string]string          // id → redis channel
	ready   map[string]chan struct{}   // closed once Redis confirms the subscription
	pending map[string][]chan struct{} // unconfirmed SUBSCRIBEs, oldest first
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

var _ platform.Channel = (*Channel)(nil)

// Option configures a Channel.
type Option func(*Channel)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(c *Channel) { c.prefix = prefix }
}

// WithLogger sets the logger used for undecodable messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// New wraps client. The caller keeps ownership of client.
func New(client *goredis.Client, opts ...Option) *Channel {
	c := &Channel{
		client: client,
		prefix: DefaultPrefix,
		logger: slog.Default(),
		subs:    make(map[string][]armed),
		keyOf:   make(map[string]string),
		ready:   make(map[string]chan struct{}),
		pending: make(map[string][]chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) Name() string { return "redis" }

// ChannelName is the Redis channel a filter maps to.
func (c *Channel) ChannelName(f payload.Filter) string {
	return c.prefix + f.Key()
}

// Arm returns once Redis has confirmed the subscription for f, so anything
// published after it returns is routed to fn. ctx bounds the wait.
func (c *Channel) Arm(ctx context.Context, id string, f payload.Filter, fn platform.DeliverFunc) error {
	if err := f.Validate(); err != nil {
		return err
	}
	name := c.ChannelName(f)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return platform.ErrClosed
	}
	if _, exists := c.keyOf[id]; exists {
		c.mu.Unlock()
		return fmt.Errorf("redis: id %q already armed", id)
	}
	ready, ok := c.ready[name]
	if !ok {
		ready = make(chan struct{})
		if err := c.subscribe(ctx, name); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("redis subscribe %s: %w", name, err)
		}
		c.ready[name] = ready
		c.pending[name] = append(c.pending[name], ready)
	}
	c.subs[name] = append(c.subs[name], armed{id: id, fn: fn})
	c.keyOf[id] = name
	c.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-c.done:
		return platform.ErrClosed
	case <-ctx.Done():
		_ = c.Disarm(context.WithoutCancel(ctx), id)
		return fmt.Errorf("redis subscribe %s: %w", name, ctx.Err())
	}
}

// subscribe opens the shared PubSub on first use. Callers hold c.mu.
func (c *Channel) subscribe(ctx context.Context, name string) error {
	if c.ps == nil {
		ps := c.client.Subscribe(ctx)
		if err := ps.Subscribe(ctx, name); err != nil {
			_ = ps.Close()
			return err
		}
		c.ps = ps
		msgs := ps.ChannelWithSubscriptions()
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.run(msgs)
		}()
		return nil
	}
	return c.ps.Subscribe(ctx, name)
}

func (c *Channel) Disarm(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.keyOf[id]
	if !ok {
		return fmt.Errorf("redis: %w: %q", platform.ErrNotArmed, id)
	}
	list := c.subs[name]
	if len(list) == 1 && c.ps != nil {
		if err := c.ps.Unsubscribe(ctx, name); err != nil {
			return fmt.Errorf("redis unsubscribe %s: %w", name, err)
		}
	}
	for i, a := range list {
		if a.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(c.subs, name)
		delete(c.ready, name)
	} else {
		c.subs[name] = list
	}
	delete(c.keyOf, id)
	return nil
}

func (c *Channel) Emit(ctx context.Context, p *payload.Payload) error {
	f := p.Filter()
	if err := f.Validate(); err != nil {
		return err
	}
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return platform.ErrClosed
	}
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if err := c.client.Publish(ctx, c.ChannelName(f), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (c *Channel) run(msgs <-chan interface{}) {
	for m := range msgs {
		switch msg := m.(type) {
		case *goredis.Subscription:
			if msg.Kind == "subscribe" {
				c.confirm(msg.Channel)
			}
		case *goredis.Message:
			c.route(msg)
		}
	}
}

// confirm wakes the oldest Arm waiting on name.
func (c *Channel) confirm(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.pending[name]
	if len(q) == 0 {
		return
	}
	close(q[0])
	if len(q) == 1 {
		delete(c.pending, name)
	} else {
		c.pending[name] = q[1:]
	}
}

func (c *Channel) route(msg *goredis.Message) {
	p, err := Decode([]byte(msg.Payload))
	if err != nil {
		c.logger.Warn("redis: dropping message", "channel", msg.Channel, "err", err)
		return
	}
	c.mu.RLock()
	targets := c.subs[msg.Channel]
	c.mu.RUnlock()
	for _, a := range targets {
		a.fn(p)
	}
}

func (c *Channel) Ping(ctx context.Context) error {
	return Healthcheck(c.client)(ctx)
}

// Close stops the subscriber goroutine. The client stays open.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	ps := c.ps
	c.ps = nil
	c.subs = make(map[string][]armed)
	c.keyOf = make(map[string]string)
	c.ready = make(map[string]chan struct{})
	c.pending = make(map[string][]chan struct{})
	c.mu.Unlock()

	var err error
	if ps != nil {
		err = ps.Close()
	}
	c.wg.Wait()
	return err
}
