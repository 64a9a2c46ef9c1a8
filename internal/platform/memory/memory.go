// Package memory is an in-process platform channel. Emit hands the payload to
// every receiver armed on the same filter key, synchronously, in arm order.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform"
)

type armed struct {
	id string
	fn platform.DeliverFunc
}

// Channel is the in-process notification centre.
type Channel struct {
	mu     sync.RWMutex
	byKey  map[string][]armed
	keyOf  map[string]string // id → filter key
	closed bool
}

var _ platform.Channel = (*Channel)(nil)

// New creates an empty channel.
func New() *Channel {
	return &Channel{
		byKey: make(map[string][]armed),
		keyOf: make(map[string]string),
	}
}

func (c *Channel) Name() string { return "memory" }

func (c *Channel) Arm(_ context.Context, id string, f payload.Filter, fn platform.DeliverFunc) error {
	if err := f.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return platform.ErrClosed
	}
	if _, exists := c.keyOf[id]; exists {
		return fmt.Errorf("memory: id %q already armed", id)
	}
	key := f.Key()
	c.byKey[key] = append(c.byKey[key], armed{id: id, fn: fn})
	c.keyOf[id] = key
	return nil
}

func (c *Channel) Disarm(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.keyOf[id]
	if !ok {
		return fmt.Errorf("memory: %w: %q", platform.ErrNotArmed, id)
	}
	delete(c.keyOf, id)
	list := c.byKey[key]
	for i, a := range list {
		if a.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(c.byKey, key)
	} else {
		c.byKey[key] = list
	}
	return nil
}

func (c *Channel) Emit(_ context.Context, p *payload.Payload) error {
	f := p.Filter()
	if err := f.Validate(); err != nil {
		return err
	}
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return platform.ErrClosed
	}
	targets := c.byKey[f.Key()]
	c.mu.RUnlock()

	// targets is never mutated in place, so it is safe to walk unlocked.
	for _, a := range targets {
		a.fn(p)
	}
	return nil
}

// Armed returns how many receivers are armed.
func (c *Channel) Armed() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keyOf)
}

func (c *Channel) Ping(context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return platform.ErrClosed
	}
	return nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.byKey = make(map[string][]armed)
	c.keyOf = make(map[string]string)
	return nil
}
