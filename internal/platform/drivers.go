package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory opens a platform channel.
type Factory func(ctx context.Context) (Channel, error)

// Drivers maps driver names to their factories.
// It is safe for concurrent reads; Register should only be called at startup.
type Drivers struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewDrivers creates an empty driver table.
func NewDrivers() *Drivers {
	return &Drivers{factories: make(map[string]Factory)}
}

// Register adds a factory. Panics on duplicate name to surface misconfiguration early.
func (d *Drivers) Register(name string, f Factory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.factories[name]; exists {
		panic(fmt.Sprintf("platform drivers: duplicate driver %q", name))
	}
	d.factories[name] = f
}

// Open builds the channel registered under name.
func (d *Drivers) Open(ctx context.Context, name string) (Channel, error) {
	d.mu.RLock()
	f, ok := d.factories[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, name)
	}
	ch, err := f(ctx)
	if err != nil {
		return nil, fmt.Errorf("open platform %q: %w", name, err)
	}
	return ch, nil
}

// Names returns all registered driver names, sorted.
func (d *Drivers) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.factories))
	for k := range d.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
