// Package bridge is the asynchronous operation surface: register, unregister
// and sendBroadcast each return a future that resolves to a value or one of
// the typed errors.
package bridge

import (
	"context"
	"errors"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/async"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/client"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/receiver"
)

// Module owns no state of its own; it fronts one registry, publisher and
// sender.
type Module struct {
	reg    client.Registrar
	events client.Attacher
	out    client.Broadcaster
}

// New creates a bridge module.
func New(reg client.Registrar, events client.Attacher, out client.Broadcaster) *Module {
	return &Module{reg: reg, events: events, out: out}
}

// RegisterOption adjusts the receiver.Spec built by Register.
type RegisterOption func(*receiver.Spec)

// Where narrows the receiver with a match expression.
func Where(expr string) RegisterOption {
	return func(s *receiver.Spec) { s.Where = expr }
}

// Source records who asked for the receiver. Defaults to "bridge".
func Source(src string) RegisterOption {
	return func(s *receiver.Spec) { s.Source = src }
}

// Register registers a receiver for filterName/category that extracts the
// ";"-joined actionNames and publishes them on eventName. The future resolves
// to the receiver's handle.
func (m *Module) Register(ctx context.Context, filterName, actionNames, eventName, category string, opts ...RegisterOption) *async.Future[int] {
	spec := receiver.Spec{
		Filter:   filterName,
		Category: category,
		Actions:  payload.ParseActions(actionNames),
		Event:    eventName,
		Source:   "bridge",
	}
	for _, opt := range opts {
		opt(&spec)
	}
	return async.Go(ctx, func(ctx context.Context) (int, error) {
		h, err := m.reg.Register(ctx, spec)
		return int(h), err
	})
}

// Unregister removes the receiver with the given handle.
func (m *Module) Unregister(ctx context.Context, slot int) *async.Future[bool] {
	return async.Go(ctx, func(ctx context.Context) (bool, error) {
		if err := m.reg.Unregister(ctx, receiver.Handle(slot)); err != nil {
			return false, err
		}
		return true, nil
	})
}

// SendBroadcast emits {key: value} tagged with actionName and category.
func (m *Module) SendBroadcast(ctx context.Context, actionName, key, value, category string) *async.Future[bool] {
	return async.Go(ctx, func(ctx context.Context) (bool, error) {
		if _, err := m.out.Send(ctx, actionName, key, value, category); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Bind creates a store for b and the coordinator that mounts it.
func (m *Module) Bind(b client.Binding, opts ...client.StoreOption) *client.Coordinator {
	return client.NewCoordinator(client.NewStore(b, m.out, opts...), m.reg, m.events)
}

// Code returns the boundary error code carried by err, or "" if it has none.
func Code(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
