// Package async runs blocking calls in the background and hands back a
// Future for the result.
package async

import "context"

// Future is the eventual result of one call.
type Future[T any] struct {
	val  T
	err  error
	done chan struct{}
}

// Go runs fn in its own goroutine. A context that is already cancelled
// resolves the future with ctx.Err() without calling fn.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		select {
		case <-ctx.Done():
			f.err = ctx.Err()
			return
		default:
		}
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Await blocks until the call finishes.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.val, f.err
}

// AwaitContext is Await bounded by ctx.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
