package dispatch

import (
	"context"
	"sync"
)

// workerPool is a fixed-size goroutine pool. Each worker owns a bounded
// queue, and items submitted with the same key always land on the same
// worker, so they are processed in submission order.
type workerPool[T any] struct {
	queues  []chan T
	process func(ctx context.Context, t T)
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// newWorkerPool starts n goroutines sharing a total queue capacity of cap.
func newWorkerPool[T any](ctx context.Context, n, cap int, fn func(context.Context, T)) *workerPool[T] {
	per := (cap + n - 1) / n
	if per < 1 {
		per = 1
	}
	p := &workerPool[T]{
		queues:  make([]chan T, n),
		process: fn,
	}
	for i := range p.queues {
		q := make(chan T, per)
		p.queues[i] = q
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx, q)
		}()
	}
	return p
}

func (p *workerPool[T]) run(ctx context.Context, q <-chan T) {
	for {
		select {
		case t, ok := <-q:
			if !ok {
				return
			}
			p.process(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

// Submit enqueues t on the worker owning key without blocking. It returns
// false if that worker's queue is full or the pool has been drained.
func (p *workerPool[T]) Submit(key int64, t T) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queues[uint64(key)%uint64(len(p.queues))] <- t:
		return true
	default:
		return false
	}
}

// Drain closes every queue and waits for the workers to finish what is queued.
func (p *workerPool[T]) Drain() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *workerPool[T]) QueueLen() int {
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}

func (p *workerPool[T]) QueueCap() int {
	n := 0
	for _, q := range p.queues {
		n += cap(q)
	}
	return n
}
