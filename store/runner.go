package store

import (
	"context"
	"sync"
)

// Runner schedules maintenance that must not delay or fail the operation
// that triggered it. Implementations must run fn to completion.
type Runner interface {
	Go(ctx context.Context, fn func(ctx context.Context))
}

// Inline runs maintenance before returning to the caller.
type Inline struct{}

// Go runs fn immediately.
func (Inline) Go(ctx context.Context, fn func(ctx context.Context)) {
	fn(ctx)
}

// Background runs maintenance on its own goroutine, detached from the
// caller's cancellation. Call Wait before shutting down.
type Background struct {
	wg sync.WaitGroup
}

// Go starts fn and returns.
func (b *Background) Go(ctx context.Context, fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(context.WithoutCancel(ctx))
	}()
}

// Wait blocks until all started maintenance has finished.
func (b *Background) Wait() {
	b.wg.Wait()
}
