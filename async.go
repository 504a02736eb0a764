package tcpsub

import "context"

// Result carries the outcome of an asynchronous read.
type Result[T any] struct {
	Value T
	Err   error
}

// async runs fn in its own goroutine and delivers its outcome exactly once.
// The channel is buffered, so an abandoned result does not leak the goroutine
// beyond the read itself.
func async[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

// ReadFrameAsync starts ReadFrameContext and returns immediately.
func (r *Reader) ReadFrameAsync(ctx context.Context) <-chan Result[[]byte] {
	return async(ctx, r.ReadFrameContext)
}

// ReadExactAsync starts ReadExactContext and returns immediately.
func (r *Reader) ReadExactAsync(ctx context.Context, length uint16) <-chan Result[[]byte] {
	return async(ctx, func(ctx context.Context) ([]byte, error) {
		return r.ReadExactContext(ctx, length)
	})
}
