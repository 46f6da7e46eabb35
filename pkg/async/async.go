package async

import (
	"context"
	"fmt"
)

// Future represents the result of an asynchronous computation.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Await waits for the asynchronous function to complete and returns its result and error.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// Async executes fn(ctx, param) in a new goroutine and returns its Future.
// A context that is already canceled completes the future with ctx.Err()
// without calling fn.
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				var zero U
				f.result = zero
				f.err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}

		f.result, f.err = fn(ctx, param)
	}()

	return f
}

// Outcome is the settled state of a single future.
type Outcome[U any] struct {
	Value U
	Err   error
}

// OK reports whether the task finished without an error.
func (o Outcome[U]) OK() bool { return o.Err == nil }

// Settle waits for every future and returns their outcomes in input order.
func Settle[U any](futures ...*Future[U]) []Outcome[U] {
	outcomes := make([]Outcome[U], len(futures))
	for i, f := range futures {
		v, err := f.Await()
		outcomes[i] = Outcome[U]{Value: v, Err: err}
	}
	return outcomes
}
