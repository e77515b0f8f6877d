package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetry is returned by a retriable function to request another attempt.
var ErrRetry = errors.New("retry")

// Backoff blocks until the next attempt should be made.
// It returns ctx.Err() when the context is cancelled while waiting.
type Backoff func(ctx context.Context) error

// Static returns a Backoff waiting a fixed interval between attempts.
func Static(interval time.Duration) Backoff {
	return Exponential(interval, 1)
}

// Exponential returns a Backoff whose n-th wait is initial * factor^n.
func Exponential(initial time.Duration, factor float64) Backoff {
	interval := initial
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer func() {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(float64(interval) * factor)
			return nil
		}
	}
}

// Blocking calls f until it returns nil or an error other than ErrRetry.
// Each attempt (the first one included) is preceded by one backoff wait.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	var last T
	for {
		if err := b(ctx); err != nil {
			return last, err
		}
		var err error
		last, err = f()
		if err == nil || !errors.Is(err, ErrRetry) {
			return last, err
		}
	}
}

// Result is the outcome of a retried operation.
type Result[T any] struct {
	Value T
	Err   error
}

// Promise resolves to a Result exactly once.
type Promise[T any] <-chan Result[T]

// Failed returns an already-resolved Promise holding err.
func Failed[T any](err error) Promise[T] {
	ch := make(chan Result[T], 1)
	ch <- Result[T]{Err: err}
	close(ch)
	return ch
}

// Ok returns an already-resolved Promise holding value.
func Ok[T any](value T) Promise[T] {
	ch := make(chan Result[T], 1)
	ch <- Result[T]{Value: value}
	close(ch)
	return ch
}

// Go retries f in a background goroutine and resolves the returned Promise
// with the final outcome. Panics in f resolve the Promise with an error.
func Go[T any](ctx context.Context, b Backoff, f func() (T, error)) Promise[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		defer func() {
			r := recover()
			var err error
			switch rr := r.(type) {
			case nil:
				return
			case error:
				err = rr
			default:
				err = fmt.Errorf("%+v", rr)
			}
			select {
			case ch <- Result[T]{Err: err}:
			default:
				panic(r)
			}
		}()

		value, err := Blocking(ctx, b, f)
		ch <- Result[T]{Value: value, Err: err}
	}()
	return ch
}
