package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a task iteration.
type Next struct {
	err      error
	quit     bool
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break]"
	}
	return fmt.Sprintf("[continue] after %s", n.interval)
}

// Continue keeps the loop going, sleeping interval before the next iteration.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. err may be nil.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is one iteration of a loop: it receives the value of the previous
// iteration and decides how to proceed.
type Task[T any] func(context.Context, T) (T, Next)

type config struct {
	ctx      context.Context
	deferred func()
}

type Option func(*config) *config

// WithTimeout bounds the context passed to each single iteration.
func WithTimeout(d time.Duration) Option {
	return func(c *config) *config {
		ctx, cancel := context.WithTimeout(c.ctx, d)
		return &config{
			ctx: ctx,
			deferred: func() {
				if c.deferred != nil {
					defer c.deferred()
				}
				cancel()
			},
		}
	}
}

// Start runs task repeatedly, threading the T value through iterations,
// until the task Breaks or ctx is done.
//
// It returns the last value together with the Break error (nil on
// Break(nil)) or ctx.Err() on cancellation.
func Start[T any](ctx context.Context, init T, task Task[T], options ...Option) (T, error) {
	select {
	case <-ctx.Done():
		return init, ctx.Err()
	default:
	}

	value := init
	for {
		c := &config{ctx: ctx}
		for _, opt := range options {
			c = opt(c)
		}

		v, next := func() (T, Next) {
			if c.deferred != nil {
				defer c.deferred()
			}
			return task(c.ctx, value)
		}()

		if next.err != nil {
			return v, next.err
		}
		if next.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(next.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}
