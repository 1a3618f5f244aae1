package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a deadline derived from ctx. fn must honour the
// context it receives; the wrapper only distinguishes why the call ended.
// A timeout wraps context.DeadlineExceeded, a cancelled parent wraps the
// parent's error.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if callCtx.Err() == nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
	}
	return fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
}
