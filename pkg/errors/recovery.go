package errors

import (
	"context"
	"fmt"
	"runtime/debug"

	"injectionfilter/pkg/logging"
)

// Guard runs fn and turns a panic into the error returned by RecoverPanic.
func Guard(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = RecoverPanic(ctx, r)
		}
	}()
	return fn(ctx)
}

// RecoverPanic converts a recovered value into a fatal internal error. The
// error carries the stack and, when ctx names them, the operation and
// filter key that were being worked on.
func RecoverPanic(ctx context.Context, r interface{}) error {
	if r == nil {
		return nil
	}

	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("panic: %v", r)
	}

	appErr := ErrInternal.
		WithCause(cause).
		WithDetail("stack_trace", string(debug.Stack()))
	if op := logging.GetOperation(ctx); op != "" {
		appErr = appErr.WithDetail("operation", op)
	}
	if key := logging.GetFilterKey(ctx); key != "" {
		appErr = appErr.WithDetail("filter_key", key)
	}
	return appErr.AsFatal()
}
