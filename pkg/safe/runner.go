package safe

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"quantfeed.com/pkg/logger"
)

// Go runs fn in a goroutine that logs a panic instead of crashing.
func Go(fn func()) {
	GoCtx(context.Background(), func(context.Context) { fn() })
}

// GoCtx is Go with a context, so the panic log keeps the trace id.
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		defer Recover(ctx)
		fn(ctx)
	}()
}

// Recover must be deferred directly. It logs the panic with its stack.
func Recover(ctx context.Context) {
	r := recover()
	if r == nil {
		return
	}
	stack := string(debug.Stack())
	if logger.Log != nil {
		logger.Error(ctx, "goroutine panic recovered",
			zap.Any("panic", r),
			zap.String("stack", stack),
		)
		return
	}
	fmt.Printf("goroutine panic: %v\nStack: %s\n", r, stack)
}
